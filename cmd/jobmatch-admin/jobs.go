package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/jobmatch/internal/adapters/reaper"
	"github.com/target/jobmatch/internal/data"
	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/service"
)

type jobStatusOptions struct {
	JobID   string
	RawJSON bool
}

type queueStatsOptions struct {
	RawJSON bool
}

// jobReport is the admin view of one job and every stage task created for it.
type jobReport struct {
	Job   *model.Job    `json:"job"`
	Tasks []*model.Task `json:"tasks"`
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatusFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultQueryTimeout, func(ctx context.Context, db *sql.DB) error {
		job, err := data.NewJobRepo(db, data.RepoConfig{}).GetByID(ctx, opts.JobID)
		if err != nil {
			return fmt.Errorf("load job %s: %w", opts.JobID, err)
		}
		tasks, err := data.NewTaskRepo(db, data.RepoConfig{}).ListByJob(ctx, opts.JobID)
		if err != nil {
			return fmt.Errorf("list tasks for job %s: %w", opts.JobID, err)
		}

		report := jobReport{Job: job, Tasks: tasks}
		if opts.RawJSON {
			return printJSON(os.Stdout, report)
		}
		return renderJobReport(os.Stdout, report)
	})
}

func runQueueStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseQueueStatsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultQueryTimeout, func(ctx context.Context, db *sql.DB) error {
		overview, err := loadOverview(ctx, data.NewTaskRepo(db, data.RepoConfig{}), data.NewJobRepo(db, data.RepoConfig{}))
		if err != nil {
			return err
		}
		if opts.RawJSON {
			return printJSON(os.Stdout, overview)
		}
		return renderOverview(os.Stdout, overview)
	})
}

type taskStatser interface {
	Stats(ctx context.Context, taskType model.TaskType) (*model.TaskStats, error)
}

type jobCounter interface {
	Counts(ctx context.Context) (*model.JobCounts, error)
}

func loadOverview(ctx context.Context, tasks taskStatser, jobs jobCounter) (*service.Overview, error) {
	overview := &service.Overview{Queues: make(map[model.TaskType]*model.TaskStats)}
	for _, stage := range pipelineStages {
		stats, err := tasks.Stats(ctx, stage)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", stage, err)
		}
		overview.Queues[stage] = stats
	}
	counts, err := jobs.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	overview.Jobs = counts
	return overview, nil
}

var pipelineStages = []model.TaskType{model.TaskTypeFetch, model.TaskTypeMatch, model.TaskTypeCleanup}

func runReap(cmdCtx *commandContext, _ []string) error {
	return withDatabase(cmdCtx, defaultMigrationTimeout, func(ctx context.Context, db *sql.DB) error {
		runner, err := reaper.New(db, cmdCtx.Config.Reaper, reaper.WithLogger(cmdCtx.Logger))
		if err != nil {
			return fmt.Errorf("create reaper: %w", err)
		}
		report, err := runner.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("reap: %w", err)
		}
		return reaper.WriteReport(os.Stdout, report)
	})
}

func parseJobStatusFlags(args []string) (jobStatusOptions, error) {
	fs := flag.NewFlagSet("job-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobStatusOptions
	fs.StringVar(&opts.JobID, "job-id", "", "Job identifier (required)")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the report as JSON")

	if err := fs.Parse(args); err != nil {
		return jobStatusOptions{}, err
	}
	if opts.JobID == "" && fs.NArg() > 0 {
		opts.JobID = fs.Arg(0)
	}
	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" {
		return jobStatusOptions{}, errors.New("--job-id is required")
	}
	return opts, nil
}

func parseQueueStatsFlags(args []string) (queueStatsOptions, error) {
	fs := flag.NewFlagSet("queue-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts queueStatsOptions
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the overview as JSON")
	if err := fs.Parse(args); err != nil {
		return queueStatsOptions{}, err
	}
	return opts, nil
}

func renderJobReport(w io.Writer, report jobReport) error {
	job := report.Job
	if err := writef(w, "Job %s\n", job.ID); err != nil {
		return err
	}
	if err := writef(w, "  Owner:    %s\n  Status:   %s (%d%%)\n  Message:  %s\n  Created:  %s\n",
		job.Owner, job.Status, job.Progress, job.StatusMessage(), job.CreatedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	if job.ResultsRef != nil {
		if err := writef(w, "  Results:  %s\n", *job.ResultsRef); err != nil {
			return err
		}
	}

	if len(report.Tasks) == 0 {
		return writeln(w, "\n(no stage tasks)")
	}

	if err := writeln(w); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeln(tw, "TASK\tSTAGE\tSTATUS\tATTEMPTS\tSCHEDULED\tLAST ERROR"); err != nil {
		return err
	}
	for _, t := range report.Tasks {
		lastErr := ""
		if t.LastError != nil {
			lastErr = *t.LastError
		}
		if err := writef(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			t.ID, t.Type, t.Status, t.RetryCount, t.MaxRetries,
			t.ScheduledAt.Format(time.RFC3339), lastErr); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func renderOverview(w io.Writer, overview *service.Overview) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeln(tw, "STAGE\tPENDING\tRUNNING\tCOMPLETED\tFAILED"); err != nil {
		return err
	}
	for _, stage := range pipelineStages {
		s := overview.Queues[stage]
		if s == nil {
			s = &model.TaskStats{}
		}
		if err := writef(tw, "%s\t%d\t%d\t%d\t%d\n", stage, s.Pending, s.Running, s.Completed, s.Failed); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if overview.Jobs == nil {
		return nil
	}
	j := overview.Jobs
	return writef(w, "\nJobs: queued=%d running=%d completed=%d failed=%d\n",
		j.Queued, j.Running, j.Completed, j.Failed)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
