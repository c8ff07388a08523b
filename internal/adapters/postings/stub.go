// Package postings provides posting-source connectors for the fetch stage.
package postings

import (
	"context"
	"log/slog"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
)

// Stub returns a fixed set of postings for any criteria. The location is echoed back.
type Stub struct {
	Logger *slog.Logger
}

var stubPostings = []model.Posting{
	{
		ID:          1,
		Title:       "Senior Backend Engineer",
		Company:     "TechCorp India",
		Description: "Looking for experienced backend engineer with Python and Django expertise. 5+ years required.",
		Salary:      "15-20 LPA",
		JobType:     "Full-time",
		URL:         "https://www.naukri.com/job-1",
		Posted:      "2 days ago",
		Experience:  "5-7",
	},
	{
		ID:          2,
		Title:       "Full Stack Developer",
		Company:     "StartupXYZ",
		Description: "Join our growing team. Experience with React, Node.js, and PostgreSQL needed.",
		Salary:      "12-16 LPA",
		JobType:     "Full-time",
		URL:         "https://www.naukri.com/job-2",
		Posted:      "1 day ago",
		Experience:  "3-5",
	},
	{
		ID:          3,
		Title:       "DevOps Engineer",
		Company:     "CloudServices Ltd",
		Description: "AWS, Docker, Kubernetes expertise. CI/CD pipeline management.",
		Salary:      "13-18 LPA",
		JobType:     "Full-time",
		URL:         "https://www.naukri.com/job-3",
		Posted:      "3 days ago",
		Experience:  "4-6",
	},
	{
		ID:          4,
		Title:       "Data Engineer",
		Company:     "Analytics Pro",
		Description: "Build data pipelines. Python, Spark, and SQL expertise required.",
		Salary:      "14-19 LPA",
		JobType:     "Full-time",
		URL:         "https://www.naukri.com/job-4",
		Posted:      "4 days ago",
		Experience:  "3-5",
	},
	{
		ID:          5,
		Title:       "Machine Learning Engineer",
		Company:     "AI Innovations",
		Description: "Work on cutting-edge ML projects. Experience with TensorFlow and PyTorch.",
		Salary:      "16-22 LPA",
		JobType:     "Full-time",
		URL:         "https://www.naukri.com/job-5",
		Posted:      "5 days ago",
		Experience:  "2-4",
	},
}

// Search returns the fixed postings.
func (s *Stub) Search(ctx context.Context, criteria model.Criteria) ([]model.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Posting, len(stubPostings))
	for i, p := range stubPostings {
		p.Location = criteria.Location
		out[i] = p
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "returning stub postings",
			"query", criteria.JobTitles, "location", criteria.Location, "count", len(out))
	}
	return out, nil
}

var _ core.PostingSource = (*Stub)(nil)
