package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/target/jobmatch/internal/core"
	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/domain/dedup"
	"github.com/target/jobmatch/internal/domain/model"
)

// Default upload limits.
const (
	DefaultMaxUploadBytes = 5 << 20
)

// DefaultAllowedExtensions is the upload allow-list used when none is configured.
var DefaultAllowedExtensions = []string{"pdf", "doc", "docx", "txt"}

// PipelineStarter enqueues the first stage for a new job.
type PipelineStarter interface {
	Start(ctx context.Context, payload model.StagePayload) (*model.Task, error)
}

// IntakeOptions groups dependencies for IntakeService.
type IntakeOptions struct {
	Jobs              core.JobStore      // Required
	Artifacts         core.ArtifactStore // Required
	Owners            *OwnerResolver     // Required
	Pipeline          PipelineStarter    // Required
	AllowedExtensions []string           // Optional: defaults to DefaultAllowedExtensions
	MaxBytes          int64              // Optional: defaults to DefaultMaxUploadBytes
	Logger            *slog.Logger       // Optional
}

// IntakeService validates submissions, creates jobs and starts their pipeline.
type IntakeService struct {
	jobs      core.JobStore
	artifacts core.ArtifactStore
	owners    *OwnerResolver
	pipeline  PipelineStarter
	allowed   map[string]struct{}
	maxBytes  int64
	logger    *slog.Logger
}

// NewIntakeService constructs an IntakeService.
func NewIntakeService(opts IntakeOptions) (*IntakeService, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("JobStore is required")
	case opts.Artifacts == nil:
		return nil, errors.New("ArtifactStore is required")
	case opts.Owners == nil:
		return nil, errors.New("OwnerResolver is required")
	case opts.Pipeline == nil:
		return nil, errors.New("pipeline starter is required")
	}

	exts := opts.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IntakeService{
		jobs:      opts.Jobs,
		artifacts: opts.Artifacts,
		owners:    opts.Owners,
		pipeline:  opts.Pipeline,
		allowed:   allowed,
		maxBytes:  maxBytes,
		logger:    logger.With("component", "intake"),
	}, nil
}

// MaxBytes returns the upload size limit.
func (s *IntakeService) MaxBytes() int64 { return s.maxBytes }

// Submission is one upload plus its search criteria.
type Submission struct {
	Filename string
	Data     []byte
	Criteria model.Criteria
	// Session is nil for anonymous callers.
	Session *domainauth.Session
	// GuestMarker is the marker presented by an anonymous caller, if any.
	GuestMarker string
}

// SubmissionResult reports what Submit created.
type SubmissionResult struct {
	JobID  string
	TaskID string
	Owner  model.Owner
	// GuestMarker is set for guest owners; callers should persist it for the next submission.
	GuestMarker string
}

// Validate checks the upload against the allow-list and size limit.
func (s *IntakeService) Validate(filename string, size int64) error {
	name := strings.TrimSpace(filename)
	if name == "" {
		return ErrEmptyFilename
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := s.allowed[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrFileTypeNotAllowed, ext)
	}
	if size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrArtifactTooLarge, size, s.maxBytes)
	}
	return nil
}

// Submit validates the upload, stores it, creates the job and enqueues the first stage.
// Nothing is persisted when validation fails.
func (s *IntakeService) Submit(ctx context.Context, sub Submission) (*SubmissionResult, error) {
	if err := s.Validate(sub.Filename, int64(len(sub.Data))); err != nil {
		return nil, err
	}

	owner, marker, err := s.owners.Resolve(ctx, sub.Session, sub.GuestMarker)
	if err != nil {
		return nil, err
	}

	criteria := sub.Criteria.WithDefaults()
	path, err := s.artifacts.SaveUpload(ctx, sub.Filename, sub.Data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	job, err := s.jobs.Create(ctx, &model.CreateJobRequest{
		Owner:        owner,
		Criteria:     criteria,
		ArtifactPath: path,
		Fingerprint:  dedup.Fingerprint(sub.Data, criteria),
	})
	if err != nil {
		s.discardUpload(ctx, path)
		return nil, fmt.Errorf("create job: %w", err)
	}

	task, err := s.pipeline.Start(ctx, model.StagePayload{JobID: job.ID})
	if err != nil {
		// The job would otherwise sit in queued forever.
		if _, cpErr := s.jobs.ApplyCheckpoint(ctx, job.ID, model.CheckpointFailed); cpErr != nil {
			s.logger.ErrorContext(ctx, "could not fail unstarted job", "job_id", job.ID, "error", cpErr)
		}
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	s.logger.InfoContext(ctx, "job submitted",
		"job_id", job.ID,
		"task_id", task.ID,
		"owner", owner.String(),
		"fingerprint", job.Fingerprint,
	)

	return &SubmissionResult{
		JobID:       job.ID,
		TaskID:      task.ID,
		Owner:       owner,
		GuestMarker: marker,
	}, nil
}

func (s *IntakeService) discardUpload(ctx context.Context, path string) {
	if err := s.artifacts.Delete(ctx, path); err != nil {
		s.logger.WarnContext(ctx, "could not remove orphaned upload", "path", path, "error", err)
	}
}

// IsValidationError reports whether err rejects the upload itself.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrEmptyFilename) ||
		errors.Is(err, ErrFileTypeNotAllowed) ||
		errors.Is(err, ErrArtifactTooLarge) ||
		errors.Is(err, ErrInvalidInput)
}
