package testutil

import (
	"encoding/json"
	"time"

	"github.com/target/jobmatch/internal/domain/model"
)

// JobRequestBuilder builds model.CreateJobRequest fixtures with valid defaults.
type JobRequestBuilder struct {
	req model.CreateJobRequest
}

// NewJobRequest starts a registered-owner job for ownerID with default criteria.
func NewJobRequest(ownerID string) *JobRequestBuilder {
	return &JobRequestBuilder{req: model.CreateJobRequest{
		Owner:        model.RegisteredOwner(ownerID),
		Criteria:     model.Criteria{}.WithDefaults(),
		ArtifactPath: "uploads/resume.pdf",
		Fingerprint:  "fp-" + ownerID,
	}}
}

func (b *JobRequestBuilder) AsGuest() *JobRequestBuilder {
	b.req.Owner = model.GuestOwner(b.req.Owner.ID)
	return b
}

func (b *JobRequestBuilder) WithCriteria(c model.Criteria) *JobRequestBuilder {
	b.req.Criteria = c
	return b
}

func (b *JobRequestBuilder) WithArtifact(path string) *JobRequestBuilder {
	b.req.ArtifactPath = path
	return b
}

func (b *JobRequestBuilder) WithFingerprint(fp string) *JobRequestBuilder {
	b.req.Fingerprint = fp
	return b
}

// Build returns a copy so one builder can seed several jobs.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	out := b.req
	out.Criteria.Skills = append([]string(nil), b.req.Criteria.Skills...)
	return &out
}

// TaskRequestBuilder builds stage task fixtures whose payload references the job.
type TaskRequestBuilder struct {
	req     model.CreateTaskRequest
	payload model.StagePayload
}

// NewTaskRequest starts a fetch task for jobID.
func NewTaskRequest(jobID string) *TaskRequestBuilder {
	return &TaskRequestBuilder{
		req:     model.CreateTaskRequest{Type: model.TaskTypeFetch, JobID: jobID, MaxRetries: 3},
		payload: model.StagePayload{JobID: jobID},
	}
}

func (b *TaskRequestBuilder) WithType(t model.TaskType) *TaskRequestBuilder {
	b.req.Type = t
	return b
}

func (b *TaskRequestBuilder) WithMaxRetries(n int) *TaskRequestBuilder {
	b.req.MaxRetries = n
	return b
}

// ScheduledAt delays delivery until at.
func (b *TaskRequestBuilder) ScheduledAt(at time.Time) *TaskRequestBuilder {
	b.req.ScheduledAt = &at
	return b
}

func (b *TaskRequestBuilder) WithPostings(p ...model.Posting) *TaskRequestBuilder {
	b.payload.Postings = p
	return b
}

func (b *TaskRequestBuilder) WithArtifact(path string) *TaskRequestBuilder {
	b.payload.ArtifactPath = path
	return b
}

func (b *TaskRequestBuilder) Build() *model.CreateTaskRequest {
	raw, err := json.Marshal(b.payload)
	if err != nil {
		panic(err)
	}
	out := b.req
	out.Payload = raw
	return &out
}

// SamplePostings returns n distinct postings.
func SamplePostings(n int) []model.Posting {
	out := make([]model.Posting, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Posting{
			ID:       i,
			Title:    "Backend Engineer",
			Company:  "Acme",
			Location: "Remote",
			URL:      "https://jobs.example.com/" + string(rune('a'+i%26)),
		})
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
