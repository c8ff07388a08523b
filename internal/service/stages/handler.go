package stages

import (
	"context"

	"github.com/target/jobmatch/internal/domain/model"
)

// Handler runs one delivery of a stage task.
type Handler interface {
	Stage() model.TaskType
	Handle(ctx context.Context, task *model.Task) error
}

var (
	_ Handler = (*Fetch)(nil)
	_ Handler = (*Match)(nil)
	_ Handler = (*Cleanup)(nil)
)
