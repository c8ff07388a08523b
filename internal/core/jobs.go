// Package core declares the ports that connect the job matching services to storage and
// external collaborators.
package core

import "github.com/target/jobmatch/internal/domain/model"

// TaskType is re-exported for HTTP handlers and runners that should not import the model package directly.
type TaskType = model.TaskType

// CreateTaskRequest is re-exported for producers that enqueue through the service layer.
type CreateTaskRequest = model.CreateTaskRequest
