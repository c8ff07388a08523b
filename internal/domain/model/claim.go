package model

import "time"

// ClaimState is the outcome of trying to take the single-flight claim for a job stage.
type ClaimState string

const (
	// ClaimAcquired means the caller now holds the stage for this job.
	ClaimAcquired ClaimState = "acquired"
	// ClaimBusy means another live holder is running the stage.
	ClaimBusy ClaimState = "busy"
	// ClaimDone means the stage already finished for this job.
	ClaimDone ClaimState = "done"
)

// StageClaim identifies who wants to run which stage of which job, and for how long.
type StageClaim struct {
	JobID  string
	Stage  TaskType
	Holder string
	Lease  time.Duration
}
