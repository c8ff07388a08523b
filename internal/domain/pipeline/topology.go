// Package pipeline declares the ordered stage list a job moves through.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/target/jobmatch/internal/domain/model"
)

// Stage is a pipeline phase; each stage is dispatched as a task of the same type.
type Stage = model.TaskType

// Step is one stage and the delay applied when it is scheduled by its predecessor.
type Step struct {
	Stage Stage
	Delay time.Duration
}

// Topology is the ordered chain of stages for a job.
type Topology struct {
	steps []Step
}

var (
	// ErrEmptyTopology is returned when no stages are declared.
	ErrEmptyTopology = errors.New("pipeline topology has no stages")
	// ErrUnknownStage is returned when a stage is not part of the topology.
	ErrUnknownStage = errors.New("stage not in pipeline topology")
)

// New builds a topology from steps in execution order.
func New(steps ...Step) (*Topology, error) {
	t := &Topology{steps: append([]Step(nil), steps...)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// DefaultTopology is fetch, then match after matchDelay, then cleanup after cleanupDelay.
func DefaultTopology(matchDelay, cleanupDelay time.Duration) *Topology {
	return &Topology{steps: []Step{
		{Stage: model.TaskTypeFetch},
		{Stage: model.TaskTypeMatch, Delay: matchDelay},
		{Stage: model.TaskTypeCleanup, Delay: cleanupDelay},
	}}
}

// Validate rejects empty, unknown, duplicated, or negatively delayed stages.
func (t *Topology) Validate() error {
	if t == nil || len(t.steps) == 0 {
		return ErrEmptyTopology
	}
	seen := make(map[Stage]struct{}, len(t.steps))
	for _, s := range t.steps {
		if !s.Stage.Valid() {
			return fmt.Errorf("invalid stage %q", s.Stage)
		}
		if _, dup := seen[s.Stage]; dup {
			return fmt.Errorf("stage %q declared twice", s.Stage)
		}
		if s.Delay < 0 {
			return fmt.Errorf("stage %q has negative delay", s.Stage)
		}
		seen[s.Stage] = struct{}{}
	}
	return nil
}

// First returns the entry stage.
func (t *Topology) First() Step {
	return t.steps[0]
}

// Next returns the stage after from. ok is false when from is the last stage.
func (t *Topology) Next(from Stage) (Step, bool, error) {
	for i, s := range t.steps {
		if s.Stage != from {
			continue
		}
		if i+1 == len(t.steps) {
			return Step{}, false, nil
		}
		return t.steps[i+1], true, nil
	}
	return Step{}, false, fmt.Errorf("%w: %s", ErrUnknownStage, from)
}

// Stages lists stage names in order.
func (t *Topology) Stages() []Stage {
	out := make([]Stage, len(t.steps))
	for i, s := range t.steps {
		out[i] = s.Stage
	}
	return out
}
