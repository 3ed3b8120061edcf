package schemas

import (
	"fmt"
	"time"
)

// -- Step and Job Schemas --

// StepStatus is the outcome of one step within a job.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	// StepSkipped marks steps that never ran because an earlier step
	// aborted the job or the job was cancelled.
	StepSkipped StepStatus = "skipped"
)

// Step is one action on one logical element. Steps appear in plan files.
type Step struct {
	Name      string  `json:"name,omitempty"`
	ElementID string  `json:"element"`
	Locator   Locator `json:"locator"`
	Action    Action  `json:"action"`
	// ContinueOnFailure keeps the job going when this step fails.
	ContinueOnFailure bool `json:"continue_on_failure,omitempty"`
}

// Label names the step in reports, falling back to its element and action.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s:%s", s.ElementID, s.Action.Kind)
}

// Validate checks the step can be handed to an executor.
func (s Step) Validate() error {
	if s.ElementID == "" {
		return fmt.Errorf("step %q: element is required", s.Label())
	}
	// A zero locator is allowed; resolution then relies on history alone.
	if !s.Locator.IsZero() {
		if err := s.Locator.Validate(); err != nil {
			return fmt.Errorf("step %q: %w", s.Label(), err)
		}
	}
	if err := s.Action.Validate(); err != nil {
		return fmt.Errorf("step %q: %w", s.Label(), err)
	}
	return nil
}

// StepReport records what happened to one step.
type StepReport struct {
	Step   string       `json:"step"`
	Status StepStatus   `json:"status"`
	Result ActionResult `json:"result"`
}

// JobReport is the engine's result for one job, handed to its sink.
type JobReport struct {
	JobID      string       `json:"job_id"`
	SessionID  string       `json:"session_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepReport `json:"steps"`
	Error      string       `json:"error,omitempty"`
}

// Succeeded reports whether the job ran to completion with no failed step.
func (r *JobReport) Succeeded() bool {
	if r.Error != "" {
		return false
	}
	for _, s := range r.Steps {
		if s.Status != StepSucceeded {
			return false
		}
	}
	return true
}
