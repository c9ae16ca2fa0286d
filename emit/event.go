package emit

// Event represents an observability event emitted during a Run's execution.
//
// Events provide detailed insight into step-by-step progress:
//   - Step start/complete/retry/failed
//   - Retry accounting
//   - Errors
//   - Crash-recovery short-circuits (a step resuming from an existing
//     StepResult rather than re-running its task)
//
// Events are emitted to an Emitter which can:
//   - Log to stdout/stderr
//   - Send to OpenTelemetry
//   - Store in time-series databases
//   - Trigger alerts
type Event struct {
	// RunID identifies the Run that emitted this event.
	RunID string

	// Step is the step's zero-indexed position in the Run's plan. Zero for
	// run-level events that are not tied to a particular step.
	Step int

	// NodeID identifies which step emitted this event (domain.Step.StepID).
	// Empty string for run-level events.
	NodeID string

	// Msg names the event: step_start, step_complete, step_retry, or
	// step_failed.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "retry_count": the step's retry count at the time of the event
	//   - "error": the task or commit error that caused a retry or failure
	//   - "from_existing_result": set on step_complete when the step
	//     resumed from a StepResult left by a prior, crashed attempt
	Meta map[string]interface{}
}
