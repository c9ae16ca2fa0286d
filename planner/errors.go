package planner

import "errors"

// ErrInvalidWorkflow is returned for a malformed workflow definition:
// duplicate step ids, a depends_on reference to an unknown id, or a
// numeric field outside its documented range. The error returned to the
// caller wraps this sentinel via fmt.Errorf("%w: ...", ErrInvalidWorkflow)
// so callers can use errors.Is while still getting a descriptive message.
var ErrInvalidWorkflow = errors.New("INVALID_WORKFLOW")

// ErrCycleDetected is returned when Kahn's algorithm terminates with
// unprocessed nodes remaining, meaning depends_on contains a cycle.
var ErrCycleDetected = errors.New("CYCLE_DETECTED")
