// Package taskrunner implements the simulated unit of work a Step performs:
// sleep for a configured duration, then succeed or fail by a configured
// probability.
package taskrunner

import (
	"context"
	"math/rand"
	"time"
)

// Outcome is the result of running a simulated task.
type Outcome int

const (
	Success Outcome = iota
	Fail
)

// Spec carries the per-step parameters that control the simulated task.
type Spec struct {
	DurationSeconds float64
	FailProbability float64
}

// Run suspends the caller for Spec.DurationSeconds (respecting ctx
// cancellation), then returns Success with probability
// 1-Spec.FailProbability and Fail otherwise. FailProbability == 0.0 always
// succeeds and == 1.0 always fails, with no call into rng, so tests using
// those boundary values never depend on the random source at all.
func Run(ctx context.Context, rng *rand.Rand, spec Spec) (Outcome, error) {
	if spec.DurationSeconds > 0 {
		timer := time.NewTimer(time.Duration(spec.DurationSeconds * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Fail, ctx.Err()
		case <-timer.C:
		}
	}

	if spec.FailProbability <= 0.0 {
		return Success, nil
	}
	if spec.FailProbability >= 1.0 {
		return Fail, nil
	}
	if rng.Float64() < spec.FailProbability {
		return Fail, nil
	}
	return Success, nil
}
