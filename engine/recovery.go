package engine

import (
	"context"
	"fmt"

	"stepforge/store"
)

// Recovery resubmits every Run left RUNNING by a crash. It runs exactly
// once at startup, before the external interface opens, so no request can
// observe a RUNNING run with no live worker behind it.
type Recovery struct {
	store      store.Store
	supervisor *Supervisor
}

// NewRecovery builds a Recovery bound to st and sup.
func NewRecovery(st store.Store, sup *Supervisor) *Recovery {
	return &Recovery{store: st, supervisor: sup}
}

// Run queries every RUNNING run and hands each to the Supervisor. It
// returns once all runs have been submitted, not once they complete -- a
// run resumed this way skips Steps already COMPLETED (a committed Write B
// is what marks them so) and re-executes the rest with fresh idempotency
// keys.
func (r *Recovery) Run(ctx context.Context) error {
	runs, err := r.store.ListRunningRuns(ctx)
	if err != nil {
		return fmt.Errorf("list running runs: %w", err)
	}
	for _, run := range runs {
		r.supervisor.Submit(ctx, run.ID)
	}
	return nil
}
