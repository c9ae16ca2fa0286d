// Package clock provides the engine's monotonic time source and the
// per-run deterministic random source used by the task runner and the
// engine's replay-friendly tests.
package clock

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall-clock time so executor/worker code never calls
// time.Now() directly, letting tests substitute a fixed or stepped clock.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock, backed by time.Now.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a Clock that always returns the same instant, useful for
// asserting exact timestamps in tests.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.At }

// NewRand returns a random source seeded deterministically from runID, so
// that re-running the same run id (as Recovery does after a crash)
// reproduces the same sequence of simulated task outcomes in tests that
// pin a fixed runID. Production code never relies on this determinism for
// correctness -- only TaskRunner's pass/fail coin flip consumes it.
func NewRand(runID uuid.UUID) *rand.Rand {
	sum := sha256.Sum256(runID[:])
	seed := int64(binary.BigEndian.Uint64(sum[:8])) // #nosec G115 -- deterministic seed derivation, not a cryptographic use
	return rand.New(rand.NewSource(seed))           // #nosec G404 -- deterministic RNG for reproducible simulation, not security
}
