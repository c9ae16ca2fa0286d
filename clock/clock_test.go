package clock

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRealClock_ReturnsUTC(t *testing.T) {
	now := RealClock{}.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", now.Location())
	}
}

func TestFixedClock_ReturnsPinnedInstant(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := FixedClock{At: at}

	if got := c.Now(); !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}
	if got := c.Now(); !got.Equal(at) {
		t.Fatalf("FixedClock must return the same instant every call, got %v", got)
	}
}

func TestNewRand_DeterministicPerRunID(t *testing.T) {
	runID := uuid.New()

	r1 := NewRand(runID)
	r2 := NewRand(runID)

	for i := 0; i < 10; i++ {
		a, b := r1.Float64(), r2.Float64()
		if a != b {
			t.Fatalf("sequence diverged at index %d: %v != %v", i, a, b)
		}
	}
}

func TestNewRand_DistinctRunIDsDiverge(t *testing.T) {
	r1 := NewRand(uuid.New())
	r2 := NewRand(uuid.New())

	same := true
	for i := 0; i < 10; i++ {
		if r1.Float64() != r2.Float64() {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected distinct run ids to produce distinct sequences")
	}
}
