package emit

import (
	"testing"
)

func TestEvent_Struct(t *testing.T) {
	t.Run("complete event with all fields", func(t *testing.T) {
		meta := map[string]interface{}{
			"retry_count": 1,
			"error":       "payment declined",
		}

		event := Event{
			RunID:  "run-001",
			Step:   2,
			NodeID: "charge_payment",
			Msg:    "step_retry",
			Meta:   meta,
		}

		if event.RunID != "run-001" {
			t.Errorf("expected RunID = 'run-001', got %q", event.RunID)
		}
		if event.Step != 2 {
			t.Errorf("expected Step = 2, got %d", event.Step)
		}
		if event.NodeID != "charge_payment" {
			t.Errorf("expected NodeID = 'charge_payment', got %q", event.NodeID)
		}
		if event.Msg != "step_retry" {
			t.Errorf("expected Msg = 'step_retry', got %q", event.Msg)
		}
		if event.Meta["retry_count"] != 1 {
			t.Errorf("expected Meta['retry_count'] = 1, got %v", event.Meta["retry_count"])
		}
	})

	t.Run("minimal event", func(t *testing.T) {
		event := Event{
			RunID: "run-002",
			Msg:   "step_start",
		}

		if event.Step != 0 {
			t.Errorf("expected Step = 0 (zero value), got %d", event.Step)
		}
		if event.NodeID != "" {
			t.Errorf("expected NodeID = \"\" (zero value), got %q", event.NodeID)
		}
		if event.Meta != nil {
			t.Error("expected Meta = nil (zero value)")
		}
	})

	t.Run("zero value event", func(t *testing.T) {
		var event Event

		if event.RunID != "" {
			t.Errorf("expected zero value RunID, got %q", event.RunID)
		}
		if event.Step != 0 {
			t.Errorf("expected zero value Step, got %d", event.Step)
		}
		if event.NodeID != "" {
			t.Errorf("expected zero value NodeID, got %q", event.NodeID)
		}
		if event.Msg != "" {
			t.Errorf("expected zero value Msg, got %q", event.Msg)
		}
		if event.Meta != nil {
			t.Error("expected zero value Meta to be nil")
		}
	})
}

func TestEvent_UseCases(t *testing.T) {
	t.Run("step start event", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   0,
			NodeID: "validate_order",
			Msg:    "step_start",
		}

		if event.NodeID != "validate_order" {
			t.Errorf("expected NodeID = 'validate_order', got %q", event.NodeID)
		}
	})

	t.Run("step complete event", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   0,
			NodeID: "validate_order",
			Msg:    "step_complete",
			Meta: map[string]interface{}{
				"retry_count": 0,
			},
		}

		if event.Meta["retry_count"] != 0 {
			t.Errorf("expected retry_count = 0, got %v", event.Meta["retry_count"])
		}
	})

	t.Run("step complete from existing result", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "charge_payment",
			Msg:    "step_complete",
			Meta: map[string]interface{}{
				"from_existing_result": true,
			},
		}

		if event.Meta["from_existing_result"] != true {
			t.Error("expected from_existing_result = true")
		}
	})

	t.Run("step failed event", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   2,
			NodeID: "ship_order",
			Msg:    "step_failed",
			Meta: map[string]interface{}{
				"error": "carrier unavailable",
			},
		}

		if event.Meta["error"] != "carrier unavailable" {
			t.Errorf("expected error = 'carrier unavailable', got %v", event.Meta["error"])
		}
	})

	t.Run("step retry event", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   2,
			NodeID: "ship_order",
			Msg:    "step_retry",
			Meta: map[string]interface{}{
				"error":       "carrier unavailable",
				"retry_count": 1,
			},
		}

		if event.Meta["retry_count"] != 1 {
			t.Errorf("expected retry_count = 1, got %v", event.Meta["retry_count"])
		}
	})
}
