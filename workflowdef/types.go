// Package workflowdef defines the wire format for workflow definitions (the
// JSON document described in the engine's external interface contract) and
// the in-memory form the planner and engine operate on.
package workflowdef

// Definition is the input document a caller submits to create a workflow.
type Definition struct {
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step is one node of a Definition before topological ordering.
type Step struct {
	ID         string   `json:"id" yaml:"id"`
	Type       string   `json:"type" yaml:"type"`
	DependsOn  []string `json:"depends_on" yaml:"depends_on"`
	Config     Config   `json:"config" yaml:"config"`
}

// Config carries per-step execution parameters. Action is free-form;
// unknown action names become no-ops at dispatch time (see the actions
// package). Zero values match the wire format's documented defaults:
// DurationSeconds=1.0, FailProbability=0.0, MaxRetries=0. DurationSeconds is
// a pointer so an explicit `duration_seconds: 0` in the input document (a
// valid value per the spec's duration_seconds >= 0 rule) survives
// ApplyDefaults instead of being mistaken for an omitted field.
type Config struct {
	Action          string   `json:"action,omitempty" yaml:"action,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds" yaml:"duration_seconds"`
	FailProbability float64  `json:"fail_probability" yaml:"fail_probability"`
	MaxRetries      int      `json:"max_retries" yaml:"max_retries"`
}

// Duration returns the configured DurationSeconds, or 1.0 if unset.
func (c Config) Duration() float64 {
	if c.DurationSeconds == nil {
		return 1.0
	}
	return *c.DurationSeconds
}

// ApplyDefaults fills in the wire format's documented defaults for any field
// left unset, except FailProbability and MaxRetries, whose zero value (0.0,
// 0) is already the documented default and needs no filling.
func (d *Definition) ApplyDefaults() {
	for i := range d.Steps {
		if d.Steps[i].Config.DurationSeconds == nil {
			def := 1.0
			d.Steps[i].Config.DurationSeconds = &def
		}
	}
}
