// Package planner implements the engine's topological ordering of a
// workflow definition: Kahn's algorithm with a stable tie-break, so the
// resulting execution order is deterministic and equals the input order
// whenever the input is already topologically sorted.
package planner

import (
	"fmt"

	"stepforge/workflowdef"
)

// PlannedStep is a workflow definition step annotated with its assigned
// execution-order index.
type PlannedStep struct {
	workflowdef.Step
	Index int
}

// Plan validates def and returns its steps reordered so every step's
// dependencies precede it, with index 0..N-1 contiguous. Among currently
// ready steps (in-degree 0), the step with the smallest position in the
// input list is chosen first, which is what makes the ordering stable.
func Plan(def workflowdef.Definition) ([]PlannedStep, error) {
	if err := validate(def); err != nil {
		return nil, err
	}

	n := len(def.Steps)
	indexByID := make(map[string]int, n)
	for i, s := range def.Steps {
		indexByID[s.ID] = i
	}

	// inDegree[i] counts prerequisites of def.Steps[i] not yet satisfied.
	// dependents[i] lists the positions that depend on def.Steps[i].
	inDegree := make([]int, n)
	dependents := make([][]int, n)
	for i, s := range def.Steps {
		inDegree[i] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			di := indexByID[dep]
			dependents[di] = append(dependents[di], i)
		}
	}

	// ready holds positions with in-degree 0, always kept sorted by
	// position so the smallest-position tie-break is a simple pop of the
	// minimum. A sorted slice (rather than a heap) keeps the algorithm
	// readable for the modest step counts workflows have in practice.
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			ready = insertSorted(ready, i)
		}
	}

	ordered := make([]PlannedStep, 0, n)
	for len(ready) > 0 {
		pos := ready[0]
		ready = ready[1:]

		ordered = append(ordered, PlannedStep{Step: def.Steps[pos], Index: len(ordered)})

		for _, dep := range dependents[pos] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(ordered) != n {
		return nil, fmt.Errorf("%w: workflow %q has a dependency cycle", ErrCycleDetected, def.Name)
	}

	return ordered, nil
}

func insertSorted(s []int, v int) []int {
	i := 0
	for ; i < len(s); i++ {
		if s[i] > v {
			break
		}
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func validate(def workflowdef.Definition) error {
	if len(def.Steps) == 0 {
		return fmt.Errorf("%w: workflow %q has no steps", ErrInvalidWorkflow, def.Name)
	}

	seen := make(map[string]bool, len(def.Steps))
	for _, s := range def.Steps {
		if s.ID == "" {
			return fmt.Errorf("%w: workflow %q has a step with an empty id", ErrInvalidWorkflow, def.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: workflow %q has a duplicate step id %q", ErrInvalidWorkflow, def.Name, s.ID)
		}
		seen[s.ID] = true
	}

	for _, s := range def.Steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("%w: step %q in workflow %q depends on unknown step %q", ErrInvalidWorkflow, s.ID, def.Name, dep)
			}
		}
		if s.Config.FailProbability < 0.0 || s.Config.FailProbability > 1.0 {
			return fmt.Errorf("%w: step %q has fail_probability %v out of range [0.0, 1.0]", ErrInvalidWorkflow, s.ID, s.Config.FailProbability)
		}
		if s.Config.Duration() < 0 {
			return fmt.Errorf("%w: step %q has negative duration_seconds %v", ErrInvalidWorkflow, s.ID, s.Config.Duration())
		}
		if s.Config.MaxRetries < 0 {
			return fmt.Errorf("%w: step %q has negative max_retries %v", ErrInvalidWorkflow, s.ID, s.Config.MaxRetries)
		}
	}

	return nil
}
