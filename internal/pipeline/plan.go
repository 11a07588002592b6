package pipeline

import (
	"fmt"
	"sort"
)

// ExecutionPlan represents the planned execution order of stages.
type ExecutionPlan struct {
	Order []StageName
	Graph map[StageName][]StageName // dependency -> dependents
}

// BuildExecutionPlan creates an execution plan for the requested stages,
// pulling in their dependencies transitively and ordering the result
// topologically. Ties are broken by registration order, which keeps the
// default pipeline byte-stable across runs.
func BuildExecutionPlan(registry *Registry, stages []StageName) (*ExecutionPlan, error) {
	if len(stages) == 0 {
		return &ExecutionPlan{Order: []StageName{}, Graph: make(map[StageName][]StageName)}, nil
	}

	// Validate all requested stages exist
	for _, stage := range stages {
		if _, exists := registry.Get(stage); !exists {
			return nil, fmt.Errorf("stage %s not found in registry", stage)
		}
	}

	graph := make(map[StageName][]StageName)
	inDegree := make(map[StageName]int)

	stageSet := make(map[StageName]bool)
	for _, stage := range stages {
		stageSet[stage] = true
	}

	// Add dependencies transitively
	var addDependencies func(StageName) error
	addDependencies = func(stage StageName) error {
		cmd, exists := registry.Get(stage)
		if !exists {
			return fmt.Errorf("dependency %s not found", stage)
		}
		for _, dep := range cmd.Dependencies() {
			if !stageSet[dep] {
				stageSet[dep] = true
				if err := addDependencies(dep); err != nil {
					return err
				}
			}
			graph[dep] = append(graph[dep], stage)
		}
		return nil
	}
	for _, stage := range stages {
		if err := addDependencies(stage); err != nil {
			return nil, fmt.Errorf("resolving dependencies for %s: %w", stage, err)
		}
	}

	// Calculate in-degrees
	for stage := range stageSet {
		inDegree[stage] = 0
	}
	for _, dependents := range graph {
		for _, dependent := range dependents {
			inDegree[dependent]++
		}
	}

	byIndex := func(names []StageName) {
		sort.Slice(names, func(i, j int) bool {
			return registry.index(names[i]) < registry.index(names[j])
		})
	}

	// Topological sort (Kahn), registration order as tie-break
	var order []StageName
	queue := make([]StageName, 0)
	for stage, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, stage)
		}
	}
	byIndex(queue)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		byIndex(queue)
	}

	if len(order) != len(stageSet) {
		return nil, fmt.Errorf("circular dependency detected among stages")
	}

	return &ExecutionPlan{Order: order, Graph: graph}, nil
}
