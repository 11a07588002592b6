package pipeline

import (
	"context"
	"testing"
)

func noop(ctx context.Context, bs *BuildState) error { return nil }

func indexOf(order []StageName, name StageName) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestFullPlanFollowsRegistrationOrder(t *testing.T) {
	r := defaultRegistry()
	plan, err := BuildExecutionPlan(r, r.List())
	if err != nil {
		t.Fatalf("BuildExecutionPlan failed: %v", err)
	}

	want := []StageName{
		StageClean,
		StageWriteVersion,
		StageGenerateEntries,
		StageCompileLegacy,
		StageCompileEntries,
		StageCompileNative,
		StageWriteHeader,
		StageBundle,
		StageGenerateDocs,
	}
	if len(plan.Order) != len(want) {
		t.Fatalf("expected %d stages, got %d: %v", len(want), len(plan.Order), plan.Order)
	}
	for i, name := range want {
		if plan.Order[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, plan.Order[i])
		}
	}
}

func TestPlanPullsDependenciesTransitively(t *testing.T) {
	r := defaultRegistry()
	plan, err := BuildExecutionPlan(r, []StageName{StageCompileEntries})
	if err != nil {
		t.Fatalf("BuildExecutionPlan failed: %v", err)
	}

	// compile_entries needs generate_entries and compile_legacy, and
	// compile_legacy in turn needs write_version.
	for _, name := range []StageName{StageWriteVersion, StageGenerateEntries, StageCompileLegacy, StageCompileEntries} {
		if indexOf(plan.Order, name) == -1 {
			t.Errorf("expected %s in plan, got %v", name, plan.Order)
		}
	}
	if indexOf(plan.Order, StageClean) != -1 {
		t.Errorf("clean must not be pulled in: %v", plan.Order)
	}
	if indexOf(plan.Order, StageWriteVersion) > indexOf(plan.Order, StageCompileLegacy) {
		t.Errorf("write_version must precede compile_legacy: %v", plan.Order)
	}
}

func TestBundlePlanSkipsClean(t *testing.T) {
	r := defaultRegistry()
	plan, err := BuildExecutionPlan(r, []StageName{StageBundle})
	if err != nil {
		t.Fatalf("BuildExecutionPlan failed: %v", err)
	}

	want := []StageName{StageWriteVersion, StageBundle}
	if len(plan.Order) != len(want) || plan.Order[0] != want[0] || plan.Order[1] != want[1] {
		t.Errorf("expected %v, got %v", want, plan.Order)
	}
}

func TestPlanUnknownStage(t *testing.T) {
	r := defaultRegistry()
	if _, err := BuildExecutionPlan(r, []StageName{"no_such_stage"}); err == nil {
		t.Fatal("expected an error for an unknown stage")
	}
}

func TestPlanDetectsCycle(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewStage("a", []StageName{"b"}, noop))
	r.MustRegister(NewStage("b", []StageName{"a"}, noop))

	if _, err := BuildExecutionPlan(r, []StageName{"a"}); err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewStage("a", nil, noop))
	if err := r.Register(NewStage("a", nil, noop)); err == nil {
		t.Fatal("expected a duplicate-registration error")
	}
}

func TestEmptyPlan(t *testing.T) {
	plan, err := BuildExecutionPlan(defaultRegistry(), nil)
	if err != nil {
		t.Fatalf("BuildExecutionPlan failed: %v", err)
	}
	if len(plan.Order) != 0 {
		t.Errorf("expected empty plan, got %v", plan.Order)
	}
}
