package hooks

import (
	"errors"
	"testing"

	"github.com/upsguard/upsguard/internal/eventbus"
)

func testSpec(id string, priority int, backendID string, onFailure OnFailurePolicy, cfg map[string]string) Spec {
	return Spec{
		ID: id, DisplayName: id, BackendID: backendID, Priority: priority,
		Enabled: true, OnFailure: onFailure, TimeoutSeconds: 2, MaxRetries: 0, RetryDelaySeconds: 0,
		Config: cfg,
	}
}

func TestExecuteAll_PriorityOrderAndSuccess(t *testing.T) {
	registry := NewRegistry()
	var progressed []eventbus.HookProgress
	executor := NewExecutor(registry, false, func(p eventbus.HookProgress) {
		progressed = append(progressed, p)
	}, nil)

	specs := []Spec{
		testSpec("b", 2, "mock", OnFailureContinue, nil),
		testSpec("a", 1, "mock", OnFailureContinue, nil),
	}

	result := executor.ExecuteAll(specs)
	if result.Total != 2 || result.Success != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// priority 1 ("a") must be fully reported before priority 2 ("b") starts.
	firstBIndex, lastAIndex := -1, -1
	for i, p := range progressed {
		if p.HookID == "a" {
			lastAIndex = i
		}
		if p.HookID == "b" && firstBIndex == -1 {
			firstBIndex = i
		}
	}
	if lastAIndex == -1 || firstBIndex == -1 || lastAIndex > firstBIndex {
		t.Fatalf("expected priority 1 hook to be fully reported before priority 2: last a=%d first b=%d", lastAIndex, firstBIndex)
	}
}

func TestExecuteAll_SkipsDisabled(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry, false, nil, nil)

	specs := []Spec{
		{ID: "a", DisplayName: "a", BackendID: "mock", Priority: 1, Enabled: false},
		testSpec("b", 1, "mock", OnFailureContinue, nil),
	}

	result := executor.ExecuteAll(specs)
	if result.Total != 2 || result.Skipped != 1 || result.Success != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteAll_AbortOnFailureSkipsLaterGroups(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry, false, nil, nil)

	specs := []Spec{
		testSpec("fails", 1, "mock", OnFailureAbort, map[string]string{"fail": "true"}),
		testSpec("never-runs", 2, "mock", OnFailureContinue, nil),
	}

	result := executor.ExecuteAll(specs)
	if result.Failed != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 failed + 1 skipped, got %+v", result)
	}
	for _, d := range result.Details {
		if d.HookID == "never-runs" && d.Success {
			t.Fatalf("never-runs hook should have been skipped, not executed")
		}
	}
}

func TestExecuteAll_ContinueOnFailureRunsLaterGroups(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry, false, nil, nil)

	specs := []Spec{
		testSpec("fails", 1, "mock", OnFailureContinue, map[string]string{"fail": "true"}),
		testSpec("runs", 2, "mock", OnFailureContinue, nil),
	}

	result := executor.ExecuteAll(specs)
	if result.Failed != 1 || result.Success != 1 {
		t.Fatalf("expected 1 failed + 1 success, got %+v", result)
	}
}

func TestExecuteAll_RetriesUpToMaxRetries(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry, false, nil, nil)

	spec := testSpec("flaky", 1, "mock", OnFailureContinue, map[string]string{"fail": "true"})
	spec.MaxRetries = 2

	result := executor.ExecuteAll([]Spec{spec})
	if result.Failed != 1 {
		t.Fatalf("expected hook to ultimately fail, got %+v", result)
	}
	if result.Details[0].Attempts != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", result.Details[0].Attempts)
	}
}

func TestExecuteAll_CancelSkipsRemainingGroups(t *testing.T) {
	registry := NewRegistry()
	cancelled := false
	executor := NewExecutor(registry, false, nil, func() bool { return cancelled })

	specs := []Spec{
		testSpec("a", 1, "mock", OnFailureContinue, nil),
		testSpec("b", 2, "mock", OnFailureContinue, nil),
	}

	// cancel before the executor even starts the first group.
	cancelled = true
	result := executor.ExecuteAll(specs)
	if result.Skipped != 2 {
		t.Fatalf("expected both groups skipped once cancelled, got %+v", result)
	}
}

func TestExecuteAll_UnknownBackendFailsThatHookOnly(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry, false, nil, nil)

	specs := []Spec{
		testSpec("bad", 1, "not_a_real_backend", OnFailureContinue, nil),
		testSpec("good", 1, "mock", OnFailureContinue, nil),
	}

	result := executor.ExecuteAll(specs)
	if result.Failed != 1 || result.Success != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

// testConnOnlyHook fails Execute and passes TestConnection, so a success
// from it can only come from TestConnection.
type testConnOnlyHook struct{}

func (testConnOnlyHook) Execute() (bool, error) {
	return false, errors.New("Execute called in dry-run mode")
}
func (testConnOnlyHook) TestConnection() (bool, error) { return true, nil }

func TestExecuteAll_DryRunUsesTestConnection(t *testing.T) {
	registry := NewRegistry()
	registry.Register("conn_only", func(map[string]string) (Hook, error) { return testConnOnlyHook{}, nil })
	executor := NewExecutor(registry, true, nil, nil)

	result := executor.ExecuteAll([]Spec{testSpec("a", 1, "conn_only", OnFailureContinue, nil)})
	if result.Success != 1 {
		t.Fatalf("expected dry-run success via TestConnection, got %+v", result)
	}
}

func TestExecuteAll_EmptySpecsReturnsZeroResult(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry, false, nil, nil)

	result := executor.ExecuteAll(nil)
	if result.Total != 0 || result.Success != 0 || result.Failed != 0 || result.Skipped != 0 || len(result.Details) != 0 {
		t.Fatalf("expected zero-value result for empty specs, got %+v", result)
	}
}
