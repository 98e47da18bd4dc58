package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/upsguard/upsguard/internal/eventbus"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

// ProgressFunc receives one hook_progress broadcast per hook state change.
type ProgressFunc func(eventbus.HookProgress)

// CancelFunc reports whether the running shutdown sequence has been
// cancelled, checked between priority groups and between retry waits.
type CancelFunc func() bool

// Executor runs an ordered list of Specs with priority grouping, per-hook
// timeout, retry, and abort-on-failure semantics. Lower priority numbers
// run first; hooks sharing a priority run in parallel.
type Executor struct {
	registry *Registry
	dryRun   bool
	progress ProgressFunc
	cancel   CancelFunc
}

// NewExecutor constructs an Executor. dryRun selects TestConnection() over
// Execute() for every hook.
func NewExecutor(registry *Registry, dryRun bool, progress ProgressFunc, cancel CancelFunc) *Executor {
	if progress == nil {
		progress = func(eventbus.HookProgress) {}
	}
	if cancel == nil {
		cancel = func() bool { return false }
	}
	return &Executor{registry: registry, dryRun: dryRun, progress: progress, cancel: cancel}
}

// ExecuteAll runs every enabled Spec grouped by priority, ascending, each
// group's hooks in parallel, returning the aggregate Result.
func (e *Executor) ExecuteAll(specs []Spec) Result {
	total := len(specs)
	if total == 0 {
		return Result{}
	}

	var enabled []Spec
	skippedDisabled := 0
	for _, s := range specs {
		if s.Enabled {
			enabled = append(enabled, s)
		} else {
			skippedDisabled++
		}
	}

	if len(enabled) == 0 {
		return Result{Total: total, Skipped: skippedDisabled}
	}

	groups := make(map[int][]Spec)
	var priorities []int
	for _, s := range enabled {
		if _, ok := groups[s.Priority]; !ok {
			priorities = append(priorities, s.Priority)
		}
		groups[s.Priority] = append(groups[s.Priority], s)
	}
	sort.Ints(priorities)

	result := Result{Total: total, Skipped: skippedDisabled}
	aborted := false

	completed := func() int { return result.Success + result.Failed + result.Skipped }

	for _, priority := range priorities {
		groupSpecs := groups[priority]

		if !aborted && e.cancel() {
			aborted = true
		}

		if aborted {
			for _, s := range groupSpecs {
				e.progress(eventbus.HookProgress{
					HookName: s.DisplayName, HookID: s.ID, Status: "skipped", Priority: s.Priority,
					Error:    "cancelled",
					Progress: eventbus.HookProgressCounters{Total: total, Completed: completed()},
				})
				result.Details = append(result.Details, Outcome{
					HookID: s.ID, HookName: s.DisplayName, Success: false,
					Error: "skipped: sequence cancelled or aborted", Priority: priority,
				})
				result.Skipped++
			}
			continue
		}

		for _, s := range groupSpecs {
			e.progress(eventbus.HookProgress{
				HookName: s.DisplayName, HookID: s.ID, Status: "pending", Priority: s.Priority,
				Progress: eventbus.HookProgressCounters{Total: total, Completed: completed()},
			})
		}

		outcomes := e.runGroup(groupSpecs, total, completed)

		for i, outcome := range outcomes {
			result.Details = append(result.Details, outcome)
			if outcome.Success {
				result.Success++
			} else {
				result.Failed++
				if groupSpecs[i].OnFailure == OnFailureAbort {
					aborted = true
				}
			}
		}
	}

	return result
}

// runGroup executes one priority group's hooks in parallel, one goroutine
// per hook joined by a WaitGroup.
func (e *Executor) runGroup(specs []Spec, total int, completed func() int) []Outcome {
	outcomes := make([]Outcome, len(specs))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec Spec) {
			defer wg.Done()
			outcome := e.runSingle(spec, total, func() int {
				mu.Lock()
				defer mu.Unlock()
				return completed()
			})
			outcomes[i] = outcome
		}(i, spec)
	}
	wg.Wait()

	return outcomes
}

// runSingle attempts one hook up to 1+MaxRetries times, fixed delay between
// tries. The delay stays fixed rather than exponential: a shutdown sequence
// has a hard time budget.
func (e *Executor) runSingle(spec Spec, total int, completed func() int) Outcome {
	start := time.Now()
	maxAttempts := 1 + spec.MaxRetries
	var lastErr error

	hook, err := e.registry.Create(spec.BackendID, withHookID(spec.Config, spec.ID))
	if err != nil {
		return Outcome{
			HookID: spec.ID, HookName: spec.DisplayName, Success: false,
			Error: fmt.Sprintf("configuration error: %v", err), Priority: spec.Priority,
			Duration: time.Since(start).Seconds(), Attempts: 0,
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if e.cancel() {
			return Outcome{
				HookID: spec.ID, HookName: spec.DisplayName, Success: false,
				Error: "cancelled", Cancelled: true, Priority: spec.Priority,
				Duration: time.Since(start).Seconds(), Attempts: attempt - 1,
			}
		}

		status := "executing"
		if attempt > 1 {
			status = "retrying"
		}
		e.progress(eventbus.HookProgress{
			HookName: spec.DisplayName, HookID: spec.ID, Status: status, Priority: spec.Priority,
			Progress: eventbus.HookProgressCounters{Total: total, Completed: completed()},
		})

		ok, execErr, cancelled := e.runWithTimeout(hook, spec.TimeoutSeconds)
		if cancelled {
			return Outcome{
				HookID: spec.ID, HookName: spec.DisplayName, Success: false,
				Error: "cancelled", Cancelled: true, Priority: spec.Priority,
				Duration: time.Since(start).Seconds(), Attempts: attempt,
			}
		}
		if execErr == nil && ok {
			duration := time.Since(start).Seconds()
			e.progress(eventbus.HookProgress{
				HookName: spec.DisplayName, HookID: spec.ID, Status: "success", Priority: spec.Priority,
				Duration: duration, Progress: eventbus.HookProgressCounters{Total: total, Completed: completed() + 1},
			})
			return Outcome{
				HookID: spec.ID, HookName: spec.DisplayName, Success: true, Priority: spec.Priority,
				Duration: duration, Attempts: attempt,
			}
		}

		if execErr != nil {
			lastErr = execErr
		} else {
			lastErr = fmt.Errorf("hook execution returned false")
		}

		logger.Warn("hook attempt failed", zap.String("hook", spec.ID), zap.Int("attempt", attempt), zap.Error(lastErr))

		if attempt < maxAttempts {
			if e.cancel() {
				return Outcome{
					HookID: spec.ID, HookName: spec.DisplayName, Success: false,
					Error: "cancelled", Cancelled: true, Priority: spec.Priority,
					Duration: time.Since(start).Seconds(), Attempts: attempt,
				}
			}
			e.progress(eventbus.HookProgress{
				HookName: spec.DisplayName, HookID: spec.ID, Status: "retrying", Priority: spec.Priority,
				Error: lastErr.Error(),
			})
			time.Sleep(time.Duration(spec.RetryDelaySeconds) * time.Second)
		}
	}

	duration := time.Since(start).Seconds()
	e.progress(eventbus.HookProgress{
		HookName: spec.DisplayName, HookID: spec.ID, Status: "failed", Priority: spec.Priority,
		Duration: duration, Error: lastErr.Error(),
		Progress: eventbus.HookProgressCounters{Total: total, Completed: completed() + 1},
	})
	return Outcome{
		HookID: spec.ID, HookName: spec.DisplayName, Success: false, Priority: spec.Priority,
		Error: lastErr.Error(), Duration: duration, Attempts: maxAttempts,
	}
}

// withHookID copies config with "id" set to hookID, so a backend can label
// its log lines without every caller having to remember to set it.
func withHookID(config map[string]string, hookID string) map[string]string {
	out := make(map[string]string, len(config)+1)
	for k, v := range config {
		out[k] = v
	}
	out["id"] = hookID
	return out
}

// runWithTimeout calls Execute (or TestConnection in dry-run mode) under a
// wall-clock deadline equal to the hook's configured timeout, polling the
// cancellation predicate so a long-running hook still yields a cancelled
// outcome promptly rather than only at the next retry checkpoint. The
// backing goroutine is abandoned (not killed) on cancel/timeout;
// cancellation here is cooperative, not preemptive.
func (e *Executor) runWithTimeout(hook Hook, timeoutSeconds int) (bool, error, bool) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 120
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)

	go func() {
		var ok bool
		var err error
		if e.dryRun {
			ok, err = hook.TestConnection()
		} else {
			ok, err = hook.Execute()
		}
		done <- result{ok, err}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case r := <-done:
			return r.ok, r.err, false
		case <-ctx.Done():
			return false, fmt.Errorf("hook execution timed out after %ds", timeoutSeconds), false
		case <-ticker.C:
			if e.cancel() {
				return false, nil, true
			}
		}
	}
}
