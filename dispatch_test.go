package cdrwatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// newTestDispatcher builds a dispatcher over a folder that always lists files.
func newTestDispatcher(t *testing.T, cfg Config, launcher Launcher, notifier Notifier) (*Dispatcher, *WorkQueue, *Logger) {
	t.Helper()
	logger := newTestLogger(t)
	q := NewWorkQueue(QueueCapacity)
	d := NewDispatcher(cfg, cfg.SourceFolder, q, launcher, notifier, logger)
	d.listFiles = func(dir, filter string) ([]string, error) {
		return []string{dir + "/claim.txt"}, nil
	}
	d.sleep = func(time.Duration) {}
	return d, q, logger
}

func TestCallBudget_Exhausted(t *testing.T) {
	tests := []struct {
		budget CallBudget
		want   bool
	}{
		{CallBudget{Calls: 0, Max: 2}, false},
		{CallBudget{Calls: 1, Max: 2}, false},
		{CallBudget{Calls: 2, Max: 2}, true},
		{CallBudget{Calls: 0, Max: 0}, true},
	}
	for _, tt := range tests {
		if got := tt.budget.Exhausted(); got != tt.want {
			t.Errorf("%+v.Exhausted() = %v, want %v", tt.budget, got, tt.want)
		}
	}
}

func TestDispatch_LaunchesAndSleeps(t *testing.T) {
	// given
	cfg := testConfig(t.TempDir())
	cfg.RetryInterval = 250
	launcher := &fakeLauncher{}
	d, _, _ := newTestDispatcher(t, cfg, launcher, nil)
	var slept []time.Duration
	d.sleep = func(dur time.Duration) { slept = append(slept, dur) }

	// when
	outcome := d.Dispatch(context.Background(), "claim.txt")

	// then
	if outcome != OutcomeLaunched {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeLaunched)
	}
	if launcher.Calls() != 1 || d.Calls() != 1 {
		t.Errorf("launcher calls = %d, budget calls = %d, want 1/1", launcher.Calls(), d.Calls())
	}
	if len(slept) != 1 || slept[0] != 250*time.Millisecond {
		t.Errorf("slept = %v, want [250ms]", slept)
	}
}

func TestDispatch_RetryBoundAndSingleErrorRecord(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("max_retries_%d", maxRetries), func(t *testing.T) {
			// given: every launch fails
			cfg := testConfig(t.TempDir())
			cfg.MaxRetryCount = maxRetries
			fail := errors.New("exec format error")
			results := make([]error, 10)
			for i := range results {
				results[i] = fail
			}
			launcher := &fakeLauncher{results: results}
			notifier := &recordingNotifier{}
			d, _, logger := newTestDispatcher(t, cfg, launcher, notifier)

			// when
			outcome := d.Dispatch(context.Background(), "claim.txt")

			// then
			if outcome != OutcomeAbandoned {
				t.Errorf("outcome = %q, want %q", outcome, OutcomeAbandoned)
			}
			if got, want := launcher.Calls(), maxRetries+1; got != want {
				t.Errorf("attempts = %d, want %d", got, want)
			}
			if d.Calls() != 0 {
				t.Errorf("budget calls = %d after failures, want 0", d.Calls())
			}
			lines := logLines(t, logger)
			if n := countContaining(lines, "- Error -"); n != 1 {
				t.Errorf("error records = %d, want 1\n%s", n, strings.Join(lines, "\n"))
			}
			if n := countContaining(lines, "exec format error"); n != 1 {
				t.Errorf("error cause logged %d times, want 1", n)
			}
			if len(notifier.Messages()) != 1 {
				t.Errorf("notifications = %d, want 1", len(notifier.Messages()))
			}
		})
	}
}

func TestDispatch_SucceedsAfterFailures(t *testing.T) {
	// given: two failures then success, with two retries allowed
	cfg := testConfig(t.TempDir())
	cfg.MaxRetryCount = 2
	fail := errors.New("text file busy")
	launcher := &fakeLauncher{results: []error{fail, fail}}
	notifier := &recordingNotifier{}
	d, _, logger := newTestDispatcher(t, cfg, launcher, notifier)

	// when
	outcome := d.Dispatch(context.Background(), "claim.txt")

	// then
	if outcome != OutcomeLaunched {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeLaunched)
	}
	if launcher.Calls() != 3 {
		t.Errorf("attempts = %d, want 3", launcher.Calls())
	}
	if n := countContaining(logLines(t, logger), "- Error -"); n != 0 {
		t.Errorf("error records = %d, want 0", n)
	}
	if len(notifier.Messages()) != 0 {
		t.Errorf("notified on success: %v", notifier.Messages())
	}
}

func TestDispatcher_RunCallBudgetCapsLaunches(t *testing.T) {
	// given: five items are queued before the dispatcher starts
	cfg := testConfig(t.TempDir())
	launcher := &fakeLauncher{}
	d, q, _ := newTestDispatcher(t, cfg, launcher, nil)
	scans := 0
	d.listFiles = func(dir, filter string) ([]string, error) {
		scans++
		return []string{dir + "/claim.txt"}, nil
	}
	for i := range 5 {
		if err := q.Push(context.Background(), fmt.Sprintf("claim%d.txt", i)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	q.Close()

	// when
	d.Run(context.Background())

	// then: every item was consumed but only the budget was launched
	if scans != 5 {
		t.Errorf("items dispatched = %d, want 5", scans)
	}
	if launcher.Calls() != MaxServiceCalls || d.Calls() != MaxServiceCalls {
		t.Errorf("launches = %d, budget calls = %d, want %d", launcher.Calls(), d.Calls(), MaxServiceCalls)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
}

func TestDispatch_SkipsWhenFolderEmpty(t *testing.T) {
	// given
	cfg := testConfig(t.TempDir())
	launcher := &fakeLauncher{}
	d, _, logger := newTestDispatcher(t, cfg, launcher, nil)
	d.listFiles = ListMatching

	// when: the real folder holds nothing matching
	touch(t, cfg.SourceFolder, "readme.md")
	outcome := d.Dispatch(context.Background(), "claim.txt")

	// then
	if outcome != OutcomeSkippedEmpty {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeSkippedEmpty)
	}
	if launcher.Calls() != 0 {
		t.Errorf("launches = %d, want 0", launcher.Calls())
	}
	if n := countContaining(logLines(t, logger), "- Error -"); n != 0 {
		t.Errorf("skip should be silent, got %d error records", n)
	}
}

func TestDispatch_ScanFailureIsLoggedAndSkipped(t *testing.T) {
	// given
	cfg := testConfig(t.TempDir())
	launcher := &fakeLauncher{}
	d, _, logger := newTestDispatcher(t, cfg, launcher, nil)
	d.listFiles = func(string, string) ([]string, error) {
		return nil, errors.New("permission denied")
	}

	// when
	outcome := d.Dispatch(context.Background(), "claim.txt")

	// then
	if outcome != OutcomeScanFailed {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeScanFailed)
	}
	if launcher.Calls() != 0 {
		t.Errorf("launches = %d, want 0", launcher.Calls())
	}
	if n := countContaining(logLines(t, logger), "permission denied"); n != 1 {
		t.Errorf("scan error logged %d times, want 1", n)
	}
}

func TestDispatcher_RunDrainsClosedQueue(t *testing.T) {
	// given
	cfg := testConfig(t.TempDir())
	launcher := &fakeLauncher{}
	d, q, _ := newTestDispatcher(t, cfg, launcher, nil)
	for _, item := range []string{"a.txt", "b.txt", "c.txt"} {
		if err := q.Push(context.Background(), item); err != nil {
			t.Fatal(err)
		}
	}
	q.Close()

	// when
	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	// then: every buffered item is consumed, and only two launch
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the queue was closed and drained")
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
	if launcher.Calls() != MaxServiceCalls {
		t.Errorf("launches = %d, want %d", launcher.Calls(), MaxServiceCalls)
	}
}

func TestDispatcher_RunExitsOnCancelWhileIdle(t *testing.T) {
	// given
	cfg := testConfig(t.TempDir())
	d, _, _ := newTestDispatcher(t, cfg, &fakeLauncher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// when
	cancel()

	// then
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel on an empty queue")
	}
}

func TestDispatcher_CancelObservedBetweenItems(t *testing.T) {
	// given: a launcher that blocks until released
	cfg := testConfig(t.TempDir())
	started := make(chan struct{})
	launcher := &fakeLauncher{started: started}
	d, q, _ := newTestDispatcher(t, cfg, launcher, nil)
	ctx, cancel := context.WithCancel(context.Background())

	q.Push(ctx, "first.txt")
	q.Push(ctx, "second.txt")

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// when: cancel while the first item is mid-launch
	<-started
	cancel()

	// then: the first item completes, the second is never dispatched
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if launcher.Calls() != 1 {
		t.Errorf("launches = %d, want 1", launcher.Calls())
	}
	if d.Calls() != 1 {
		t.Errorf("budget calls = %d, want 1 (in-flight item completes)", d.Calls())
	}
}
