package cdrwatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const notifyTimeout = 5 * time.Second

// CallBudget caps launches over one dispatcher lifetime.
type CallBudget struct {
	Calls int
	Max   int
}

// Exhausted reports whether no launch is left.
func (b CallBudget) Exhausted() bool {
	return b.Calls >= b.Max
}

// Outcome is the terminal state of one dispatched item.
type Outcome string

const (
	OutcomeLaunched     Outcome = "launched"
	OutcomeAbandoned    Outcome = "abandoned"
	OutcomeSkippedEmpty Outcome = "skipped_empty"
	OutcomeSkippedQuota Outcome = "skipped_budget"
	OutcomeScanFailed   Outcome = "scan_failed"
)

// Dispatcher is the single consumer of the work queue. For each item it
// checks the folder and the call budget, launches the CDR executable, and
// retries failed launches up to MaxRetryCount times.
type Dispatcher struct {
	folder     string
	filter     string
	exePath    string
	maxRetries int
	delay      time.Duration

	queue    *WorkQueue
	launcher Launcher
	notifier Notifier
	logger   *Logger
	metrics  dispatchMetrics

	// budget is owned by the Run goroutine; calls mirrors it for readers.
	budget CallBudget
	calls  atomic.Int64

	// listFiles and sleep are replaced in tests.
	listFiles func(dir, filter string) ([]string, error)
	sleep     func(time.Duration)
}

// NewDispatcher creates a dispatcher that consumes q and gates launches on
// the contents of folder. A nil notifier disables abandonment alerts.
func NewDispatcher(cfg Config, folder string, q *WorkQueue, launcher Launcher, notifier Notifier, logger *Logger) *Dispatcher {
	if notifier == nil {
		notifier = &NopNotifier{}
	}
	return &Dispatcher{
		folder:     folder,
		filter:     cfg.FileFilter,
		exePath:    cfg.ExePath,
		maxRetries: cfg.MaxRetryCount,
		delay:      cfg.RetryDelay(),
		queue:      q,
		launcher:   launcher,
		notifier:   notifier,
		logger:     logger,
		metrics:    newDispatchMetrics(meter),
		budget:     CallBudget{Max: MaxServiceCalls},
		listFiles:  ListMatching,
		sleep:      time.Sleep,
	}
}

// Calls returns how many launches have succeeded so far.
func (d *Dispatcher) Calls() int {
	return int(d.calls.Load())
}

// Run consumes the queue until ctx is cancelled or the queue is closed.
// Cancellation is observed only between items: an item being dispatched
// finishes its whole retry sequence and post-launch delay first.
func (d *Dispatcher) Run(ctx context.Context) {
	for item := range d.queue.Drain(ctx) {
		if ctx.Err() != nil {
			return
		}
		d.Dispatch(ctx, item)
	}
}

// Dispatch runs the budget check and retry loop for a single item.
func (d *Dispatcher) Dispatch(ctx context.Context, item string) Outcome {
	ctx, span := tracer.Start(ctx, "cdr.dispatch",
		trace.WithAttributes(
			attribute.String("file", item),
			attribute.Int("budget.calls", d.budget.Calls),
			attribute.Int("budget.max", d.budget.Max),
		),
	)
	defer span.End()

	outcome, attempts := d.dispatch(ctx, item)
	span.SetAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.Int("attempts", attempts),
	)
	return outcome
}

func (d *Dispatcher) dispatch(ctx context.Context, item string) (Outcome, int) {
	files, err := d.listFiles(d.folder, d.filter)
	if err != nil {
		d.logger.Error(err, "Unable to read source folder %s while handling %s.", d.folder, item)
		return OutcomeScanFailed, 0
	}
	if len(files) == 0 {
		d.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "empty")))
		return OutcomeSkippedEmpty, 0
	}
	if d.budget.Exhausted() {
		d.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "budget")))
		return OutcomeSkippedQuota, 0
	}

	attempts := 0
	for {
		d.logger.Debug("Start running EDI CDR service located at: %s", d.exePath)
		err := d.launcher.Launch(ctx)
		if err == nil {
			d.budget.Calls++
			d.calls.Store(int64(d.budget.Calls))
			d.metrics.launches.Add(ctx, 1)
			d.logger.Debug("EDI CDR executable launched (%d/%d calls).", d.budget.Calls, d.budget.Max)
			d.sleep(d.delay)
			return OutcomeLaunched, attempts + 1
		}

		attempts++
		d.metrics.failures.Add(ctx, 1)
		trace.SpanFromContext(ctx).AddEvent("launch.failed",
			trace.WithAttributes(
				attribute.Int("attempt", attempts),
				attribute.String("error", err.Error()),
			),
		)
		if attempts > d.maxRetries {
			d.abandon(item, attempts, err)
			d.metrics.abandoned.Add(ctx, 1)
			return OutcomeAbandoned, attempts
		}
	}
}

func (d *Dispatcher) abandon(item string, attempts int, cause error) {
	msg := fmt.Sprintf("Error occurred while launching EDI CDR executable for file %s; giving up after %d attempts.", item, attempts)
	d.logger.Write(LevelError, msg, cause)

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, "cdrwatch: CDR item abandoned", msg); err != nil {
		d.logger.Write(LevelWarning, "Abandonment notification failed.", err)
	}
}
