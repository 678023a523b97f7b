package cdrwatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// catchUpWorkers bounds the goroutines pushing pre-existing files at startup.
const catchUpWorkers = 4

// LockFileName is the run lock created in the log directory.
const LockFileName = "cdrwatch.lock"

var (
	// ErrAlreadyRunning is returned when StartFolderWatcher is called twice
	// without an intervening StopFolderWatcher.
	ErrAlreadyRunning = errors.New("folder watcher already running")

	// ErrLocked is returned when another watcher holds the run lock.
	ErrLocked = errors.New("another cdrwatch instance holds the run lock")
)

// Service wires the watch adapter, the work queue and the dispatcher into
// one start/stop lifecycle.
type Service struct {
	cfg      Config
	logger   *Logger
	launcher Launcher
	notifier Notifier

	mu          sync.Mutex
	running     bool
	runID       string
	folder      string
	logFileName string
	queue       *WorkQueue
	sub         *Subscription
	dispatcher  *Dispatcher
	cancel      context.CancelFunc
	group       *errgroup.Group
	// drained is closed once the run's goroutines have exited and its
	// lock is released.
	drained chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithLauncher replaces the exec-based launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Service) { s.launcher = l }
}

// WithNotifier replaces the notifier derived from Config.NotifyCmd.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a stopped Service.
func NewService(cfg Config, logger *Logger, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.launcher == nil {
		s.launcher = NewExecLauncher(cfg.ExePath, logger)
	}
	if s.notifier == nil {
		s.notifier = NewNotifier(cfg.NotifyCmd)
	}
	logger.Info("EDI CDR watcher with details : SourceFolderPath: %s", cfg.SourceFolder)
	return s
}

// StartFolderWatcher starts watching folderPath, or the configured source
// folder when folderPath is empty. Files already present are queued too.
// Only one service may run per log directory; the lock lives there.
// If a previous run is still finishing its in-flight item, Start waits for
// it, bounded by ctx.
func (s *Service) StartFolderWatcher(ctx context.Context, folderPath string) (err error) {
	defer func() {
		if err != nil {
			s.logger.Error(err, "EDI CDR Service Folder Watcher Error while starting.")
		}
	}()

	if err := s.awaitDrain(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	folder := folderPath
	if folder == "" {
		folder = s.cfg.SourceFolder
	}
	folder = trimTrailingSeparator(folder)
	runID := uuid.NewString()
	logFileName := s.logger.Path()

	ctx, span := tracer.Start(ctx, "cdr.start",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("folder", folder),
			attribute.String("filter", s.cfg.FileFilter),
		),
	)
	defer span.End()

	s.logger.Debug("Starting EDI CDR Folder Watcher on Folder Path:%s and Filter type: %s, Log File: %s, Run: %s",
		folder, s.cfg.FileFilter, logFileName, runID)

	existing, err := ListMatching(folder, s.cfg.FileFilter)
	if err != nil {
		return fmt.Errorf("scan %s: %w", folder, err)
	}

	lock := flock.New(filepath.Join(s.cfg.LogPath, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}

	queue := NewWorkQueue(QueueCapacity)
	// The run context is detached from ctx: only StopFolderWatcher ends a run.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	sub, err := Subscribe(folder, s.cfg.FileFilter, func(ev WatchEvent) {
		s.logger.Info("EDI CDR Source folder have a file with Name: %s.", ev.FileName)
		if err := queue.Push(runCtx, ev.FileName); err != nil {
			s.logger.Write(LevelWarning, fmt.Sprintf("Dropped %s: watcher is stopping.", ev.FileName), err)
		}
	}, s.logger)
	if err != nil {
		cancel()
		lock.Unlock()
		return err
	}

	dispatcher := NewDispatcher(s.cfg, folder, queue, s.launcher, s.notifier, s.logger)
	group := new(errgroup.Group)
	group.Go(func() error {
		dispatcher.Run(runCtx)
		return nil
	})
	group.Go(func() error {
		return s.catchUp(runCtx, queue, existing)
	})

	s.running = true
	s.runID = runID
	s.folder = folder
	s.logFileName = logFileName
	s.queue = queue
	s.sub = sub
	s.dispatcher = dispatcher
	s.cancel = cancel
	s.group = group
	s.drained = make(chan struct{})

	go s.releaseWhenDrained(group, lock, s.drained)

	s.logger.Debug("EDI CDR service to be executed is located at: %s", s.cfg.ExePath)
	s.logger.Debug("Successfully EDI CDR file Watcher service Started.")
	return nil
}

// awaitDrain blocks until the previous run, if any, has fully exited.
func (s *Service) awaitDrain(ctx context.Context) error {
	s.mu.Lock()
	running, drained := s.running, s.drained
	s.mu.Unlock()
	if running {
		return ErrAlreadyRunning
	}
	if drained == nil {
		return nil
	}
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for previous run to finish: %w", ctx.Err())
	}
}

// releaseWhenDrained holds the run lock until every goroutine of the run has
// exited, so no other dispatcher can launch while this one still might.
func (s *Service) releaseWhenDrained(group *errgroup.Group, lock *flock.Flock, drained chan struct{}) {
	defer close(drained)
	group.Wait()
	if err := lock.Unlock(); err != nil {
		s.logger.Write(LevelWarning, "Failed to release the run lock.", err)
	}
}

// catchUp pushes files that existed before the watch began. Pushes run in
// parallel; the queue serializes insertion.
func (s *Service) catchUp(ctx context.Context, queue *WorkQueue, files []string) error {
	if len(files) == 0 {
		return nil
	}
	s.logger.Info("Source folder already have files to Process.So remaining files processing Task started.")

	pool := pond.NewPool(catchUpWorkers, pond.WithContext(ctx))
	for _, file := range files {
		pool.Submit(func() {
			if err := queue.Push(ctx, file); err != nil {
				s.logger.Write(LevelWarning, fmt.Sprintf("Pre-existing file %s was not queued.", file), err)
			}
		})
	}
	pool.StopAndWait()

	s.logger.Info("Remaining files processing Task finished.")
	return nil
}

// StopFolderWatcher unsubscribes the watcher and asks the dispatcher to stop.
// An item already being dispatched runs to completion; the run lock is held
// until it has. Calling it on a service that was never started, or twice, is
// harmless.
func (s *Service) StopFolderWatcher() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.sub
	if sub == nil {
		sub = &Subscription{}
	}
	if err := sub.Unsubscribe(); err != nil {
		s.logger.Write(LevelError, "EDI CDR file Watcher service stopped with Error.", err)
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.queue != nil {
		s.queue.Close()
	}
	s.running = false
	s.logger.Debug("EDI CDR file Watcher service stopped.")
	return nil
}

// Wait blocks until the dispatcher and catch-up goroutines of the most
// recent run have exited and its run lock is released.
func (s *Service) Wait() error {
	s.mu.Lock()
	group, drained := s.group, s.drained
	s.mu.Unlock()
	if group == nil {
		return nil
	}
	err := group.Wait()
	<-drained
	return err
}

// Status describes the current run.
type Status struct {
	Running     bool   `json:"running"`
	RunID       string `json:"run_id,omitempty"`
	Folder      string `json:"folder,omitempty"`
	LogFile     string `json:"log_file,omitempty"`
	Queued      int    `json:"queued"`
	Calls       int    `json:"calls"`
	MaxCalls    int    `json:"max_calls"`
	MaxRetries  int    `json:"max_retries"`
	RetryMillis int    `json:"retry_interval_ms"`
}

// Status reports the state of the current or most recent run.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:     s.running,
		RunID:       s.runID,
		Folder:      s.folder,
		LogFile:     s.logFileName,
		MaxCalls:    MaxServiceCalls,
		MaxRetries:  s.cfg.MaxRetryCount,
		RetryMillis: s.cfg.RetryInterval,
	}
	if s.queue != nil {
		st.Queued = s.queue.Len()
	}
	if s.dispatcher != nil {
		st.Calls = s.dispatcher.Calls()
	}
	return st
}
