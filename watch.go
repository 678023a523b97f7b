package cdrwatch

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// WatchBufferSize is the number of notifications fsnotify buffers before the
// adapter loop reads them. Bursts beyond this, plus whatever the kernel queue
// holds, are lost and reported as fsnotify.ErrEventOverflow.
const WatchBufferSize = 64 * 1024

// WatchEvent reports one file creation in the watched folder.
type WatchEvent struct {
	FileName string
}

// Subscription is a live directory watch. The zero value is a valid no-op
// subscription, and a nil *Subscription may be unsubscribed.
type Subscription struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

// Subscribe watches dir for created files whose names match filter and calls
// onCreate for each one on the subscription's own goroutine.
func Subscribe(dir, filter string, onCreate func(WatchEvent), logger *Logger) (*Subscription, error) {
	w, err := fsnotify.NewBufferedWatcher(WatchBufferSize)
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	s := &Subscription{
		watcher: w,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run(filter, onCreate, logger)
	return s, nil
}

func (s *Subscription) run(filter string, onCreate func(WatchEvent), logger *Logger) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !MatchFilter(filter, event.Name) {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && !info.Mode().IsRegular() {
				continue
			}
			select {
			case <-s.stop:
				return
			default:
			}
			onCreate(WatchEvent{FileName: event.Name})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Write(LevelWarning, "Watch notification buffer overflowed; some file events were lost.", err)
				continue
			}
			logger.Error(err, "Folder watcher error.")
		}
	}
}

// Unsubscribe stops delivery and closes the underlying watcher. It is
// idempotent. A callback already in flight may still run to completion.
func (s *Subscription) Unsubscribe() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.watcher == nil {
		return nil
	}
	close(s.stop)
	return s.watcher.Close()
}

// Done is closed once the delivery goroutine has exited. It is nil for a
// no-op subscription.
func (s *Subscription) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done
}
