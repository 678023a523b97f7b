package cdrwatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeLauncher returns the queued results in order, then nil forever.
type fakeLauncher struct {
	mu      sync.Mutex
	results []error
	calls   int
	started chan struct{} // receives once per call when non-nil
}

func (f *fakeLauncher) Launch(_ context.Context) error {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	started := f.started
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	return err
}

func (f *fakeLauncher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, title+": "+message)
	return nil
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// newTestLogger returns a logger writing under a temp dir with no console echo.
func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	return NewLoggerWithConsole(t.TempDir(), true, nil)
}

// logLines returns the records written so far by l.
func logLines(t *testing.T, l *Logger) []string {
	t.Helper()
	data, err := os.ReadFile(l.Path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// countContaining counts lines that contain substr.
func countContaining(lines []string, substr string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// touch creates an empty file at dir/name and returns its path.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("ISA*00*"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func testConfig(dir string) Config {
	return Config{
		SourceFolder:  dir,
		ExePath:       "/opt/edicdr/run",
		FileFilter:    "*.txt",
		LogPath:       dir,
		MaxRetryCount: 2,
		RetryInterval: 0,
	}
}
