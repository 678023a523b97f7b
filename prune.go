package cdrwatch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneResult holds the outcome of a log prune.
type PruneResult struct {
	Candidates []string // basenames of log files older than threshold
	Deleted    int      // number of files actually removed (0 in dry-run)
}

// PruneLogs finds day-stamped watcher logs in logDir whose date is more than
// days old. When execute is false it only lists them; otherwise it deletes
// them and reports how many were removed. Files whose name carries no valid
// date fall back to their modification time.
func PruneLogs(logDir string, days int, execute bool) (PruneResult, error) {
	return pruneLogs(logDir, days, execute, time.Now())
}

func pruneLogs(logDir string, days int, execute bool, now time.Time) (PruneResult, error) {
	if days <= 0 {
		return PruneResult{}, fmt.Errorf("days must be positive, got %d", days)
	}
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PruneResult{}, nil
		}
		return PruneResult{}, err
	}

	threshold := now.Add(-time.Duration(days) * 24 * time.Hour)
	var result PruneResult

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, LogFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, LogFilePrefix), ".log")
		day, err := time.ParseInLocation("20060102", stamp, now.Location())
		if err != nil {
			info, infoErr := e.Info()
			if infoErr != nil {
				continue
			}
			day = info.ModTime()
		}
		if !day.Before(threshold) {
			continue
		}
		result.Candidates = append(result.Candidates, name)
		if execute {
			if err := os.Remove(filepath.Join(logDir, name)); err == nil {
				result.Deleted++
			}
		}
	}

	return result, nil
}
