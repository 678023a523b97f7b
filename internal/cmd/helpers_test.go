package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/integra/cdrwatch"
)

// writeTestConfig creates source, log and executable fixtures under a temp
// dir and returns the path of a config file pointing at them.
func writeTestConfig(t *testing.T) (string, cdrwatch.Config) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "inbound")
	logs := filepath.Join(dir, "logs")
	for _, d := range []string{source, logs} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	exe := filepath.Join(dir, "edicdr.sh")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := cdrwatch.Config{
		SourceFolder:  source,
		ExePath:       exe,
		FileFilter:    "*.txt",
		LogPath:       logs,
		MaxRetryCount: 1,
		RetryInterval: 10,
	}
	path := filepath.Join(dir, "cdrwatch.yaml")
	if err := cdrwatch.SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	return path, cfg
}
