package cdrwatch

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DoctorCheck is the result of one environment check.
type DoctorCheck struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Path     string `json:"path"`
	Detail   string `json:"detail"`
	OK       bool   `json:"ok"`
}

// RunDoctor checks that cfg points at a usable executable, source folder and
// log directory, and that the notifier command (if any) is installed.
func RunDoctor(cfg Config) []DoctorCheck {
	checks := []DoctorCheck{
		checkExecutable(cfg.ExePath),
		checkDir("source folder", cfg.SourceFolder, false),
		checkDir("log directory", cfg.LogPath, true),
		checkFilter(cfg.FileFilter),
	}
	if cfg.NotifyCmd == "local" {
		checks = append(checks, checkLocalNotifier())
	}
	return checks
}

func checkExecutable(path string) DoctorCheck {
	check := DoctorCheck{Name: "executable", Required: true, Path: path}
	if path == "" {
		check.Detail = "EDICDRExePath is not set"
		return check
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	check.Path = resolved
	check.OK = true
	check.Detail = "found"
	return check
}

func checkDir(name, path string, writable bool) DoctorCheck {
	check := DoctorCheck{Name: name, Required: true, Path: path}
	if path == "" {
		check.Detail = "not set"
		return check
	}
	info, err := os.Stat(path)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	if !info.IsDir() {
		check.Detail = "not a directory"
		return check
	}
	if writable {
		tmp, err := os.CreateTemp(path, ".cdrwatch-doctor-*")
		if err != nil {
			check.Detail = fmt.Sprintf("not writable: %v", err)
			return check
		}
		tmp.Close()
		os.Remove(tmp.Name())
	}
	if files, err := ListMatching(path, "*"); err == nil {
		check.Detail = fmt.Sprintf("%d file(s)", len(files))
	}
	check.Path, _ = filepath.Abs(path)
	check.OK = true
	return check
}

func checkFilter(filter string) DoctorCheck {
	check := DoctorCheck{Name: "file filter", Required: true, Path: filter}
	if filter == "" {
		check.Detail = "SourceFileTypeFilter is not set"
		return check
	}
	if _, err := filepath.Match(filter, ""); err != nil {
		check.Detail = err.Error()
		return check
	}
	check.OK = true
	check.Detail = "valid"
	return check
}

func checkLocalNotifier() DoctorCheck {
	name := "notify-send"
	if (&LocalNotifier{}).os() == "darwin" {
		name = "osascript"
	}
	check := DoctorCheck{Name: name, Required: false}
	path, err := exec.LookPath(name)
	if err != nil {
		check.Detail = "not found"
		return check
	}
	check.Path = path
	check.OK = true
	check.Detail = "found"
	return check
}

// FormatDoctorJSON returns the checks as a JSON array string.
func FormatDoctorJSON(checks []DoctorCheck) (string, error) {
	data, err := json.Marshal(checks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
