package cdrwatch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Defaults offered by init.
const (
	defaultFilter        = "*.*"
	defaultLogPath       = "logs"
	defaultMaxRetryCount = 3
	defaultRetryInterval = 5000
)

// RunInitWithReader interactively builds a config file at configPath,
// reading answers from r and writing prompts to w. It refuses to overwrite
// an existing file.
func RunInitWithReader(configPath string, r io.Reader, w io.Writer) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	scanner := bufio.NewScanner(r)
	ask := func(prompt, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(w, "%s [%s]: ", prompt, def)
		} else {
			fmt.Fprintf(w, "%s: ", prompt)
		}
		var answer string
		if scanner.Scan() {
			answer = strings.TrimSpace(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		if answer == "" {
			answer = def
		}
		return answer, nil
	}
	askInt := func(prompt string, def int) (int, error) {
		s, err := ask(prompt, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", prompt, err)
		}
		return n, nil
	}

	var cfg Config
	var err error
	if cfg.SourceFolder, err = ask("Source folder to watch", ""); err != nil {
		return err
	}
	if cfg.ExePath, err = ask("EDI CDR executable path", ""); err != nil {
		return err
	}
	if cfg.FileFilter, err = ask("Source file filter", defaultFilter); err != nil {
		return err
	}
	if cfg.LogPath, err = ask("Log directory", defaultLogPath); err != nil {
		return err
	}
	if cfg.MaxRetryCount, err = askInt("Max retry count", defaultMaxRetryCount); err != nil {
		return err
	}
	if cfg.RetryInterval, err = askInt("Retry interval (ms)", defaultRetryInterval); err != nil {
		return err
	}
	cfg.SourceFolder = trimTrailingSeparator(cfg.SourceFolder)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(w, "\nConfig saved to %s\n", configPath)
	fmt.Fprintf(w, "  Source folder: %s (%s)\n", cfg.SourceFolder, cfg.FileFilter)
	fmt.Fprintf(w, "  Executable:    %s\n", cfg.ExePath)
	fmt.Fprintf(w, "  Logs:          %s\n", cfg.LogPath)
	return nil
}
