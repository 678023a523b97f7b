package cdrwatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorBlue   = "\033[34m"
)

// LogFilePrefix starts every day-stamped log file name.
const LogFilePrefix = "EDI_CDR_FileWatcher_LOG_"

// Level is the severity of a log record.
type Level int

const (
	LevelException Level = iota
	LevelError
	LevelWarning
	LevelInformation
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelException:
		return "Exception"
	case LevelError:
		return "Error"
	case LevelWarning:
		return "Warning"
	case LevelInformation:
		return "Information"
	case LevelDebug:
		return "Debug"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

func (l Level) color() string {
	switch l {
	case LevelException, LevelError:
		return ColorRed
	case LevelWarning:
		return ColorYellow
	case LevelInformation:
		return ColorCyan
	default:
		return ColorBlue
	}
}

// LogFileName returns the day-stamped log file name for t.
func LogFileName(t time.Time) string {
	return LogFilePrefix + t.Format("20060102") + ".log"
}

// Logger appends timestamped records to a day-stamped file under dir.
// The file is opened and closed on every write so independent writers never
// hold a lock on it. A nil *Logger discards everything.
type Logger struct {
	dir     string
	verbose bool
	now     func() time.Time

	consoleMu sync.Mutex
	console   io.Writer
	color     bool
}

// NewLogger creates a Logger writing under dir and echoing to stderr.
func NewLogger(dir string, verbose bool) *Logger {
	return NewLoggerWithConsole(dir, verbose, os.Stderr)
}

// NewLoggerWithConsole is NewLogger with an explicit console writer.
// console may be nil to disable the echo.
func NewLoggerWithConsole(dir string, verbose bool, console io.Writer) *Logger {
	l := &Logger{
		dir:     dir,
		verbose: verbose,
		now:     time.Now,
		console: console,
	}
	if f, ok := console.(*os.File); ok {
		l.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return l
}

// Path returns the file the next record will be appended to.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return filepath.Join(l.dir, LogFileName(l.now()))
}

// Write records message at level, followed by err when non-nil.
// File errors are reported on the console and otherwise swallowed.
func (l *Logger) Write(level Level, message string, err error) {
	if l == nil {
		return
	}
	ts := l.now()
	var errText string
	if err != nil {
		errText = err.Error()
	}
	line := fmt.Sprintf("[%s] - %s - %s  %s", ts.Format("2006-01-02 15:04:05"), level, message, errText)

	if appendErr := l.append(ts, line); appendErr != nil {
		l.echo(LevelWarning, fmt.Sprintf("log file: %v", appendErr))
	}
	if level != LevelDebug || l.verbose {
		l.echo(level, line)
	}
}

func (l *Logger) append(ts time.Time, line string) error {
	path := filepath.Join(l.dir, LogFileName(ts))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *Logger) echo(level Level, line string) {
	if l.console == nil {
		return
	}
	l.consoleMu.Lock()
	defer l.consoleMu.Unlock()
	if l.color {
		fmt.Fprintf(l.console, "%s%s%s\n", level.color(), line, ColorReset)
		return
	}
	fmt.Fprintln(l.console, line)
}

func (l *Logger) Debug(format string, args ...any) {
	l.Write(LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Info(format string, args ...any) {
	l.Write(LevelInformation, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warn(format string, args ...any) {
	l.Write(LevelWarning, fmt.Sprintf(format, args...), nil)
}

// Error logs at LevelError with err appended after the message.
func (l *Logger) Error(err error, format string, args ...any) {
	l.Write(LevelError, fmt.Sprintf(format, args...), err)
}
