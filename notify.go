package cdrwatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrUnsupportedOS is returned by LocalNotifier on platforms without a
// known desktop notification command.
var ErrUnsupportedOS = errors.New("notify: unsupported OS for local notifications")

// Notifier alerts an operator when a CDR item is abandoned.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// NewNotifier selects a notifier from the NotifyCmd setting:
// "" disables notifications, "local" uses desktop notifications, anything
// else is a shell command template.
func NewNotifier(setting string) Notifier {
	switch setting = strings.TrimSpace(setting); setting {
	case "":
		return &NopNotifier{}
	case "local":
		return &LocalNotifier{}
	default:
		return NewCmdNotifier(setting)
	}
}

// cmdRunner is the part of exec.Cmd the notifiers use.
type cmdRunner interface {
	CombinedOutput() ([]byte, error)
}

type cmdFactory func(ctx context.Context, name string, args ...string) cmdRunner

func defaultCmdFactory(ctx context.Context, name string, args ...string) cmdRunner {
	return exec.CommandContext(ctx, name, args...)
}

// runNotifyCmd runs name with args and folds any output into the error.
func runNotifyCmd(ctx context.Context, mk cmdFactory, name string, args ...string) error {
	if mk == nil {
		mk = defaultCmdFactory
	}
	out, err := mk(ctx, name, args...).CombinedOutput()
	if err == nil {
		return nil
	}
	if out = bytes.TrimSpace(out); len(out) > 0 {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// LocalNotifier raises a desktop notification on the host running the
// watcher: osascript on darwin, notify-send on linux.
type LocalNotifier struct {
	makeCmd cmdFactory
	forceOS string // empty means runtime.GOOS
}

func (n *LocalNotifier) os() string {
	if n.forceOS != "" {
		return n.forceOS
	}
	return runtime.GOOS
}

// command returns the program and arguments for the current OS.
func (n *LocalNotifier) command(title, message string) (string, []string, error) {
	switch n.os() {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return "osascript", []string{"-e", script}, nil
	case "linux":
		return "notify-send", []string{"--urgency=critical", title, message}, nil
	default:
		return "", nil, ErrUnsupportedOS
	}
}

func (n *LocalNotifier) Notify(ctx context.Context, title, message string) error {
	name, args, err := n.command(title, message)
	if err != nil {
		return err
	}
	return runNotifyCmd(ctx, n.makeCmd, name, args...)
}

// CmdNotifier runs an operator-supplied shell command. The template may
// contain {title} and {message}; both are substituted single-quoted.
type CmdNotifier struct {
	cmdTemplate string
	makeCmd     cmdFactory
}

func NewCmdNotifier(cmdTemplate string) *CmdNotifier {
	return &CmdNotifier{cmdTemplate: cmdTemplate}
}

func (n *CmdNotifier) expand(title, message string) string {
	return strings.NewReplacer(
		"{title}", shellQuote(title),
		"{message}", shellQuote(message),
	).Replace(n.cmdTemplate)
}

func (n *CmdNotifier) Notify(ctx context.Context, title, message string) error {
	return runNotifyCmd(ctx, n.makeCmd, "sh", "-c", n.expand(title, message))
}

// shellQuote wraps s in single quotes for sh. File names come from the
// partner feed and are not trusted.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (n *NopNotifier) Notify(context.Context, string, string) error {
	return nil
}
