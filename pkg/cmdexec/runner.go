// Package cmdexec executes the external storage tools (LVM, tgtadm, fdisk,
// mount, dd) and captures their output for the callers to interpret.
package cmdexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/nls90/bootplane/pkg/metrics"
	"k8s.io/klog/v2"
)

// ErrOutputNotText is returned when a tool emits output that is not valid
// UTF-8. Callers match on tool output substrings, so undecodable output is
// treated the same as a failed run.
var ErrOutputNotText = errors.New("command output is not valid UTF-8")

// Runner executes an argv vector on the local host.
//
// Output captures stdout only and fails on a non-zero exit, matching how the
// LVM tools report success through their stdout text. Combined merges stderr
// into stdout and reports the exit error separately, so that tgtadm's
// "can't find the target" message on stderr stays visible to the caller even
// on a non-zero exit.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) (string, error)
	Combined(ctx context.Context, name string, args ...string) (string, error)
}

type hostRunner struct{}

// NewRunner returns a Runner that executes commands on the local host.
func NewRunner() Runner {
	return hostRunner{}
}

func (hostRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	klog.V(5).Infof("Running command: %s %s", name, strings.Join(args, " "))

	//nolint:gosec // G204: argv comes from the drivers, not from API clients
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		metrics.RecordCommand(name, "error")
		klog.V(4).Infof("Command %s failed: %v", name, err)
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if !utf8.Valid(out) {
		metrics.RecordCommand(name, "error")
		return "", fmt.Errorf("%s: %w", name, ErrOutputNotText)
	}

	metrics.RecordCommand(name, "success")
	return string(out), nil
}

func (hostRunner) Combined(ctx context.Context, name string, args ...string) (string, error) {
	klog.V(5).Infof("Running command: %s %s", name, strings.Join(args, " "))

	//nolint:gosec // G204: argv comes from the drivers, not from API clients
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		metrics.RecordCommand(name, "error")
		klog.V(4).Infof("Command %s exited with error: %v, output: %s", name, err, string(out))
	} else {
		metrics.RecordCommand(name, "success")
	}
	if !utf8.Valid(out) {
		return "", fmt.Errorf("%s: %w", name, ErrOutputNotText)
	}
	return string(out), err
}
