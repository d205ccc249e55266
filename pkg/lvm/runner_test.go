package lvm

import (
	"context"
	"strings"
)

// fakeRunner serves canned output keyed by the joined argv and records every
// invocation.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (r *fakeRunner) run(name string, args []string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, key)
	if err, ok := r.errs[key]; ok {
		return "", err
	}
	return r.outputs[key], nil
}

func (r *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	return r.run(name, args)
}

func (r *fakeRunner) Combined(_ context.Context, name string, args ...string) (string, error) {
	return r.run(name, args)
}

func (r *fakeRunner) on(command, output string) {
	r.outputs[command] = output
}
