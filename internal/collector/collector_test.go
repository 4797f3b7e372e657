package collector

import (
	"context"
	"strings"

	"codeberg.org/mutker/macstatd/internal/errors"
)

// fakeRunner serves canned command output keyed by the full argv line.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)

	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if out, ok := f.outputs[key]; ok {
		return []byte(out), nil
	}

	errFactory := errors.New()
	return nil, errFactory.New(errors.ErrCommandNotFound).WithData(key)
}
