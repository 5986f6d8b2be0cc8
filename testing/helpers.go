// Package testing provides test utilities and helpers for formstate
// controllers.
package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/formstate"
)

// SaveRecorder is a save effect that records every invocation. Set Err to
// make the next calls fail; call Block before submitting to hold calls until
// Release.
type SaveRecorder struct {
	mu      sync.Mutex
	calls   []formstate.Record
	err     error
	gate    chan struct{}
	entered chan struct{}
}

// NewSaveRecorder creates an empty recorder.
func NewSaveRecorder() *SaveRecorder {
	return &SaveRecorder{}
}

// Trigger implements the save trigger.
func (r *SaveRecorder) Trigger(ctx context.Context, record formstate.Record) error {
	r.mu.Lock()
	r.calls = append(r.calls, record)
	gate, entered, err := r.gate, r.entered, r.err
	r.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Effect returns a SaveEffect backed by the recorder.
func (r *SaveRecorder) Effect(resetOnSuccess bool) *formstate.SaveEffect {
	return &formstate.SaveEffect{
		Trigger:        r.Trigger,
		ResetOnSuccess: resetOnSuccess,
	}
}

// Fail makes subsequent calls return err. Pass nil to succeed again.
func (r *SaveRecorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Block holds subsequent calls until Release. The returned channel receives
// once per call that has entered the trigger.
func (r *SaveRecorder) Block() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = make(chan struct{})
	r.entered = make(chan struct{}, 16)
	return r.entered
}

// Release lets blocked calls return.
func (r *SaveRecorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
}

// Calls returns the number of invocations.
func (r *SaveRecorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Last returns the record passed to the latest invocation, or nil.
func (r *SaveRecorder) Last() formstate.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the controller reaches the expected state or timeout occurs.
func WaitForState(t *testing.T, c *formstate.Controller, expected formstate.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return c.State() == expected
	})
}

// RequireEligibility fails the test immediately if the controller's verdict differs.
func RequireEligibility(t *testing.T, c *formstate.Controller, expected formstate.Eligibility) {
	t.Helper()
	if got := c.Eligibility(); got != expected {
		t.Fatalf("expected eligibility %s, got %s (checks %v, errors %v)", expected, got, c.Checks(), c.Errors())
	}
}

// RequireErrors fails the test if the error map does not equal expected.
func RequireErrors(t *testing.T, c *formstate.Controller, expected formstate.Errors) {
	t.Helper()
	got := c.Errors()
	if len(got) != len(expected) {
		t.Fatalf("expected errors %v, got %v", expected, got)
	}
	for field, msg := range expected {
		if g, ok := got[field]; !ok || g != msg {
			t.Fatalf("expected errors %v, got %v", expected, got)
		}
	}
}

// NewTestController creates a controller whose save trigger is a recorder.
// ResetOnSuccess is taken from settings.Save when present.
func NewTestController(t *testing.T, settings formstate.Settings) (*formstate.Controller, *SaveRecorder) {
	t.Helper()
	rec := NewSaveRecorder()
	reset := settings.Save != nil && settings.Save.ResetOnSuccess
	settings.Save = rec.Effect(reset)
	return formstate.New(settings), rec
}
