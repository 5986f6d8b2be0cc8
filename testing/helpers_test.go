package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/formstate"
)

func TestSaveRecorder(t *testing.T) {
	rec := NewSaveRecorder()
	ctx := context.Background()

	if rec.Last() != nil {
		t.Error("expected no record before any call")
	}

	if err := rec.Trigger(ctx, formstate.Record{"a": 1}); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	boom := errors.New("boom")
	rec.Fail(boom)
	if err := rec.Trigger(ctx, formstate.Record{"a": 2}); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}

	if rec.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", rec.Calls())
	}
	if rec.Last()["a"] != 2 {
		t.Errorf("expected last a=2, got %v", rec.Last())
	}
}

func TestSaveRecorder_Block(t *testing.T) {
	rec := NewSaveRecorder()
	entered := rec.Block()

	done := make(chan error, 1)
	go func() {
		done <- rec.Trigger(context.Background(), nil)
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for trigger to enter")
	}

	select {
	case <-done:
		t.Fatal("trigger returned before release")
	default:
	}

	rec.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for release")
	}
}

func TestWaitFor(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		result := WaitFor(t, 100*time.Millisecond, func() bool {
			return true
		})
		if !result {
			t.Error("expected WaitFor to return true")
		}
	})

	t.Run("condition never met", func(t *testing.T) {
		result := WaitFor(t, 50*time.Millisecond, func() bool {
			return false
		})
		if result {
			t.Error("expected WaitFor to return false on timeout")
		}
	})
}

func TestNewTestController(t *testing.T) {
	ctx := context.Background()
	c, rec := NewTestController(t, formstate.Settings{
		InitialState: formstate.Record{"name": "alice"},
		Save:         &formstate.SaveEffect{ResetOnSuccess: true},
	})

	RequireEligibility(t, c, formstate.NotConfigured)
	RequireErrors(t, c, formstate.Errors{})

	if err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if rec.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", rec.Calls())
	}
	if rec.Last()["name"] != "alice" {
		t.Errorf("expected snapshot name alice, got %v", rec.Last())
	}
	if c.Record() != nil {
		t.Error("expected reset after success")
	}
	if !WaitForState(t, c, formstate.StateIdle, 100*time.Millisecond) {
		t.Error("expected idle state")
	}
}
