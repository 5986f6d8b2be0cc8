package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zoobzio/formstate"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := New(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestProvider_Callbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := New(reg, WithConstLabels(prometheus.Labels{"form": "profile"}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p.OnChangeApplied(3)
	p.OnChangeApplied(1)
	if got := testutil.ToFloat64(p.changes); got != 2 {
		t.Errorf("expected 2 change batches, got %v", got)
	}
	if got := testutil.ToFloat64(p.fields); got != 4 {
		t.Errorf("expected 4 fields, got %v", got)
	}

	p.OnStateChange(formstate.StateIdle, formstate.StateSaving)
	if got := testutil.ToFloat64(p.busy); got != 1 {
		t.Errorf("expected busy gauge 1, got %v", got)
	}
	p.OnStateChange(formstate.StateSaving, formstate.StateIdle)
	if got := testutil.ToFloat64(p.busy); got != 0 {
		t.Errorf("expected busy gauge 0, got %v", got)
	}

	p.OnSaveSuccess(20 * time.Millisecond)
	p.OnSaveFailure(time.Second)
	p.OnSaveFailure(time.Second)
	if got := testutil.ToFloat64(p.saves.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(p.saves.WithLabelValues("failure")); got != 2 {
		t.Errorf("expected 2 failures, got %v", got)
	}

	p.OnEligibilityChange(formstate.Forbidden, formstate.Permitted)
	if got := testutil.ToFloat64(p.eligibility.WithLabelValues("forbidden", "permitted")); got != 1 {
		t.Errorf("expected 1 transition, got %v", got)
	}

	if n := testutil.CollectAndCount(p.duration); n != 2 {
		t.Errorf("expected 2 histogram series, got %d", n)
	}
}

func TestProvider_WithController(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	p, err := New(reg, WithNamespace("forms"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fail := true
	ctrl := formstate.New(formstate.Settings{
		InitialState: formstate.Record{"name": "ada"},
		Save: &formstate.SaveEffect{
			Trigger: func(context.Context, formstate.Record) error {
				if fail {
					return errors.New("down")
				}
				return nil
			},
		},
	}).Metrics(p)

	ctrl.Change(ctx, "name", "grace")
	_ = ctrl.Submit(ctx)
	fail = false
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if got := testutil.ToFloat64(p.changes); got != 1 {
		t.Errorf("expected 1 change batch, got %v", got)
	}
	if got := testutil.ToFloat64(p.saves.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(p.saves.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(p.busy); got != 0 {
		t.Errorf("expected idle gauge, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "forms_saves_total" {
			return
		}
	}
	t.Error("expected forms_saves_total to be gathered")
}
