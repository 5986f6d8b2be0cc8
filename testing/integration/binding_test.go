package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/zoobzio/formstate"
	"github.com/zoobzio/formstate/definition"
	formtest "github.com/zoobzio/formstate/testing"
)

const signupYAML = `
initial_state:
  name: ""
  email: ""
  password: ""
  confirm: ""
validators:
  name:
    - {rule: required, message: "Name is required"}
  email:
    - {rule: required, message: "Email is required"}
    - {rule: email, message: "Invalid email"}
  confirm:
    - {rule: value_equal, arg: password, message: "Passwords differ"}
save:
  reset_on_success: true
save_policy:
  when: 'record.name != "root"'
`

func TestFileBinding_SignupFlow(t *testing.T) {
	path := writeDefinition(t, "signup.yaml", signupYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := formtest.NewSaveRecorder()
	ctrl := formstate.New(formstate.Settings{})
	binding := definition.Bind(ctrl, definition.NewFileWatcher(path), rec.Effect(false)).
		Debounce(10 * time.Millisecond)

	if err := binding.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	formtest.RequireEligibility(t, ctrl, formstate.Forbidden)
	formtest.RequireErrors(t, ctrl, formstate.Errors{
		"name":  "Name is required",
		"email": "Email is required",
	})

	ctrl.ChangeMany(ctx,
		formstate.Change{Name: "name", Value: "ada"},
		formstate.Change{Name: "email", Value: "ada@example.com"},
		formstate.Change{Name: "password", Value: "s3cret"},
		formstate.Change{Name: "confirm", Value: "s3cr3t"},
	)
	formtest.RequireEligibility(t, ctrl, formstate.Forbidden)
	if msg := ctrl.Errors()["confirm"]; msg != "Passwords differ" {
		t.Errorf("expected confirm mismatch, got %q", msg)
	}

	ctrl.Change(ctx, "confirm", "s3cret")
	formtest.RequireEligibility(t, ctrl, formstate.Permitted)

	ctrl.Change(ctx, "name", "root")
	formtest.RequireEligibility(t, ctrl, formstate.Forbidden)
	if checks := ctrl.Checks(); checks[formstate.CheckCustom] || !checks[formstate.CheckDefaultValidation] {
		t.Errorf("expected only the custom check to fail, got %v", checks)
	}

	ctrl.Change(ctx, "name", "ada")
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if rec.Last()["email"] != "ada@example.com" {
		t.Errorf("expected submitted snapshot, got %v", rec.Last())
	}
	if ctrl.Record() != nil {
		t.Errorf("expected record cleared by reset_on_success, got %v", ctrl.Record())
	}
}

func TestFileBinding_ReloadStartsNewEpoch(t *testing.T) {
	path := writeDefinition(t, "profile.yaml", "initial_state:\n  name: ada\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := formstate.New(formstate.Settings{})
	binding := definition.Bind(ctrl, definition.NewFileWatcher(path), nil).
		Debounce(10 * time.Millisecond)
	if err := binding.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	epoch := ctrl.Epoch()

	if err := os.WriteFile(path, []byte("initial_state:\n  name: grace\n"), 0o600); err != nil {
		t.Fatalf("failed to update definition: %v", err)
	}

	if !formtest.WaitFor(t, 2*time.Second, func() bool {
		return ctrl.Baseline()["name"] == "grace"
	}) {
		t.Fatalf("expected reloaded baseline, got %v", ctrl.Baseline())
	}
	if ctrl.Epoch() == epoch {
		t.Error("expected a new epoch after reload")
	}
}

func TestFileBinding_InvalidReloadKeepsState(t *testing.T) {
	path := writeDefinition(t, "profile.json", `{"initial_state": {"name": "ada"}}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := formstate.New(formstate.Settings{})
	binding := definition.Bind(ctrl, definition.NewFileWatcher(path), nil).
		Codec(definition.CodecFor(path)).
		Debounce(10 * time.Millisecond)
	if err := binding.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"initial_state": `), 0o600); err != nil {
		t.Fatalf("failed to update definition: %v", err)
	}

	if !formtest.WaitFor(t, 2*time.Second, func() bool {
		return binding.LastError() != nil
	}) {
		t.Fatal("expected a load error after invalid write")
	}
	if ctrl.Baseline()["name"] != "ada" {
		t.Errorf("expected baseline kept, got %v", ctrl.Baseline())
	}
}

func TestController_ReentryGuard(t *testing.T) {
	ctx := context.Background()
	ctrl, rec := formtest.NewTestController(t, formstate.Settings{
		InitialState: formstate.Record{"name": "ada"},
	})

	entered := rec.Block()
	first := ctrl.SubmitAsync(ctx)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for save to start")
	}

	if err := ctrl.Submit(ctx); !errors.Is(err, formstate.ErrBusy) {
		t.Errorf("expected ErrBusy while saving, got %v", err)
	}

	rec.Release()
	if err := <-first; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if rec.Calls() != 1 {
		t.Errorf("expected exactly 1 save call, got %d", rec.Calls())
	}
	if !formtest.WaitForState(t, ctrl, formstate.StateIdle, time.Second) {
		t.Error("expected controller idle after save")
	}
}

func TestController_FailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	ctrl, rec := formtest.NewTestController(t, formstate.Settings{
		InitialState: formstate.Record{"name": "ada"},
		Save:         &formstate.SaveEffect{ResetOnSuccess: true},
	})

	boom := errors.New("backend down")
	rec.Fail(boom)
	if err := ctrl.Submit(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if ctrl.Record()["name"] != "ada" {
		t.Errorf("expected record kept after failure, got %v", ctrl.Record())
	}
	if ctrl.Busy() {
		t.Error("expected busy flag released")
	}

	rec.Fail(nil)
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if ctrl.Record() != nil {
		t.Errorf("expected record cleared after success, got %v", ctrl.Record())
	}
}
