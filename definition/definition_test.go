package definition

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zoobzio/formstate"
)

const profileYAML = `
initial_state:
  name: ""
  email: ""
validators:
  name:
    - {rule: required, message: "Name is required"}
    - {rule: min_length, arg: 3, message: "Too short"}
  email:
    - {rule: email, message: "Invalid email"}
save:
  reset_on_success: true
save_policy: {}
`

func TestDecode_DefaultsToYAML(t *testing.T) {
	def, err := Decode([]byte(profileYAML), nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(def.Validators["name"]) != 2 {
		t.Errorf("expected 2 name rules, got %d", len(def.Validators["name"]))
	}
	if def.Save == nil || !def.Save.ResetOnSuccess {
		t.Errorf("expected reset_on_success, got %+v", def.Save)
	}
	if def.Policy == nil {
		t.Error("expected an empty policy block to decode as a policy")
	}
}

func TestDecode_Error(t *testing.T) {
	_, err := Decode([]byte(`{"initial_state": [}`), JSONCodec{})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !strings.Contains(err.Error(), "application/json") {
		t.Errorf("expected content type in error, got %v", err)
	}
}

func TestSettings_BuildsChains(t *testing.T) {
	def, err := Decode([]byte(profileYAML), YAMLCodec{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	settings, err := def.Settings(nil, nil)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}

	if msg := settings.Validators.Validate("name", "", nil); msg != "Name is required" {
		t.Errorf("expected required message, got %q", msg)
	}
	if msg := settings.Validators.Validate("name", "al", nil); msg != "Too short" {
		t.Errorf("expected min length message, got %q", msg)
	}
	if msg := settings.Validators.Validate("email", "a@b.co", nil); msg != "" {
		t.Errorf("expected valid email, got %q", msg)
	}
	if settings.Save != nil {
		t.Error("expected no save target without an effect")
	}
	if settings.Policy == nil {
		t.Error("expected policy")
	}
}

func TestSettings_JSONNumericArg(t *testing.T) {
	def, err := Decode([]byte(`{"validators": {"code": [{"rule": "max_length", "arg": 4, "message": "Too long"}]}}`), JSONCodec{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	settings, err := def.Settings(nil, nil)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if msg := settings.Validators.Validate("code", "12345", nil); msg != "Too long" {
		t.Errorf("expected max length message, got %q", msg)
	}
}

func TestSettings_UnknownRule(t *testing.T) {
	def := &Definition{
		Validators: map[string][]RuleSpec{
			"name": {{Rule: "required", Message: "x"}, {Rule: "shout", Message: "y"}},
		},
	}
	_, err := def.Settings(nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown rule")
	}
	if !strings.Contains(err.Error(), `field "name" rule 1`) {
		t.Errorf("expected field and index in error, got %v", err)
	}
}

func TestSettings_BadPredicate(t *testing.T) {
	def := &Definition{Policy: &PolicySpec{When: "record.name +"}}
	if _, err := def.Settings(nil, nil); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestSettings_Permission(t *testing.T) {
	off := false
	def := &Definition{Policy: &PolicySpec{Permission: &off}}
	settings, err := def.Settings(nil, nil)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings.Policy.Permission != formstate.ToggleOff {
		t.Errorf("expected permission off, got %v", settings.Policy.Permission)
	}

	def = &Definition{Policy: &PolicySpec{}}
	settings, err = def.Settings(nil, nil)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings.Policy.Permission != formstate.ToggleUnset {
		t.Errorf("expected permission unset, got %v", settings.Policy.Permission)
	}
}

func TestSettings_EffectCopied(t *testing.T) {
	effect := &formstate.SaveEffect{
		Trigger: func(context.Context, formstate.Record) error { return nil },
	}
	def := &Definition{Save: &SaveSpec{ResetOnSuccess: true}}

	settings, err := def.Settings(nil, effect)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings.Save == effect {
		t.Error("expected the effect to be copied")
	}
	if !settings.Save.ResetOnSuccess {
		t.Error("expected reset_on_success from the definition")
	}
	if effect.ResetOnSuccess {
		t.Error("caller's effect should not be modified")
	}
}

func TestDefinition_DrivesController(t *testing.T) {
	ctx := context.Background()
	def, err := Decode([]byte(profileYAML), YAMLCodec{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	var saved formstate.Record
	settings, err := def.Settings(nil, &formstate.SaveEffect{
		Trigger: func(_ context.Context, r formstate.Record) error {
			saved = r
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}

	ctrl := formstate.New(settings)
	if got := ctrl.Eligibility(); got != formstate.Forbidden {
		t.Fatalf("expected forbidden with empty fields, got %v", got)
	}
	if err := ctrl.Submit(ctx); !errors.Is(err, formstate.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	ctrl.ChangeMany(ctx,
		formstate.Change{Name: "name", Value: "alice"},
		formstate.Change{Name: "email", Value: "alice@example.com"},
	)
	if got := ctrl.Eligibility(); got != formstate.Permitted {
		t.Fatalf("expected permitted, got %v (errors %v)", got, ctrl.Errors())
	}

	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if saved["name"] != "alice" {
		t.Errorf("expected saved name 'alice', got %v", saved["name"])
	}
	if ctrl.Record() != nil {
		t.Errorf("expected record cleared after reset, got %v", ctrl.Record())
	}
}
