package formstate

import "testing"

func TestSignalNames(t *testing.T) {
	tests := []struct {
		signal interface{ Name() string }
		want   string
	}{
		{FormSeeded, "formstate.seeded"},
		{FormReset, "formstate.reset"},
		{FormChanged, "formstate.changed"},
		{FieldInvalid, "formstate.field.invalid"},
		{EligibilityChanged, "formstate.eligibility.changed"},
		{OverrideChanged, "formstate.override.changed"},
		{SaveStarted, "formstate.save.started"},
		{SaveSucceeded, "formstate.save.succeeded"},
		{SaveFailed, "formstate.save.failed"},
		{SaveRejected, "formstate.save.rejected"},
		{StateChanged, "formstate.state.changed"},
	}

	for _, tt := range tests {
		if tt.signal.Name() != tt.want {
			t.Errorf("expected name %q, got %q", tt.want, tt.signal.Name())
		}
	}
}
