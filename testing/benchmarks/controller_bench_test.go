package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/zoobzio/formstate"
	"github.com/zoobzio/formstate/definition"
	"github.com/zoobzio/formstate/rules"
)

func benchSettings() formstate.Settings {
	return formstate.Settings{
		InitialState: formstate.Record{"name": "ada", "email": "ada@example.com", "age": 36},
		Validators: formstate.Validators{
			"name":  {rules.Required("required"), rules.MinLength(2, "short")},
			"email": {rules.Required("required"), rules.EmailValid("invalid")},
			"age":   {rules.NotZero("zero")},
		},
		Policy: &formstate.SavePolicy{RequireChange: true},
		Save: &formstate.SaveEffect{
			Trigger: func(context.Context, formstate.Record) error { return nil },
		},
	}
}

func BenchmarkController_Change(b *testing.B) {
	ctx := context.Background()
	ctrl := formstate.New(benchSettings())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctrl.Change(ctx, "name", fmt.Sprintf("user-%d", i))
	}
}

func BenchmarkController_ChangeMany(b *testing.B) {
	ctx := context.Background()
	ctrl := formstate.New(benchSettings())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctrl.ChangeMany(ctx,
			formstate.Change{Name: "name", Value: fmt.Sprintf("user-%d", i)},
			formstate.Change{Name: "email", Value: fmt.Sprintf("user-%d@example.com", i)},
			formstate.Change{Name: "age", Value: i + 1},
		)
	}
}

func BenchmarkController_Submit(b *testing.B) {
	ctx := context.Background()
	ctrl := formstate.New(benchSettings())
	ctrl.Change(ctx, "name", "grace")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ctrl.Submit(ctx); err != nil {
			b.Fatalf("Submit() error = %v", err)
		}
	}
}

func BenchmarkEvaluate(b *testing.B) {
	settings := benchSettings()
	in := formstate.Inputs{
		Record:     formstate.Record{"name": "grace", "email": "ada@example.com", "age": 36},
		Baseline:   settings.InitialState,
		Errors:     formstate.Errors{"name": "", "email": "", "age": ""},
		Validators: settings.Validators,
		Policy:     settings.Policy,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		formstate.Evaluate(in)
	}
}

func BenchmarkPredicate(b *testing.B) {
	predicate, err := definition.CompilePredicate(`record.name != baseline.name && len(errors) == 0`)
	if err != nil {
		b.Fatalf("CompilePredicate() error = %v", err)
	}
	record := formstate.Record{"name": "grace"}
	baseline := formstate.Record{"name": "ada"}
	errs := formstate.Errors{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		predicate(record, errs, baseline)
	}
}

func BenchmarkBinding_Process(b *testing.B) {
	ch := make(chan []byte, b.N+1)
	ch <- []byte("initial_state:\n  name: ada\n")
	for i := 1; i <= b.N; i++ {
		ch <- []byte(fmt.Sprintf("initial_state:\n  name: user-%d\nvalidators:\n  name:\n    - {rule: required, message: x}\n", i))
	}

	ctx := context.Background()
	binding := definition.Bind(formstate.New(formstate.Settings{}), definition.NewSyncChannelWatcher(ch), nil).SyncMode()
	if err := binding.Start(ctx); err != nil {
		b.Fatalf("Start() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		binding.Process(ctx)
	}
}
