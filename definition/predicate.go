package definition

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/zoobzio/formstate"
)

// predicateEnv declares the variables visible to `when` expressions.
func predicateEnv(record, errs, baseline map[string]any) map[string]any {
	return map[string]any{
		"record":   record,
		"errors":   errs,
		"baseline": baseline,
	}
}

// CompilePredicate compiles an expr-lang expression into a save predicate.
// The expression sees `record`, `errors` and `baseline` as maps and must
// return a bool. An expression that fails at runtime counts as false.
func CompilePredicate(source string) (formstate.Predicate, error) {
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}

	program, err := expr.Compile(source,
		expr.Env(predicateEnv(nil, nil, nil)),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("expression compile error: %w", err)
	}

	return func(record formstate.Record, errs formstate.Errors, baseline formstate.Record) bool {
		ok, err := runPredicate(program, record, errs, baseline)
		return err == nil && ok
	}, nil
}

func runPredicate(program *vm.Program, record formstate.Record, errs formstate.Errors, baseline formstate.Record) (bool, error) {
	errMap := make(map[string]any, len(errs))
	for k, v := range errs {
		errMap[k] = v
	}
	out, err := expr.Run(program, predicateEnv(record, errMap, baseline))
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, expected bool", out)
	}
	return b, nil
}
