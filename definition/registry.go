package definition

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/zoobzio/formstate"
	"github.com/zoobzio/formstate/rules"
)

// RuleFactory builds a rule from a definition argument and message.
type RuleFactory func(arg any, message string) (formstate.Rule, error)

// Registry resolves rule names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]RuleFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]RuleFactory)}
}

// DefaultRegistry returns a registry holding the stock rules:
// required, min_length, max_length, not_zero, value_equal, email, phone, hex.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("required", func(_ any, msg string) (formstate.Rule, error) {
		return rules.Required(msg), nil
	})
	r.Register("min_length", func(arg any, msg string) (formstate.Rule, error) {
		n, err := intArg(arg)
		if err != nil {
			return nil, err
		}
		return rules.MinLength(n, msg), nil
	})
	r.Register("max_length", func(arg any, msg string) (formstate.Rule, error) {
		n, err := intArg(arg)
		if err != nil {
			return nil, err
		}
		return rules.MaxLength(n, msg), nil
	})
	r.Register("not_zero", func(_ any, msg string) (formstate.Rule, error) {
		return rules.NotZero(msg), nil
	})
	r.Register("value_equal", func(arg any, msg string) (formstate.Rule, error) {
		field, ok := arg.(string)
		if !ok || field == "" {
			return nil, fmt.Errorf("value_equal needs a field name argument, got %v", arg)
		}
		return rules.ValueEqual(field, msg), nil
	})
	r.Register("email", func(_ any, msg string) (formstate.Rule, error) {
		return rules.EmailValid(msg), nil
	})
	r.Register("phone", func(_ any, msg string) (formstate.Rule, error) {
		return rules.PhoneValid(msg), nil
	})
	r.Register("hex", func(_ any, msg string) (formstate.Rule, error) {
		return rules.ValidHex(msg), nil
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, factory RuleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered rule names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves a spec into a rule.
func (r *Registry) Build(spec RuleSpec) (formstate.Rule, error) {
	r.mu.RLock()
	factory, ok := r.factories[spec.Rule]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown rule %q", spec.Rule)
	}
	rule, err := factory(spec.Arg, spec.Message)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", spec.Rule, err)
	}
	return rule, nil
}

// intArg reads an integer argument as decoded by either codec.
func intArg(arg any) (int, error) {
	switch v := arg.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected an integer argument, got %v", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("expected an integer argument, got %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer argument, got %v", arg)
	}
}
