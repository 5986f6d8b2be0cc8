package formstate

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// SaveRequest carries one accepted submission through the save pipeline.
type SaveRequest struct {
	// ID identifies the submission in signals.
	ID string

	// Epoch is the epoch the submission started in.
	Epoch string

	// Record is the snapshot taken when the submission started.
	Record Record

	trigger func(ctx context.Context, record Record) error
}

// SaveOption configures the save pipeline of a Controller. Options wrap the
// save trigger with middleware for retry, timeout, circuit breaking and other
// reliability patterns.
//
// Instance configuration (clock, metrics, error history) is handled via
// chainable methods on the Controller.
type SaveOption func(pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest]

const saveTerminal = "save"

// newSavePipeline wraps the terminal that calls the request's trigger.
func newSavePipeline(opts []SaveOption) pipz.Chainable[*SaveRequest] {
	var pipeline pipz.Chainable[*SaveRequest] = pipz.Effect(pipz.Name(saveTerminal), func(ctx context.Context, req *SaveRequest) error {
		if req.trigger == nil {
			return ErrNoSaveEffect
		}
		return req.trigger(ctx, req.Record)
	})
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// -----------------------------------------------------------------------------
// Pipeline Options - Wrapping (With*)
// -----------------------------------------------------------------------------

// WithRetry retries a failed save immediately, up to maxAttempts attempts in
// total. For delays between attempts, use WithBackoff instead.
func WithRetry(maxAttempts int) SaveOption {
	return func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
		return pipz.NewRetry(pipz.Name("retry"), p, maxAttempts)
	}
}

// WithBackoff retries a failed save with exponential backoff: baseDelay,
// 2*baseDelay, 4*baseDelay, etc.
func WithBackoff(maxAttempts int, baseDelay time.Duration) SaveOption {
	return func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
		return pipz.NewBackoff(pipz.Name("backoff"), p, maxAttempts, baseDelay)
	}
}

// WithTimeout bounds each save with a deadline. The trigger's context is
// cancelled when it expires and the save fails with a timeout error.
func WithTimeout(d time.Duration) SaveOption {
	return func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
		return pipz.NewTimeout(pipz.Name("timeout"), p, d)
	}
}

// WithCircuitBreaker stops calling the trigger after 'failures' consecutive
// failures. Submissions fail fast until 'recovery' has passed, then one save
// is let through to test the target.
//
// The breaker is stateful and shared by every submission of the controller.
func WithCircuitBreaker(failures int, recovery time.Duration) SaveOption {
	return func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
		return pipz.NewCircuitBreaker(pipz.Name("circuit-breaker"), p, failures, recovery)
	}
}

// WithFallback tries each fallback in order when the save fails.
func WithFallback(fallbacks ...pipz.Chainable[*SaveRequest]) SaveOption {
	return func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
		all := append([]pipz.Chainable[*SaveRequest]{p}, fallbacks...)
		return pipz.NewFallback(pipz.Name("fallback"), all...)
	}
}

// WithErrorHandler passes save failures to handler for logging or alerting.
// The error still propagates to the submitter.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*SaveRequest]]) SaveOption {
	return func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
		return pipz.NewHandle(pipz.Name("error-handler"), p, handler)
	}
}

// WithMiddleware runs processors before the save, in order.
//
// Example:
//
//	ctrl.SaveOptions(
//	    formstate.WithMiddleware(
//	        formstate.UseEffect("audit", auditFn),
//	    ),
//	    formstate.WithBackoff(3, 100*time.Millisecond),
//	)
func WithMiddleware(processors ...pipz.Chainable[*SaveRequest]) SaveOption {
	return func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
		all := make([]pipz.Chainable[*SaveRequest], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(pipz.Name("middleware"), all...)
	}
}

// -----------------------------------------------------------------------------
// Middleware Processors - Adapters (Use*)
// -----------------------------------------------------------------------------

// UseEffect creates a processor that performs a side effect. A non-nil error
// aborts the save.
func UseEffect(name string, fn func(context.Context, *SaveRequest) error) pipz.Chainable[*SaveRequest] {
	return pipz.Effect(pipz.Name(name), fn)
}

// UseApply creates a processor that may rewrite the request, for example to
// normalize the snapshot before it is saved. Modify and return the request it
// receives; a request built from scratch has no trigger and fails with
// ErrNoSaveEffect.
func UseApply(name string, fn func(context.Context, *SaveRequest) (*SaveRequest, error)) pipz.Chainable[*SaveRequest] {
	return pipz.Apply(pipz.Name(name), fn)
}
