package formstate

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key controller events.
// Callbacks run after the controller's lock is released and may read it.
type MetricsProvider interface {
	// OnStateChange is called when the controller moves between idle and saving.
	OnStateChange(from, to State)

	// OnEligibilityChange is called when the save verdict changes.
	OnEligibilityChange(from, to Eligibility)

	// OnChangeApplied is called after a change batch with the number of
	// distinct fields touched.
	OnChangeApplied(fields int)

	// OnSaveSuccess is called when the save effect succeeds.
	OnSaveSuccess(duration time.Duration)

	// OnSaveFailure is called when the save effect fails.
	OnSaveFailure(duration time.Duration)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)             {}
func (NoOpMetricsProvider) OnEligibilityChange(_, _ Eligibility) {}
func (NoOpMetricsProvider) OnChangeApplied(_ int)                {}
func (NoOpMetricsProvider) OnSaveSuccess(_ time.Duration)        {}
func (NoOpMetricsProvider) OnSaveFailure(_ time.Duration)        {}
