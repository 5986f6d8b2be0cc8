package formstate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// Guard errors returned by Submit.
var (
	// ErrNoSaveEffect is returned when no save trigger is configured.
	ErrNoSaveEffect = errors.New("no save effect configured")

	// ErrForbidden is returned when save eligibility is Forbidden.
	ErrForbidden = errors.New("save not permitted")

	// ErrBusy is returned when a save is already in flight.
	ErrBusy = errors.New("save already in flight")
)

// SaveEffect is the caller-supplied submission target.
type SaveEffect struct {
	// Trigger performs the save. It receives a snapshot of the record taken
	// when the submission started.
	Trigger func(ctx context.Context, record Record) error

	// OnSuccess, if set, is called with the same snapshot after Trigger
	// returns without error.
	OnSuccess func(record Record)

	// ResetOnSuccess enables cleanup: the record and errors are cleared after
	// a successful save, and Reset becomes effective.
	ResetOnSuccess bool
}

// Settings is the declarative configuration for one epoch.
type Settings struct {
	// InitialState is the baseline record. It is copied, never mutated.
	InitialState Record

	// Validators holds the rule chain per field.
	Validators Validators

	// Save is the submission target. Without it Submit returns ErrNoSaveEffect.
	Save *SaveEffect

	// Policy decides save eligibility. Without it eligibility is NotConfigured.
	Policy *SavePolicy
}

// Controller tracks field values against a baseline, keeps per-field error
// messages in sync with edits, decides save eligibility and drives an
// asynchronous save.
//
// Edits, validation and eligibility updates are serialized by an internal
// mutex. The only concurrent activity is an in-flight save, which works on a
// snapshot of the record and never blocks edits. Signals and metrics
// callbacks are delivered after the mutex is released, so hooks may read the
// controller.
type Controller struct {
	clock    clockz.Clock
	metrics  MetricsProvider
	pipeline pipz.Chainable[*SaveRequest]

	state    atomic.Int32
	lastErr  atomic.Pointer[error]
	failures *failureRing

	mu       sync.Mutex
	settings Settings
	baseline Record
	record   Record
	errs     Errors
	override Toggle
	verdict  Verdict
	deps     []any
	epoch    string

	// notifications queued while mu is held
	pending []func()
}

// New creates a Controller and seeds the first epoch from settings.
//
// Example:
//
//	ctrl := formstate.New(formstate.Settings{
//	    InitialState: formstate.Record{"email": ""},
//	    Validators: formstate.Validators{
//	        "email": {rules.EmailValid("Invalid email")},
//	    },
//	    Policy: &formstate.SavePolicy{},
//	    Save: &formstate.SaveEffect{Trigger: api.SaveProfile},
//	})
//
//	ctrl.Change(ctx, "email", "a@b.com")
//	if ctrl.Eligibility() == formstate.Permitted {
//	    err := ctrl.Submit(ctx)
//	}
func New(settings Settings, deps ...any) *Controller {
	c := &Controller{
		clock:    clockz.RealClock,
		metrics:  NoOpMetricsProvider{},
		pipeline: newSavePipeline(nil),
	}
	c.state.Store(int32(StateIdle))

	c.mu.Lock()
	c.seed(context.Background(), settings, deps)
	c.unlock()

	return c
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------
// These must be called before the controller is shared between goroutines.

// Clock sets a custom clock for save timing.
// Use this with clockz.FakeClock for deterministic tests.
func (c *Controller) Clock(clock clockz.Clock) *Controller {
	c.clock = clock
	return c
}

// Metrics sets a metrics provider for observability integration.
func (c *Controller) Metrics(provider MetricsProvider) *Controller {
	if provider == nil {
		provider = NoOpMetricsProvider{}
	}
	c.metrics = provider
	return c
}

// ErrorHistorySize sets the number of recent save failures to retain.
// Use 0 (default) to only retain the most recent failure via LastError().
func (c *Controller) ErrorHistorySize(n int) *Controller {
	c.failures = newFailureRing(n)
	return c
}

// SaveOptions wraps the save trigger with pipeline options, replacing any
// previously configured ones. Default: the trigger runs once, with no
// deadline.
//
// Example:
//
//	ctrl.SaveOptions(
//	    formstate.WithTimeout(5*time.Second),
//	    formstate.WithBackoff(3, 200*time.Millisecond),
//	)
func (c *Controller) SaveOptions(opts ...SaveOption) *Controller {
	c.pipeline = newSavePipeline(opts)
	return c
}

// -----------------------------------------------------------------------------
// Epochs
// -----------------------------------------------------------------------------

// Refresh adopts settings as the current configuration. When the baseline or
// any dependency value differs structurally from the previous call, a new
// epoch starts: the record and errors are re-seeded and the manual override
// is cleared. Otherwise validators, policy and save effect are replaced, edits
// are kept and eligibility is recomputed. Refresh reports whether a new epoch
// started.
//
// Within an epoch the error map follows the new validators: dropped fields
// lose their entry, edited fields are validated with the new chain and
// untouched fields that are newly configured (or all of them, when
// RequireChange flips) are seeded as at the start of an epoch.
func (c *Controller) Refresh(ctx context.Context, settings Settings, deps ...any) bool {
	c.mu.Lock()
	defer c.unlock()

	if settings.InitialState.Equal(c.baseline) && sameDeps(deps, c.deps) {
		c.errs = reconcileErrors(c.errs, c.record, c.baseline,
			c.settings.Validators, settings.Validators,
			c.settings.Policy, settings.Policy,
		)
		c.settings = settings
		c.reevaluate(ctx)
		return false
	}

	c.seed(ctx, settings, deps)
	return true
}

// sameDeps compares dependency lists element by element.
func sameDeps(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// seed starts a new epoch. Caller holds c.mu.
func (c *Controller) seed(ctx context.Context, settings Settings, deps []any) {
	c.settings = settings
	c.deps = append([]any(nil), deps...)
	c.epoch = uuid.NewString()
	c.baseline = settings.InitialState.Clone()
	c.record = settings.InitialState.Clone()
	if c.record == nil {
		c.record = make(Record)
	}
	c.errs = seedErrors(c.baseline, settings.Validators, settings.Policy)
	c.override = ToggleUnset

	epoch, fields := c.epoch, len(c.record)
	c.queue(func() {
		capitan.Emit(ctx, FormSeeded,
			KeyEpoch.Field(epoch),
			KeyFields.Field(fields),
		)
	})
	c.reevaluate(ctx)
}

// -----------------------------------------------------------------------------
// Edits
// -----------------------------------------------------------------------------

// Change sets a single field and re-validates it.
func (c *Controller) Change(ctx context.Context, name string, value any) {
	c.ChangeMany(ctx, Change{Name: name, Value: value})
}

// ChangeMany merges a batch of field updates into the record, last write
// winning for repeated names, then re-validates exactly the touched fields.
// Unknown field names are stored as-is.
func (c *Controller) ChangeMany(ctx context.Context, changes ...Change) {
	if len(changes) == 0 {
		return
	}

	c.mu.Lock()
	defer c.unlock()

	record, touched := c.record.merge(changes)
	c.record = record

	view := record.Clone()
	validators := c.settings.Validators
	for _, t := range touched {
		if !validators.Has(t.Name) {
			continue
		}
		name := t.Name
		msg := validators.Validate(name, t.Value, view)
		c.errs[name] = msg
		if msg != "" {
			c.queue(func() {
				capitan.Emit(ctx, FieldInvalid,
					KeyField.Field(name),
					KeyError.Field(msg),
				)
			})
		}
	}

	epoch, n := c.epoch, len(touched)
	c.queue(func() {
		capitan.Emit(ctx, FormChanged,
			KeyEpoch.Field(epoch),
			KeyFields.Field(n),
		)
		c.metrics.OnChangeApplied(n)
	})
	c.reevaluate(ctx)
}

// SetOverride forces eligibility to Permitted when on is true. The override
// persists until cleared or until the next epoch.
func (c *Controller) SetOverride(ctx context.Context, on bool) {
	c.setOverride(ctx, ToggleOf(on))
}

// ClearOverride returns the manual override to unset.
func (c *Controller) ClearOverride(ctx context.Context) {
	c.setOverride(ctx, ToggleUnset)
}

func (c *Controller) setOverride(ctx context.Context, t Toggle) {
	c.mu.Lock()
	defer c.unlock()

	c.override = t
	c.queue(func() {
		capitan.Emit(ctx, OverrideChanged,
			KeyOverride.Field(t.String()),
		)
	})
	c.reevaluate(ctx)
}

// Reset clears the record to nil and empties the error map, but only when the
// save effect enables cleanup. It reports whether anything was cleared.
func (c *Controller) Reset(ctx context.Context) bool {
	c.mu.Lock()
	defer c.unlock()

	if c.settings.Save == nil || !c.settings.Save.ResetOnSuccess {
		return false
	}
	c.clear(ctx)
	return true
}

// clear empties the record and error map. Caller holds c.mu.
func (c *Controller) clear(ctx context.Context) {
	c.record = nil
	c.errs = make(Errors)
	epoch := c.epoch
	c.queue(func() {
		capitan.Emit(ctx, FormReset,
			KeyEpoch.Field(epoch),
		)
	})
	c.reevaluate(ctx)
}

// reevaluate recomputes the cached verdict. Caller holds c.mu.
func (c *Controller) reevaluate(ctx context.Context) {
	prev := c.verdict.Eligibility
	c.verdict = Evaluate(Inputs{
		Record:     c.record,
		Baseline:   c.baseline,
		Errors:     c.errs,
		Validators: c.settings.Validators,
		Policy:     c.settings.Policy,
		Override:   c.override,
	})
	if next := c.verdict.Eligibility; next != prev {
		c.queue(func() {
			capitan.Emit(ctx, EligibilityChanged,
				KeyOldEligibility.Field(prev.String()),
				KeyNewEligibility.Field(next.String()),
			)
			c.metrics.OnEligibilityChange(prev, next)
		})
	}
}

// queue defers a notification until c.mu is released. Caller holds c.mu.
func (c *Controller) queue(fn func()) {
	c.pending = append(c.pending, fn)
}

// unlock releases c.mu and then delivers queued notifications in order.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// -----------------------------------------------------------------------------
// Submission
// -----------------------------------------------------------------------------

// Submit runs the save effect with a snapshot of the current record and
// blocks until it settles.
//
// The submission is refused without invoking the effect when no effect is
// configured (ErrNoSaveEffect), when eligibility is Forbidden (ErrForbidden)
// or when a save is already in flight (ErrBusy). NotConfigured eligibility
// never blocks. A failing effect is returned wrapped; the busy flag is
// released on every path.
func (c *Controller) Submit(ctx context.Context) error {
	sub, err := c.begin(ctx)
	if err != nil {
		return err
	}
	return c.finish(ctx, sub)
}

// SubmitAsync applies the same guard as Submit and acquires the busy flag
// before returning, then runs the save in a goroutine. The returned channel
// receives exactly one value: the guard error or the save outcome.
func (c *Controller) SubmitAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	sub, err := c.begin(ctx)
	if err != nil {
		done <- err
		return done
	}
	go func() {
		done <- c.finish(ctx, sub)
	}()
	return done
}

// submission is one accepted submit attempt.
type submission struct {
	effect  SaveEffect
	request *SaveRequest
}

// begin checks the guard and moves idle to saving.
func (c *Controller) begin(ctx context.Context) (*submission, error) {
	c.mu.Lock()
	effect := c.settings.Save
	verdict := c.verdict.Eligibility
	record := c.record.Clone()
	epoch := c.epoch
	c.mu.Unlock()

	var reason error
	switch {
	case effect == nil || effect.Trigger == nil:
		reason = ErrNoSaveEffect
	case verdict == Forbidden:
		reason = ErrForbidden
	case !c.state.CompareAndSwap(int32(StateIdle), int32(StateSaving)):
		reason = ErrBusy
	}
	if reason != nil {
		capitan.Emit(ctx, SaveRejected,
			KeyReason.Field(reason.Error()),
		)
		return nil, reason
	}

	c.notifyState(ctx, StateIdle, StateSaving)
	sub := &submission{
		effect: *effect,
		request: &SaveRequest{
			ID:      uuid.NewString(),
			Epoch:   epoch,
			Record:  record,
			trigger: effect.Trigger,
		},
	}
	capitan.Emit(ctx, SaveStarted,
		KeySubmission.Field(sub.request.ID),
	)
	return sub, nil
}

// finish invokes the effect, releases the busy flag and applies cleanup.
func (c *Controller) finish(ctx context.Context, sub *submission) error {
	err := c.invoke(ctx, sub)
	if err != nil {
		return err
	}
	if sub.effect.ResetOnSuccess {
		c.mu.Lock()
		c.clear(ctx)
		c.unlock()
	}
	return nil
}

// invoke holds the busy flag while the save pipeline runs.
func (c *Controller) invoke(ctx context.Context, sub *submission) error {
	defer c.release(ctx)

	start := c.clock.Now()
	if _, err := c.pipeline.Process(ctx, sub.request); err != nil {
		elapsed := c.clock.Since(start)
		c.setError(err)
		capitan.Emit(ctx, SaveFailed,
			KeySubmission.Field(sub.request.ID),
			KeyError.Field(err.Error()),
			KeyDuration.Field(elapsed),
		)
		c.metrics.OnSaveFailure(elapsed)
		return fmt.Errorf("save failed: %w", err)
	}

	elapsed := c.clock.Since(start)
	c.lastErr.Store(nil)
	c.failures.clear()
	if sub.effect.OnSuccess != nil {
		sub.effect.OnSuccess(sub.request.Record)
	}
	capitan.Emit(ctx, SaveSucceeded,
		KeySubmission.Field(sub.request.ID),
		KeyDuration.Field(elapsed),
	)
	c.metrics.OnSaveSuccess(elapsed)
	return nil
}

// release moves saving back to idle.
func (c *Controller) release(ctx context.Context) {
	c.state.Store(int32(StateIdle))
	c.notifyState(ctx, StateSaving, StateIdle)
}

func (c *Controller) notifyState(ctx context.Context, from, to State) {
	capitan.Emit(ctx, StateChanged,
		KeyOldState.Field(from.String()),
		KeyNewState.Field(to.String()),
	)
	c.metrics.OnStateChange(from, to)
}

// setError stores an error atomically and adds it to the failure history.
func (c *Controller) setError(err error) {
	e := err
	c.lastErr.Store(&e)
	c.failures.push(err)
}

// -----------------------------------------------------------------------------
// Observable State
// -----------------------------------------------------------------------------

// Record returns a copy of the current record. It is nil after cleanup.
func (c *Controller) Record() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.Clone()
}

// Baseline returns a copy of the current epoch's baseline.
func (c *Controller) Baseline() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline.Clone()
}

// Errors returns a copy of the error map.
func (c *Controller) Errors() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs.Clone()
}

// Eligibility returns the current save verdict.
func (c *Controller) Eligibility() Eligibility {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verdict.Eligibility
}

// Checks returns the named checks behind the current verdict, or nil when
// none ran.
func (c *Controller) Checks() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verdict.Checks == nil {
		return nil
	}
	out := make(map[string]bool, len(c.verdict.Checks))
	for k, v := range c.verdict.Checks {
		out[k] = v
	}
	return out
}

// Override returns the manual override value.
func (c *Controller) Override() Toggle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.override
}

// Epoch returns the id of the current initialization epoch.
func (c *Controller) Epoch() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// State returns the current submission state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Busy reports whether a save is in flight.
func (c *Controller) Busy() bool {
	return c.State() == StateSaving
}

// LastError returns the last save failure, or nil after a successful save.
func (c *Controller) LastError() error {
	ptr := c.lastErr.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent save failures, oldest first.
// Returns nil if history is not enabled (see ErrorHistorySize).
func (c *Controller) ErrorHistory() []error {
	return c.failures.all()
}
