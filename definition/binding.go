package definition

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/formstate"
)

// DefaultDebounce is the default debounce duration for document changes.
const DefaultDebounce = 100 * time.Millisecond

// Binding watches a definition source and refreshes a controller with every
// valid document. A document that fails to decode or compile is reported and
// skipped; the controller keeps its previous settings.
type Binding struct {
	ctrl     *formstate.Controller
	watcher  Watcher
	effect   *formstate.SaveEffect
	registry *Registry
	codec    Codec
	deps     []any
	debounce time.Duration
	syncMode bool
	clock    clockz.Clock

	current   atomic.Pointer[Definition]
	lastError atomic.Pointer[error]

	mu      sync.Mutex
	started bool

	// For sync mode: channel to receive documents
	changes <-chan []byte
}

// Bind creates a Binding that drives ctrl from watcher. effect supplies the
// save trigger for every compiled definition and may be nil.
//
// Example:
//
//	ctrl := formstate.New(formstate.Settings{})
//	binding := definition.Bind(ctrl,
//	    definition.NewFileWatcher("profile.yaml"),
//	    &formstate.SaveEffect{Trigger: client.SaveProfile},
//	).Deps(userID)
//
//	if err := binding.Start(ctx); err != nil {
//	    log.Printf("initial definition failed: %v", err)
//	}
func Bind(ctrl *formstate.Controller, watcher Watcher, effect *formstate.SaveEffect) *Binding {
	return &Binding{
		ctrl:     ctrl,
		watcher:  watcher,
		effect:   effect,
		registry: DefaultRegistry(),
		codec:    YAMLCodec{},
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
	}
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Codec sets the codec for documents. Default: YAMLCodec.
// Must be called before Start().
func (b *Binding) Codec(codec Codec) *Binding {
	b.codec = codec
	return b
}

// Registry sets the rule registry. Default: DefaultRegistry().
// Must be called before Start().
func (b *Binding) Registry(reg *Registry) *Binding {
	b.registry = reg
	return b
}

// Deps sets the dependency values passed to every Refresh.
// Must be called before Start().
func (b *Binding) Deps(deps ...any) *Binding {
	b.deps = deps
	return b
}

// Debounce sets the debounce duration for document changes.
// Default: 100ms. Must be called before Start().
func (b *Binding) Debounce(d time.Duration) *Binding {
	b.debounce = d
	return b
}

// SyncMode enables synchronous processing for testing.
// Must be called before Start().
func (b *Binding) SyncMode() *Binding {
	b.syncMode = true
	return b
}

// Clock sets a custom clock for debouncing.
// Must be called before Start().
func (b *Binding) Clock(clock clockz.Clock) *Binding {
	b.clock = clock
	return b
}

// Current returns the last applied definition and true, or nil and false if
// none has been applied.
func (b *Binding) Current() (*Definition, bool) {
	def := b.current.Load()
	return def, def != nil
}

// LastError returns the last load error, or nil after a successful load.
func (b *Binding) LastError() error {
	ptr := b.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Start begins watching. It blocks until the first document is applied or
// rejected, then continues watching asynchronously.
//
// In sync mode, Start only processes the first document. Use Process() to
// handle subsequent ones.
//
// Start can only be called once. Subsequent calls return an error.
func (b *Binding) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("binding already started")
	}
	b.started = true
	b.mu.Unlock()

	capitan.Emit(ctx, BindingStarted,
		KeyContentType.Field(b.codec.ContentType()),
	)

	changes, err := b.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	var initialErr error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case raw, ok := <-changes:
		if !ok {
			return fmt.Errorf("watcher closed before emitting a definition")
		}
		initialErr = b.apply(ctx, raw)
	}

	if b.syncMode {
		b.changes = changes
		return initialErr
	}

	go b.watch(ctx, changes)

	return initialErr
}

// Process reads and applies the next document from the watcher.
// This is only available in sync mode and is used for deterministic testing.
// Returns false if no document is available or the channel is closed.
func (b *Binding) Process(ctx context.Context) bool {
	if !b.syncMode {
		return false
	}

	select {
	case raw, ok := <-b.changes:
		if !ok {
			return false
		}
		_ = b.apply(ctx, raw) //nolint:errcheck // Errors stored via fail
		return true
	default:
		return false
	}
}

// apply decodes, compiles and refreshes the controller with one document.
func (b *Binding) apply(ctx context.Context, raw []byte) error {
	def, err := Decode(raw, b.codec)
	if err != nil {
		return b.fail(ctx, err)
	}

	settings, err := def.Settings(b.registry, b.effect)
	if err != nil {
		return b.fail(ctx, fmt.Errorf("compile definition: %w", err))
	}

	fresh := b.ctrl.Refresh(ctx, settings, b.deps...)
	b.current.Store(def)
	b.lastError.Store(nil)
	capitan.Emit(ctx, DefinitionLoaded,
		formstate.KeyEpoch.Field(b.ctrl.Epoch()),
		KeyReseeded.Field(fmt.Sprint(fresh)),
	)
	return nil
}

func (b *Binding) fail(ctx context.Context, err error) error {
	e := err
	b.lastError.Store(&e)
	capitan.Emit(ctx, DefinitionFailed,
		formstate.KeyError.Field(err.Error()),
	)
	return err
}

// watch applies documents from the watcher channel with debouncing.
func (b *Binding) watch(ctx context.Context, changes <-chan []byte) {
	defer capitan.Emit(ctx, BindingStopped)

	var (
		timer      clockz.Timer
		pending    []byte
		hasPending bool
	)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case raw, ok := <-changes:
			if !ok {
				if hasPending {
					_ = b.apply(ctx, pending) //nolint:errcheck // Errors stored via fail
				}
				return
			}

			pending = raw
			hasPending = true

			if timer == nil {
				timer = b.clock.NewTimer(b.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(b.debounce)
			}

		case <-timerC:
			if hasPending {
				_ = b.apply(ctx, pending) //nolint:errcheck // Errors stored via fail
				hasPending = false
			}
		}
	}
}
