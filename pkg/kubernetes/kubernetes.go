// Package kubernetes serves form definitions from a ConfigMap key, following
// changes with the Watch API.
package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

// DefaultKey is the ConfigMap data key read when none is configured.
const DefaultKey = "form.yaml"

// DefaultRetryInterval is the wait between reconnect attempts.
const DefaultRetryInterval = 5 * time.Second

var errWatchClosed = errors.New("watch channel closed")

// Watcher emits a ConfigMap key's value each time the ConfigMap changes.
// A missing ConfigMap or key is retried; deletions emit nothing.
type Watcher struct {
	client    kubernetes.Interface
	namespace string
	name      string
	key       string
	retry     time.Duration
	clock     clockz.Clock
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithKey sets the data key holding the definition. Defaults to "form.yaml".
func WithKey(key string) Option {
	return func(w *Watcher) {
		w.key = key
	}
}

// WithRetryInterval sets the wait between reconnect attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.retry = d
	}
}

// WithClock sets the clock used for retry waits.
func WithClock(clock clockz.Clock) Option {
	return func(w *Watcher) {
		w.clock = clock
	}
}

// New creates a Watcher for the named ConfigMap.
func New(client kubernetes.Interface, namespace, name string, opts ...Option) *Watcher {
	w := &Watcher{
		client:    client,
		namespace: namespace,
		name:      name,
		key:       DefaultKey,
		retry:     DefaultRetryInterval,
		clock:     clockz.RealClock,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch returns a channel that emits the definition whenever the ConfigMap
// changes. The current value is emitted first. Errors reconnect after the
// retry interval until ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	out := make(chan []byte)

	go func() {
		defer close(out)

		for {
			err := w.watchLoop(ctx, out)
			if ctx.Err() != nil || err == nil {
				return
			}

			timer := w.clock.NewTimer(w.retry)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C():
			}
		}
	}()

	return out, nil
}

func (w *Watcher) watchLoop(ctx context.Context, out chan<- []byte) error {
	configMaps := w.client.CoreV1().ConfigMaps(w.namespace)

	cm, err := configMaps.Get(ctx, w.name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get configmap %s/%s: %w", w.namespace, w.name, err)
	}
	if err := w.emit(ctx, out, cm); err != nil {
		return err
	}

	watcher, err := configMaps.Watch(ctx, metav1.ListOptions{
		FieldSelector:   fmt.Sprintf("metadata.name=%s", w.name),
		ResourceVersion: cm.ResourceVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return errWatchClosed
			}

			switch event.Type {
			case watch.Error:
				return fmt.Errorf("watch error: %v", event.Object)
			case watch.Added, watch.Modified:
				cm, ok := event.Object.(*corev1.ConfigMap)
				if !ok || cm.Name != w.name {
					continue
				}
				if err := w.emit(ctx, out, cm); err != nil {
					return err
				}
			}
		}
	}
}

// emit sends the definition held by cm, if the key is present.
func (w *Watcher) emit(ctx context.Context, out chan<- []byte, cm *corev1.ConfigMap) error {
	doc, ok := cm.Data[w.key]
	if !ok {
		return nil
	}
	select {
	case out <- []byte(doc):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
