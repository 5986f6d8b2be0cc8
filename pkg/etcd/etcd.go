// Package etcd serves form definitions from an etcd key, following changes
// with the native Watch API.
package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Client is the subset of *clientv3.Client used by Watcher.
type Client interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan
}

// Watcher emits the definition stored under a key each time it is put.
// Deleting the key emits nothing; the last applied definition stays in force.
type Watcher struct {
	client Client
	key    string
}

// KeyPrefix is the conventional prefix for definition keys.
const KeyPrefix = "/formstate/definitions/"

// KeyFor returns the conventional key for a named form.
func KeyFor(form string) string {
	return KeyPrefix + form
}

// New creates a Watcher for the given key.
func New(client Client, key string) *Watcher {
	return &Watcher{
		client: client,
		key:    key,
	}
}

// Watch returns a channel that emits the key's value whenever it changes.
// The current value, if any, is emitted first.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	resp, err := w.client.Get(ctx, w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to get definition %s: %w", w.key, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)

		if len(resp.Kvs) > 0 {
			select {
			case out <- resp.Kvs[0].Value:
			case <-ctx.Done():
				return
			}
		}

		changes := w.client.Watch(ctx, w.key, clientv3.WithRev(resp.Header.Revision+1))

		for {
			select {
			case <-ctx.Done():
				return
			case wr, ok := <-changes:
				if !ok {
					return
				}
				if wr.Err() != nil {
					continue
				}
				for _, event := range wr.Events {
					if event.Type != clientv3.EventTypePut {
						continue
					}
					select {
					case out <- event.Kv.Value:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}
