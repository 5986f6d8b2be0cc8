// Package postgres stores submitted form records in PostgreSQL and serves
// form definitions from a table, following changes with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/formstate"
)

// DB is the subset of *pgxpool.Pool used for queries.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists the latest submitted record for one form.
//
// Expected schema:
//
//	CREATE TABLE form_records (
//	    form       TEXT PRIMARY KEY,
//	    data       JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Store struct {
	db    DB
	form  string
	table string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRecordTable sets the table records are written to.
// Defaults to "form_records".
func WithRecordTable(table string) StoreOption {
	return func(s *Store) {
		s.table = table
	}
}

// NewStore creates a Store for the named form.
func NewStore(db DB, form string, opts ...StoreOption) *Store {
	s := &Store{
		db:    db,
		form:  form,
		table: "form_records",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored record, or nil if the form has never been saved.
// Use it as the baseline for a controller.
func (s *Store) Load(ctx context.Context) (formstate.Record, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE form = $1", pgx.Identifier{s.table}.Sanitize())

	var data []byte
	if err := s.db.QueryRow(ctx, query, s.form).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load form %s: %w", s.form, err)
	}

	var record formstate.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode form %s: %w", s.form, err)
	}
	return record, nil
}

// Save upserts the record.
func (s *Store) Save(ctx context.Context, record formstate.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode form %s: %w", s.form, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (form, data, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (form) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		pgx.Identifier{s.table}.Sanitize())

	if _, err := s.db.Exec(ctx, query, s.form, string(data)); err != nil {
		return fmt.Errorf("save form %s: %w", s.form, err)
	}
	return nil
}

// Effect returns a save effect that writes submissions through Save.
func (s *Store) Effect(resetOnSuccess bool) *formstate.SaveEffect {
	return &formstate.SaveEffect{
		Trigger:        s.Save,
		ResetOnSuccess: resetOnSuccess,
	}
}

// Watcher watches a definition row for changes using LISTEN/NOTIFY.
// Requires a trigger on the table that notifies with the row's name.
//
// Example trigger setup:
//
//	CREATE OR REPLACE FUNCTION notify_form_definition() RETURNS trigger AS $$
//	BEGIN
//	    PERFORM pg_notify('form_definitions', NEW.name);
//	    RETURN NEW;
//	END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER form_definition_trigger
//	    AFTER INSERT OR UPDATE ON form_definitions
//	    FOR EACH ROW EXECUTE FUNCTION notify_form_definition();
type Watcher struct {
	pool    *pgxpool.Pool
	db      DB
	channel string
	name    string
	table   string
	retry   time.Duration
	clock   clockz.Clock
}

// DefaultRetryInterval is the wait after a failed notification wait.
const DefaultRetryInterval = 5 * time.Second

// notifier is the part of *pgx.Conn the watch loop uses.
type notifier interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithTable sets the table name to query for definitions.
// Defaults to "form_definitions".
func WithTable(table string) Option {
	return func(w *Watcher) {
		w.table = table
	}
}

// WithRetryInterval sets the wait after a failed notification wait.
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

// NewWatcher creates a Watcher for the given notification channel and
// definition name. The channel should match the one used in pg_notify.
func NewWatcher(pool *pgxpool.Pool, channel, name string, opts ...Option) *Watcher {
	w := &Watcher{
		pool:    pool,
		db:      pool,
		channel: channel,
		name:    name,
		table:   "form_definitions",
		retry:   DefaultRetryInterval,
		clock:   clockz.RealClock,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch begins listening and returns a channel that emits the definition
// document whenever it changes. The current document is emitted first.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	_, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{w.channel}.Sanitize())
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on channel %s: %w", w.channel, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer conn.Release()

		if doc, err := w.fetch(ctx); err == nil && doc != nil {
			select {
			case out <- doc:
			case <-ctx.Done():
				return
			}
		}

		w.listen(ctx, conn.Conn(), out)
	}()

	return out, nil
}

// listen forwards the document on every notification naming this definition
// until ctx is done. A failed wait is retried after the retry interval.
func (w *Watcher) listen(ctx context.Context, n notifier, out chan<- []byte) {
	for {
		notification, err := n.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			timer := w.clock.NewTimer(w.retry)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C():
			}
			continue
		}
		if notification.Payload != w.name {
			continue
		}

		doc, err := w.fetch(ctx)
		if err != nil || doc == nil {
			continue
		}

		select {
		case out <- doc:
		case <-ctx.Done():
			return
		}
	}
}

// fetch retrieves the current definition document.
func (w *Watcher) fetch(ctx context.Context) ([]byte, error) {
	var doc []byte
	query := fmt.Sprintf("SELECT document FROM %s WHERE name = $1", pgx.Identifier{w.table}.Sanitize())
	if err := w.db.QueryRow(ctx, query, w.name).Scan(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
