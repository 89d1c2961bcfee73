// Package feed consumes the credential store's change notifications.
// Postgres triggers (installed by internal/migrations) publish a JSON
// payload for every mutation of the users and sessions tables; the
// Feed fans those out to subscribers filtered the only two ways the
// protocol needs: username equality on users, user_id equality on
// sessions.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sorewa/gatehouse/internal/migrations"
)

// Op is the mutation kind carried by an event
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpReset is synthesized after the listener reconnects; events may
	// have been missed, so subscribers should re-validate out of band.
	OpReset Op = "reset"
)

// Row carries the union of the user and session columns the
// coordinator classifies on.
type Row struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Token             string    `json:"token"`
	UserID            string    `json:"user_id"`
	SessionID         string    `json:"session_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// Event is one decoded change notification
type Event struct {
	Table string `json:"table"`
	Op    Op     `json:"op"`
	Row   Row    `json:"row"`
}

// Filter scopes a subscription. Session events are only meaningful
// scoped to one user, so a sessions filter without a UserID matches
// nothing rather than the whole table.
type Filter struct {
	Table    string
	Username string
	UserID   string
}

func (f Filter) matches(e Event) bool {
	if e.Op == OpReset {
		return true
	}
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Table == "sessions" && f.UserID == "" {
		return false
	}
	if f.Username != "" && f.Username != e.Row.Username {
		return false
	}
	if f.UserID != "" && f.UserID != e.Row.UserID {
		return false
	}
	return true
}

type subscriber struct {
	filter Filter
	ch     chan Event
}

// Feed owns the pq listener and the subscriber set
type Feed struct {
	listener *pq.Listener

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

const (
	minReconnectInterval = time.Second
	maxReconnectInterval = 30 * time.Second
	subscriberBuffer     = 16
)

// New creates a Feed listening on the store's notify channel. conninfo
// is a libpq connection string; the restricted credentials suffice
// since listening needs no table access.
func New(conninfo string) *Feed {
	listener := pq.NewListener(conninfo, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Warn("Change feed listener event", "event", ev, "error", err)
			}
		})

	return &Feed{
		listener: listener,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run listens for notifications until ctx is cancelled. A nil
// notification from pq signals a reconnect; subscribers receive an
// OpReset event so the poll path can cover the gap.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.listener.Listen(migrations.NotifyChannel); err != nil {
		return err
	}
	defer f.listener.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-f.listener.Notify:
			if n == nil {
				f.broadcast(Event{Op: OpReset})
				continue
			}

			var e Event
			if err := json.Unmarshal([]byte(n.Extra), &e); err != nil {
				slog.Warn("Failed to decode change notification", "error", err)
				continue
			}
			f.broadcast(e)
		}
	}
}

func (f *Feed) broadcast(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// A stalled subscriber must not block the feed; the
			// coordinator's poll path compensates for drops.
			slog.Warn("Dropping change event for slow subscriber",
				"table", e.Table, "op", e.Op)
		}
	}
}

// Subscribe registers a filtered subscription. The returned cancel
// function removes the subscription and closes the channel.
func (f *Feed) Subscribe(filter Filter) (<-chan Event, func()) {
	sub := &subscriber{
		filter: filter,
		ch:     make(chan Event, subscriberBuffer),
	}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[sub]; ok {
			delete(f.subs, sub)
			close(sub.ch)
		}
		f.mu.Unlock()
	}

	return sub.ch, cancel
}
