// Package coordinator watches for session invalidation on behalf of
// one signed-in client and clears the local session when it happens.
// Two independent paths feed a single invalidate channel: the store's
// change feed (near-real-time) and a fixed-interval poll that covers
// feed gaps. Both are idempotent and safe to race; clearing an
// already-cleared record is a no-op.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sorewa/gatehouse/internal/domain/auth"
	"github.com/sorewa/gatehouse/internal/feed"
	"github.com/sorewa/gatehouse/internal/sessionstore"
)

// Reason classifies why a session was invalidated
type Reason string

const (
	ReasonAccessRevoked      Reason = "access_revoked"
	ReasonTokenModified      Reason = "token_modified"
	ReasonSignedInElsewhere  Reason = "signed_in_elsewhere"
	ReasonSessionDeactivated Reason = "session_deactivated"
)

// Notice is delivered to the client when its session is invalidated
type Notice struct {
	Reason   Reason `json:"reason"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

func notice(r Reason) Notice {
	switch r {
	case ReasonAccessRevoked:
		return Notice{r, "access revoked", "/"}
	case ReasonTokenModified:
		return Notice{r, "token modified by admin", "/"}
	case ReasonSignedInElsewhere:
		return Notice{r, "signed in elsewhere", "/login"}
	default:
		return Notice{ReasonSessionDeactivated, "session deactivated", "/login"}
	}
}

// Checker re-runs the session check flow; *auth.Service satisfies it
type Checker interface {
	CheckSession(ctx context.Context, clientKey string) (auth.Status, *sessionstore.Record, error)
}

// Subscriber is the slice of the change feed the coordinator needs
type Subscriber interface {
	Subscribe(filter feed.Filter) (<-chan feed.Event, func())
}

// Coordinator drives invalidation for a single client
type Coordinator struct {
	clientKey string
	store     sessionstore.Store
	checker   Checker
	feed      Subscriber
	poll      time.Duration
}

// New creates a coordinator for the client whose record lives under
// clientKey. poll is the fallback re-check interval; zero means 5s.
func New(clientKey string, store sessionstore.Store, checker Checker, sub Subscriber, poll time.Duration) *Coordinator {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Coordinator{
		clientKey: clientKey,
		store:     store,
		checker:   checker,
		feed:      sub,
		poll:      poll,
	}
}

// Run watches until the session is invalidated or ctx is cancelled.
// On invalidation the local record is cleared and the notice returned.
// A nil notice means the context ended first.
func (c *Coordinator) Run(ctx context.Context) (*Notice, error) {
	rec, err := c.store.Load(ctx, c.clientKey)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	cmds := make(chan Notice, 4)
	watchCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Admin sessions never touch the registry and carry no user id, so
	// there is nothing for them on the feed; an empty user_id filter
	// would watch every session in the system. The poll path covers
	// them alone.
	if !rec.IsAdmin {
		userEvents, cancelUsers := c.feed.Subscribe(feed.Filter{Table: "users", Username: rec.Username})
		defer cancelUsers()
		sessEvents, cancelSessions := c.feed.Subscribe(feed.Filter{Table: "sessions", UserID: rec.UserID})
		defer cancelSessions()
		go c.watchLoop(watchCtx, rec, userEvents, sessEvents, cmds)
	}
	go c.pollLoop(watchCtx, cmds)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n := <-cmds:
		if err := c.store.Clear(ctx, c.clientKey); err != nil {
			slog.Warn("Failed to clear session record on invalidation",
				"error", err, "reason", n.Reason)
		}
		return &n, nil
	}
}

// watchLoop classifies change events against the local record
func (c *Coordinator) watchLoop(ctx context.Context, rec *sessionstore.Record,
	users, sessions <-chan feed.Event, cmds chan<- Notice) {

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-users:
			if !ok {
				return
			}
			if n := classifyUserEvent(e, rec); n != nil {
				emit(ctx, cmds, *n)
			}
		case e, ok := <-sessions:
			if !ok {
				return
			}
			if n := classifySessionEvent(e, rec); n != nil {
				emit(ctx, cmds, *n)
			}
		}
	}
}

// pollLoop re-invokes the session check at a fixed interval as the
// fallback when the push channel is unavailable or delayed.
func (c *Coordinator) pollLoop(ctx context.Context, cmds chan<- Notice) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, _, err := c.checker.CheckSession(ctx, c.clientKey)
			if err != nil {
				slog.Warn("Coordinator poll failed", "error", err)
				continue
			}
			switch status {
			case auth.StatusAccessRevoked:
				emit(ctx, cmds, notice(ReasonAccessRevoked))
				return
			case auth.StatusTokenExpired, auth.StatusTokenDeactivated:
				emit(ctx, cmds, notice(ReasonTokenModified))
				return
			case auth.StatusAnonymous:
				// Record vanished underneath us; another path cleared it.
				emit(ctx, cmds, notice(ReasonSessionDeactivated))
				return
			}
		}
	}
}

func emit(ctx context.Context, cmds chan<- Notice, n Notice) {
	select {
	case cmds <- n:
	case <-ctx.Done():
	}
}

func classifyUserEvent(e feed.Event, rec *sessionstore.Record) *Notice {
	switch e.Op {
	case feed.OpDelete:
		n := notice(ReasonAccessRevoked)
		return &n
	case feed.OpUpdate:
		if e.Row.Token == "" || e.Row.Token != rec.Token {
			n := notice(ReasonTokenModified)
			return &n
		}
	}
	return nil
}

func classifySessionEvent(e feed.Event, rec *sessionstore.Record) *Notice {
	if e.Op != feed.OpInsert && e.Op != feed.OpUpdate {
		return nil
	}

	if e.Row.SessionID == rec.SessionID {
		if !e.Row.IsActive {
			n := notice(ReasonSessionDeactivated)
			return &n
		}
		return nil
	}

	if e.Row.IsActive && e.Row.CreatedAt.After(rec.CreatedAt) {
		n := notice(ReasonSignedInElsewhere)
		return &n
	}
	return nil
}
