// Package push delivers coordinator invalidation notices to clients
// over a WebSocket, so a displaced or revoked session learns its fate
// without waiting for the next poll.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sorewa/gatehouse/internal/coordinator"
	"github.com/sorewa/gatehouse/internal/domain/auth"
	"github.com/sorewa/gatehouse/internal/sessionstore"
)

const (
	writeTimeout = 5 * time.Second
	closeGrace   = time.Second
)

// Gateway upgrades authenticated clients and runs one coordinator per
// connection.
type Gateway struct {
	signer  *auth.Signer
	store   sessionstore.Store
	checker coordinator.Checker
	feed    coordinator.Subscriber
	poll    time.Duration
}

// NewGateway creates a push gateway
func NewGateway(signer *auth.Signer, store sessionstore.Store,
	checker coordinator.Checker, feed coordinator.Subscriber, poll time.Duration) *Gateway {
	return &Gateway{
		signer:  signer,
		store:   store,
		checker: checker,
		feed:    feed,
		poll:    poll,
	}
}

// ServeHTTP accepts a watch connection. The client authenticates with
// its bearer token in the "token" query parameter since browsers
// cannot set headers on WebSocket dials.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := g.signer.Verify(raw)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	coord := coordinator.New(claims.ClientKey(), g.store, g.checker, g.feed, g.poll)

	n, err := coord.Run(ctx)
	if err != nil {
		return
	}
	if n == nil {
		conn.Close(websocket.StatusNormalClosure, "no session")
		return
	}

	if err := g.write(ctx, conn, n); err != nil {
		slog.Warn("Failed to push invalidation notice", "error", err, "reason", n.Reason)
		return
	}

	// Give the client a moment to read before closing.
	select {
	case <-time.After(closeGrace):
	case <-ctx.Done():
	}
	conn.Close(websocket.StatusNormalClosure, string(n.Reason))
}

func (g *Gateway) write(ctx context.Context, conn *websocket.Conn, n *coordinator.Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
