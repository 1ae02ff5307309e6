package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/core"
	"github.com/edvin/subadmin/internal/model"
)

const (
	eventBuffer       = 16
	eventWriteTimeout = 5 * time.Second
)

// SessionEvent is one managed session transition as sent to event stream clients.
type SessionEvent struct {
	Event    string          `json:"event"`
	Identity *model.Identity `json:"identity"`
}

type Events struct {
	identity       *core.IdentityResolver
	originPatterns []string
}

// NewEvents streams session changes; originPatterns are the hosts allowed to
// open the socket cross-origin.
func NewEvents(identity *core.IdentityResolver, originPatterns []string) *Events {
	return &Events{identity: identity, originPatterns: originPatterns}
}

// Stream upgrades to a WebSocket and writes one JSON message per managed
// session change until the client disconnects.
func (h *Events) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		return // Accept already wrote the HTTP error
	}
	defer conn.CloseNow()

	logger := zerolog.Ctx(r.Context())

	events := make(chan SessionEvent, eventBuffer)
	unsubscribe := h.identity.SubscribeToChanges(func(event string, session *model.Session) {
		select {
		case events <- SessionEvent{Event: event, Identity: model.IdentityFromSession(session)}:
		default:
			logger.Warn().Str("event", event).Msg("session event dropped, client too slow")
		}
	})
	defer unsubscribe()

	// Clients never send; CloseRead cancels ctx once they go away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				logger.Debug().Err(err).Msg("write session event")
				return
			}
		}
	}
}
