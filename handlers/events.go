// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/startup-votes/cliparse"
	"github.com/danielhkuo/startup-votes/votesync"
)

const (
	eventBuffer  = 64
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// EventsHandler streams synchronizer events to the page over a websocket.
type EventsHandler struct {
	sync     *votesync.Synchronizer
	upgrader websocket.Upgrader
}

func NewEventsHandler(sync *votesync.Synchronizer, cfg cliparse.Config) *EventsHandler {
	origins := cfg.CORSOrigins
	return &EventsHandler{
		sync: sync,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
	}
}

// Stream handles GET /events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	events := make(chan votesync.Event, eventBuffer)
	// Subscribed before the upgrade so nothing emitted after the handshake is missed
	unsubscribe := h.sync.Subscribe(func(ev votesync.Event) {
		select {
		case events <- ev:
		default:
			slog.Warn("event dropped for slow subscriber", "kind", ev.Kind)
		}
	})
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade", "error", err)
		return
	}
	defer conn.Close()

	// The page never sends anything; reading only notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("event stream closed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
