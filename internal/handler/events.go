package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/estatebooks/internal/events"
	"github.com/aryan0dhankhar/estatebooks/internal/featureflags"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/metrics"
)

const (
	pingInterval = 15 * time.Second
	writeWait    = 5 * time.Second
	pongWait     = 45 * time.Second
)

// Subscriber hands out per-tenant event streams
type Subscriber interface {
	Subscribe(tenantID string) (<-chan events.Event, func())
}

// EventsHandler streams row change events of the active tenant over a websocket
type EventsHandler struct {
	hub            Subscriber
	flags          *featureflags.Set
	allowedOrigins []string
	logger         *slog.Logger
}

// NewEventsHandler creates an events handler
func NewEventsHandler(hub Subscriber, flags *featureflags.Set, allowedOrigins []string, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		hub:            hub,
		flags:          flags,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *EventsHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			if slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
				return true
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.flags.Enabled(featureflags.DisableLiveEvents) {
		writeError(w, http.StatusNotFound, "disabled", "live events are disabled")
		return
	}
	sel, ok := selection(w, r)
	if !ok {
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	stream, cancel := h.hub.Subscribe(sel.TenantID)
	defer cancel()

	metrics.IncrementLive()
	defer metrics.DecrementLive()

	h.logger.Debug("event stream opened", slog.String("tenant_id", sel.TenantID))

	// The read loop only exists to observe pongs and the client closing.
	closed := make(chan struct{})
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-stream:
			if !open {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.String("tenant_id", sel.TenantID))
				}
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			h.logger.Debug("event stream closed by client", slog.String("tenant_id", sel.TenantID))
			return
		case <-r.Context().Done():
			return
		}
	}
}
