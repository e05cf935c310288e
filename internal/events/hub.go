// Package events fans out row change notifications to live connections of
// the same tenant.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TypeRowUpdated is published after a successful cell update
const TypeRowUpdated = "row_updated"

// Event is one notification sent to subscribers
type Event struct {
	Type   string    `json:"type"`
	Table  string    `json:"table"`
	ID     string    `json:"id"`
	Fields []string  `json:"fields,omitempty"`
	At     time.Time `json:"at"`
}

type subscriber struct {
	ch chan Event
}

// Hub keeps subscribers per tenant. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
	logger *slog.Logger
	now    func() time.Time
}

// NewHub creates a hub with per-subscriber buffers of size buffer
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers a listener for tenantID. The returned cancel func
// unregisters it and closes the channel.
func (h *Hub) Subscribe(tenantID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[tenantID] == nil {
		h.subs[tenantID] = make(map[*subscriber]struct{})
	}
	h.subs[tenantID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[tenantID], sub)
			if len(h.subs[tenantID]) == 0 {
				delete(h.subs, tenantID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber of tenantID
func (h *Hub) Publish(tenantID string, ev Event) int {
	if ev.At.IsZero() {
		ev.At = h.now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[tenantID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.logger.Warn("dropping event for slow subscriber",
				slog.String("tenant_id", tenantID),
				slog.String("table", ev.Table),
			)
		}
	}
	return delivered
}

// RowUpdated publishes a row_updated event
func (h *Hub) RowUpdated(_ context.Context, tenantID, table, id string, fields []string) {
	h.Publish(tenantID, Event{Type: TypeRowUpdated, Table: table, ID: id, Fields: fields})
}

// Subscribers counts live subscribers of tenantID
func (h *Hub) Subscribers(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tenantID])
}
