// Package ws delivers accepted community messages to live subscribers
// over WebSocket connections.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/models"
	"go.uber.org/zap"
)

// subscriptionBuffer is the per-subscriber backlog. A subscriber whose
// buffer is full has its message dropped, not waited on: delivery is
// best-effort and the admission pipeline never blocks on a slow reader
// (history is the source of truth, the stream is a convenience).
const subscriptionBuffer = 32

// Envelope is the JSON frame pushed to subscribers.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Subscription is one listener on one community's message stream.
// Frames arrive on C until Close is called.
type Subscription struct {
	C chan []byte

	communityID uuid.UUID
	hub         *Hub
	closeOnce   sync.Once
}

// Close detaches the subscription from the hub. Frames already buffered
// on C remain readable; no new ones arrive.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// Hub groups subscriptions by community and fans accepted messages out
// to them. It implements chat.Broadcaster.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Subscription]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a listener for one community's stream.
func (h *Hub) Subscribe(communityID uuid.UUID) *Subscription {
	sub := &Subscription{
		C:           make(chan []byte, subscriptionBuffer),
		communityID: communityID,
		hub:         h,
	}

	h.mu.Lock()
	if h.rooms[communityID] == nil {
		h.rooms[communityID] = make(map[*Subscription]struct{})
	}
	h.rooms[communityID][sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	if subs, ok := h.rooms[s.communityID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.rooms, s.communityID)
		}
	}
	h.mu.Unlock()
}

// Broadcast pushes a message frame to every subscriber of the
// community. Non-blocking per subscriber: a full buffer means the frame
// is dropped for that subscriber only.
func (h *Hub) Broadcast(communityID uuid.UUID, msg *models.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message for broadcast", zap.Error(err))
		return
	}
	frame, err := json.Marshal(Envelope{Type: "message", Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast envelope", zap.Error(err))
		return
	}

	// Snapshot under the read lock, send outside it.
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.rooms[communityID]))
	for sub := range h.rooms[communityID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.C <- frame:
		default:
			h.logger.Warn("dropping frame for slow subscriber",
				zap.String("community_id", communityID.String()),
			)
		}
	}
}

// Subscribers reports how many listeners a community currently has.
func (h *Hub) Subscribers(communityID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[communityID])
}
