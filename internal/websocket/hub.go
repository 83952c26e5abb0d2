package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrClientClosed is returned when attempting to send to a closed client
	ErrClientClosed = errors.New("client is closed")
	// ErrSlowConsumer is returned when a client's send buffer is full
	ErrSlowConsumer = errors.New("client send buffer full")
)

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	OwnerID() int32
	Send(data []byte) error
	Close() error
}

// HubConfig bounds the connections the hub keeps per owner
type HubConfig struct {
	// MaxClientsPerOwner evicts the oldest connection once an owner exceeds it. Zero means no limit.
	MaxClientsPerOwner int
}

type session struct {
	client ClientInterface
	seq    uint64
}

// Hub routes change events to the live connections of each owner.
// It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	owners map[int32]map[string]session
	seq    uint64
	max    int
	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger, cfg HubConfig) *Hub {
	return &Hub{
		owners: make(map[int32]map[string]session),
		max:    cfg.MaxClientsPerOwner,
		logger: logger,
	}
}

// Register adds a client under its owner. When the owner is at the connection
// limit the oldest connection is closed to make room.
func (h *Hub) Register(client ClientInterface) {
	ownerID := client.OwnerID()
	clientID := client.ID()

	h.mu.Lock()
	sessions := h.owners[ownerID]
	if sessions == nil {
		sessions = make(map[string]session)
		h.owners[ownerID] = sessions
	}

	var evicted ClientInterface
	if _, exists := sessions[clientID]; !exists && h.max > 0 && len(sessions) >= h.max {
		evicted = oldest(sessions)
		delete(sessions, evicted.ID())
	}

	h.seq++
	sessions[clientID] = session{client: client, seq: h.seq}
	h.mu.Unlock()

	if evicted != nil {
		evicted.Close()
		h.logger.Info().
			Int32("owner_id", ownerID).
			Str("client_id", evicted.ID()).
			Int("limit", h.max).
			Msg("WebSocket client evicted")
	}

	h.logger.Debug().
		Int32("owner_id", ownerID).
		Str("client_id", clientID).
		Msg("WebSocket client registered")
}

func oldest(sessions map[string]session) ClientInterface {
	var found session
	for _, s := range sessions {
		if found.client == nil || s.seq < found.seq {
			found = s
		}
	}
	return found.client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client ClientInterface) {
	ownerID := client.OwnerID()
	clientID := client.ID()

	h.mu.Lock()
	sessions, ok := h.owners[ownerID]
	if !ok {
		h.mu.Unlock()
		return
	}
	s, exists := sessions[clientID]
	if !exists || s.client != client {
		h.mu.Unlock()
		return
	}
	delete(sessions, clientID)
	if len(sessions) == 0 {
		delete(h.owners, ownerID)
	}
	h.mu.Unlock()

	h.logger.Debug().
		Int32("owner_id", ownerID).
		Str("client_id", clientID).
		Msg("WebSocket client unregistered")
}

// Broadcast queues an event on every connection of the owner. Sends never block;
// a connection that cannot accept the event is dropped.
func (h *Hub) Broadcast(ownerID int32, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		h.logger.Error().
			Err(err).
			Int32("owner_id", ownerID).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	sessions := h.owners[ownerID]
	targets := make([]ClientInterface, 0, len(sessions))
	for _, s := range sessions {
		targets = append(targets, s.client)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	dropped := 0
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			dropped++
			h.Unregister(c)
			c.Close()
			h.logger.Warn().
				Err(err).
				Int32("owner_id", ownerID).
				Str("client_id", c.ID()).
				Msg("Dropped WebSocket client")
		}
	}

	h.logger.Debug().
		Int32("owner_id", ownerID).
		Str("event_type", event.Type).
		Int("client_count", len(targets)).
		Int("dropped", dropped).
		Msg("Broadcast event")
}

// ClientCount returns the number of connections an owner has open
func (h *Hub) ClientCount(ownerID int32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners[ownerID])
}

// TotalClientCount returns the total number of connected clients across all owners
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, sessions := range h.owners {
		total += len(sessions)
	}
	return total
}
