package websocket

// EventPublisher defines the interface for publishing change events
type EventPublisher interface {
	// Publish sends an event to every subscriber of the specified owner
	Publish(ownerID int32, event Event)
}

// Publish implements EventPublisher for Hub
func (h *Hub) Publish(ownerID int32, event Event) {
	h.Broadcast(ownerID, event)
}

// NoOpPublisher is a publisher that does nothing (for testing or when WebSocket is disabled)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(ownerID int32, event Event) {}

// MultiPublisher fans an event out to several publishers in order
type MultiPublisher []EventPublisher

// Publish forwards the event to every non-nil publisher
func (m MultiPublisher) Publish(ownerID int32, event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ownerID, event)
		}
	}
}
