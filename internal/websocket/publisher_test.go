package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	events []Event
	owners []int32
}

func (r *recordingPublisher) Publish(ownerID int32, event Event) {
	r.owners = append(r.owners, ownerID)
	r.events = append(r.events, event)
}

func TestHub_Implements_EventPublisher(t *testing.T) {
	var _ EventPublisher = (*Hub)(nil)
}

func TestHub_Publish(t *testing.T) {
	hub := newTestHub(0)

	client := newMockClient("client-1", 1)
	hub.Register(client)

	var publisher EventPublisher = hub
	publisher.Publish(1, ObligationPaid(map[string]any{"id": float64(42)}))

	assert.Len(t, client.Messages(), 1)
}

func TestNoOpPublisher_Publish(t *testing.T) {
	publisher := &NoOpPublisher{}

	assert.NotPanics(t, func() {
		publisher.Publish(1, ObligationCreated(map[string]any{"id": float64(1)}))
	})
}

func TestMultiPublisher_FansOut(t *testing.T) {
	first := &recordingPublisher{}
	second := &recordingPublisher{}
	multi := MultiPublisher{first, nil, second}

	multi.Publish(5, TemplateDeleted(map[string]any{"id": float64(3)}))

	assert.Equal(t, []int32{5}, first.owners)
	assert.Equal(t, []int32{5}, second.owners)
	assert.Equal(t, "template.deleted", second.events[0].Type)
}
