package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var got []Event
	unsub := bus.Subscribe(TypeBookingCreated, func(e Event) {
		got = append(got, e)
	})

	bus.Publish(Event{Type: TypeBookingCreated, RecordID: 1})
	bus.Publish(Event{Type: TypeBookingDecided, RecordID: 2}) // different type

	assert.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].RecordID)
	assert.False(t, got[0].CreatedAt.IsZero(), "publish stamps CreatedAt")

	unsub()
	bus.Publish(Event{Type: TypeBookingCreated, RecordID: 3})
	assert.Len(t, got, 1, "no delivery after unsubscribe")
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	first, second := 0, 0
	bus.Subscribe(TypeMembershipDecided, func(Event) { first++ })
	bus.Subscribe(TypeMembershipDecided, func(Event) { second++ })

	bus.Publish(Event{Type: TypeMembershipDecided})
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}
