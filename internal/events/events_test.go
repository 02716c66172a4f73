package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()

	var got []*Event
	bus.Subscribe(EventBookingCreated, func(e *Event) error {
		got = append(got, e)
		return nil
	})

	payload := BookingEventPayload{
		BookingID:    1,
		ConsultantID: 7,
		UserEmail:    "bob@y.com",
		Date:         "2025-03-01",
		TimeLabel:    "10:00 AM",
	}
	require.NoError(t, bus.PublishJSON(EventBookingCreated, payload))

	require.Len(t, got, 1)
	assert.Equal(t, EventBookingCreated, got[0].Type)
	assert.False(t, got[0].CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &decoded))
	assert.Equal(t, payload.BookingID, decoded.BookingID)
	assert.Equal(t, payload.TimeLabel, decoded.TimeLabel)
}

func TestPublishNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: EventReminderSent, CreatedAt: time.Now()})
	})
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus()

	first := false
	second := false
	bus.Subscribe(EventEntitlementApproved, func(e *Event) error {
		first = true
		return errors.New("boom")
	})
	bus.Subscribe(EventEntitlementApproved, func(e *Event) error {
		second = true
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventEntitlementApproved, EntitlementEventPayload{UserEmail: "u@x.com"}))
	assert.True(t, first)
	assert.True(t, second)
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, nil))
}
