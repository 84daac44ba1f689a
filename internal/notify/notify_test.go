package notify

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	event := Event{
		Type:       AppointmentBooked,
		OccurredAt: time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC),
		Payload:    map[string]interface{}{"appointmentId": "a-1"},
	}

	body, err := Encode(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "appointment.booked", decoded["type"])
	assert.Equal(t, "2025-03-01T02:00:00Z", decoded["occurredAt"])
	assert.Equal(t, "a-1", decoded["payload"].(map[string]interface{})["appointmentId"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewEvent(InvoicePaid, nil)))
	assert.NoError(t, p.Close())
}
