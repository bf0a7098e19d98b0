package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBatches(t *testing.T) {
	var batches [][]Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		batches = append(batches, batch)

		tickets := make([]Ticket, len(batch))
		for i := range tickets {
			tickets[i] = Ticket{Status: "ok", ID: fmt.Sprintf("ticket-%d", i)}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": tickets})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zerolog.Nop())
	client.limiter.SetLimit(1000) // don't throttle the test

	messages := make([]Message, 150)
	for i := range messages {
		messages[i] = Message{To: fmt.Sprintf("ExponentPushToken[%d]", i), Body: "hi"}
	}
	require.NoError(t, client.Send(context.Background(), messages))

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 50)
}

func TestSendSurvivesGatewayError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zerolog.Nop())
	client.limiter.SetLimit(1000)

	err := client.Send(context.Background(), []Message{{To: "ExponentPushToken[1]", Body: "hi"}})
	assert.NoError(t, err, "batch failures are logged, not returned")
	assert.Equal(t, 1, calls)
}

func TestSendParsesRejectedTickets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []Ticket{
			{Status: "error", Message: "bad token", Details: struct {
				Error string `json:"error,omitempty"`
			}{Error: "DeviceNotRegistered"}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zerolog.Nop())
	client.limiter.SetLimit(1000)

	err := client.Send(context.Background(), []Message{{To: "ExponentPushToken[dead]", Body: "hi"}})
	assert.NoError(t, err)
}

func TestSweepReceiptsWithoutCache(t *testing.T) {
	client := NewClient("", nil, zerolog.Nop())
	dead, err := client.SweepReceipts(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, dead)
}
