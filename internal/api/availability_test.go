package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cueclub/internal/model"
	"cueclub/internal/slots"
)

type fakeStore struct {
	intervals []slots.Interval
}

func (f *fakeStore) HoldingIntervals(context.Context, string, model.GameType) ([]slots.Interval, error) {
	return f.intervals, nil
}

func postAvailability(t *testing.T, server *HTTPServer, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/availability", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAvailabilityMarksBookedSlots(t *testing.T) {
	day := time.Now().AddDate(0, 0, 2)
	taken := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.Local)
	store := &fakeStore{intervals: []slots.Interval{
		{Start: taken, End: taken.Add(30 * time.Minute)},
	}}

	server := NewHTTPServer(":0", store, nil, zerolog.Nop())
	rec := postAvailability(t, server, AvailabilityRequest{
		Date: day.Format("2006-01-02"), Game: "snooker", Units: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// 10:00-22:00 in 30-minute steps for a 30-minute game.
	assert.Len(t, resp.Slots, 24)
	assert.Equal(t, 80, resp.Amount)

	first := resp.Slots[0]
	assert.Equal(t, "10:00", first.Start)
	assert.False(t, first.Available)
	assert.Equal(t, "booked", first.Reason)
	assert.True(t, resp.Slots[1].Available)
}

func TestAvailabilityValidation(t *testing.T) {
	server := NewHTTPServer(":0", &fakeStore{}, nil, zerolog.Nop())

	rec := postAvailability(t, server, AvailabilityRequest{Game: "snooker"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAvailability(t, server, AvailabilityRequest{Date: "2026-09-01", Game: "carrom"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAvailability(t, server, map[string]any{
		"date": "2026-09-01", "game": "snooker", "bogus": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are refused")
}

func TestAvailabilityMethodNotAllowed(t *testing.T) {
	server := NewHTTPServer(":0", &fakeStore{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	server := NewHTTPServer(":0", &fakeStore{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
