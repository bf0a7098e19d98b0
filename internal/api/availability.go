package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cueclub/internal/metrics"
	"cueclub/internal/model"
	"cueclub/internal/slots"
)

const cacheTTL = 30 * time.Second

// AvailabilityRequest is the body of POST /api/v1/availability.
type AvailabilityRequest struct {
	Date  string `json:"date"`  // Format: YYYY-MM-DD
	Game  string `json:"game"`  // "snooker" or "8ball"
	Units int    `json:"units"` // game count; snooker only
}

// SlotResponse is one candidate start time.
type SlotResponse struct {
	Start     string `json:"start"` // HH:MM
	End       string `json:"end"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"` // "booked" or "past"
}

// AvailabilityResponse is the full day menu for a (date, game, units) query.
type AvailabilityResponse struct {
	Date   string         `json:"date"`
	Game   string         `json:"game"`
	Units  int            `json:"units"`
	Amount int            `json:"amount"`
	Slots  []SlotResponse `json:"slots"`
}

// handleAvailability renders the day menu. The menu is a snapshot: slots can
// be taken between render and submit, and the submit path re-checks.
// POST /api/v1/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req AvailabilityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, game, units, err := validateAvailabilityRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("avail:%s:%s:%d", req.Date, game, units)
	if s.cache != nil {
		if cached, err := s.cache.Get(r.Context(), cacheKey).Result(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		}
	}

	existing, err := s.store.HoldingIntervals(r.Context(), req.Date, game)
	if err != nil {
		s.logger.Error().Err(err).Str("date", req.Date).Msg("load holding intervals")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	menu := slots.DayMenu(date, game, units, existing, time.Now())
	resp := AvailabilityResponse{
		Date:   req.Date,
		Game:   string(game),
		Units:  units,
		Amount: slots.GameAmount(game, units),
		Slots:  make([]SlotResponse, 0, len(menu)),
	}
	for _, c := range menu {
		resp.Slots = append(resp.Slots, SlotResponse{
			Start:     c.Start.Format("15:04"),
			End:       c.End.Format("15:04"),
			Available: c.Available,
			Reason:    c.Reason,
		})
	}

	if s.cache != nil {
		if body, err := json.Marshal(resp); err == nil {
			_ = s.cache.Set(r.Context(), cacheKey, body, cacheTTL).Err()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func validateAvailabilityRequest(req *AvailabilityRequest) (time.Time, model.GameType, int, error) {
	if req.Date == "" {
		return time.Time{}, "", 0, fmt.Errorf("date is required")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		return time.Time{}, "", 0, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}

	game := model.GameType(req.Game)
	if !game.Valid() {
		return time.Time{}, "", 0, fmt.Errorf("unknown game type")
	}

	units := req.Units
	if units < 1 {
		units = 1
	}
	return date, game, units, nil
}
