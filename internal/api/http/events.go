package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

type eventsPage struct {
	Events []exam.Event `json:"events"`
	Next   int64        `json:"next"` // pass as ?after= to continue
}

// GET /api/admin/events?after=&limit=
func ListEventsHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		if err != nil || after < 0 {
			after = 0
		}
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		if limit == 0 || limit > 1000 {
			limit = 1000
		}
		evs, err := svc.Events(r.Context(), after, limit)
		if err != nil {
			respondError(w, err)
			return
		}
		next := after
		if n := len(evs); n > 0 {
			next = evs[n-1].Offset
		}
		respondJSON(w, http.StatusOK, eventsPage{Events: evs, Next: next})
	}
}
