package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"message": msg})
}

// respondError maps an error kind to its status code. Unknown errors are
// logged and hidden behind a 500.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exam.ErrUnauthenticated):
		respondMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, exam.ErrNotFound):
		respondMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, exam.ErrConflict):
		respondMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, exam.ErrBadRequest), errors.Is(err, exam.ErrInvalid):
		respondMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// queryID reads a required positive integer query parameter.
func queryID(r *http.Request, name string) (int64, bool) {
	return parseID(r.URL.Query().Get(name))
}

func parseID(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
