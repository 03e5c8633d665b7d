package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jinzhu/now"

	"github.com/lojf/gymclass/internal/models"
)

func idParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// userHeader reads the caller identity from X-User-ID.
func userHeader(r *http.Request) (uint, error) {
	raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if raw == "" {
		return 0, badRequest("missing X-User-ID header")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid X-User-ID %q", raw)
	}
	return uint(id), nil
}

// actor names who performs a staff or member action, for audit fields.
func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get("X-Actor")); a != "" {
		return a
	}
	if u := strings.TrimSpace(r.Header.Get("X-User-ID")); u != "" {
		return "user:" + u
	}
	return "staff"
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := models.ParseDay(raw)
	if err != nil {
		return time.Time{}, badRequest("%s: want YYYY-MM-DD, got %q", field, raw)
	}
	return d, nil
}

func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// dateRange reads ?from&to. Missing bounds default to the Monday-based week
// around today.
func (h *Handlers) dateRange(r *http.Request) (time.Time, time.Time, error) {
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: time.UTC}
	week := cfg.With(h.Svc.Today())
	from, to := week.BeginningOfWeek(), models.Day(week.EndOfWeek())

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		d, err := parseDate("from", raw)
		if err != nil {
			return from, to, err
		}
		from = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := parseDate("to", raw)
		if err != nil {
			return from, to, err
		}
		to = d
	}
	return from, to, nil
}
