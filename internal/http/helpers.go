package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/period"
)

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// methodNotAllowed replies 405 with the Allow header set.
func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// parseDateParam parses an optional YYYY-MM-DD query parameter. An absent
// value yields the zero date, which downstream resolves to today.
func parseDateParam(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid %s %q: want YYYY-MM-DD", name, v)
	}
	return core.DateOf(t), nil
}

// parsePeriodParam reads and validates the period query parameter. Period
// kind strings are checked here; the resolver downstream assumes valid input.
func parsePeriodParam(r *http.Request, defaultKind core.PeriodKind) (core.PeriodKind, error) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return defaultKind, nil
	}
	kind := core.PeriodKind(v)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid period %q: want daily, weekly, monthly, yearly or custom", v)
	}
	return kind, nil
}

// resolveRangeParams turns the period/date (or start/end for custom) query
// parameters into a resolved range.
func resolveRangeParams(r *http.Request, resolve func(core.PeriodKind, core.Date) period.Range, defaultKind core.PeriodKind) (period.Range, error) {
	kind, err := parsePeriodParam(r, defaultKind)
	if err != nil {
		return period.Range{}, err
	}

	if kind == core.Custom {
		start, err := parseDateParam(r, "start")
		if err != nil {
			return period.Range{}, err
		}
		end, err := parseDateParam(r, "end")
		if err != nil {
			return period.Range{}, err
		}
		if start.IsZero() || end.IsZero() {
			return period.Range{}, fmt.Errorf("custom period requires start and end dates")
		}
		if end.Before(start.Time) {
			return period.Range{}, fmt.Errorf("custom period end precedes start")
		}
		return period.ResolveCustom(start, end), nil
	}

	ref, err := parseDateParam(r, "date")
	if err != nil {
		return period.Range{}, err
	}
	return resolve(kind, ref), nil
}

// parseIDParam reads a positive integer id query parameter. Zero means
// absent.
func parseIDParam(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get("id"))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", v)
	}
	return id, nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
