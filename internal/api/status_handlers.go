package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress/sinks"
)

const (
	defaultTargetLimit = 100
	maxTargetLimit     = 2000
)

// StatusHandler serves the live crawl view assembled by the status sink.
type StatusHandler struct {
	status *sinks.StatusSink
	logger *zap.Logger
}

// NewStatusHandler wires the status view and logger.
func NewStatusHandler(status *sinks.StatusSink, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{status: status, logger: logger}
}

// GetProgress handles GET /v1/progress. It returns the run snapshot, or 503
// when no status view is wired.
func (h *StatusHandler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	if h.status == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "status view unavailable")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"run": h.status.Snapshot()})
}

// ListTargets handles GET /v1/targets?status=&limit=&offset=. Targets come
// back in start order; the optional status filter accepts running, done, or
// failed.
func (h *StatusHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "status view unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultTargetLimit, maxTargetLimit)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	filter := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	switch filter {
	case "", "running", "done", "failed":
	default:
		writeError(w, h.logger, http.StatusBadRequest, "invalid status")
		return
	}

	targets := h.status.Targets()
	if filter != "" {
		kept := targets[:0]
		for _, t := range targets {
			if t.Status == filter {
				kept = append(kept, t)
			}
		}
		targets = kept
	}
	total := len(targets)
	if offset >= len(targets) {
		targets = []sinks.TargetStatus{}
	} else {
		targets = targets[offset:]
	}
	if limit < len(targets) {
		targets = targets[:limit]
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"total":   total,
		"targets": targets,
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
