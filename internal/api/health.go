package api

import (
	"context"
	"net/http"
	"time"
)

const (
	pendingWarnThreshold = 1000
	deadLetterThreshold  = 100
)

type HealthResponse struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Database string        `json:"database"`
	Outbox   *OutboxHealth `json:"outbox,omitempty"`
}

type OutboxHealth struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

// Health reports database reachability and outbox backlog. A large pending
// backlog is a warning; dead letters past the threshold or an unreachable
// database fail the check.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "disabled"}
	status := http.StatusOK

	if h.Database != nil {
		if err := h.Database.Ping(ctx); err != nil {
			h.logger.Error("database health check failed", "error", err)
			resp.Database = "down"
			resp.Status = "error"
			resp.Message = "database unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "up"
		}
	}

	if h.Outbox != nil && resp.Database == "up" {
		pending, dead, err := h.Outbox.Stats(ctx)
		if err != nil {
			h.logger.Warn("failed to read outbox stats", "error", err)
		} else {
			resp.Outbox = &OutboxHealth{Pending: pending, DeadLetter: dead}
			if pending > pendingWarnThreshold {
				resp.Status = "warning"
				resp.Message = "High number of pending outbox events"
			}
			if dead > deadLetterThreshold {
				resp.Status = "error"
				resp.Message = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, resp)
}
