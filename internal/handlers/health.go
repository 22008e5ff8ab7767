package handlers

import (
	"net/http"
	"time"

	"civilregistry/internal/respond"
)

type HealthHandler struct {
	started time.Time
	version string
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{started: time.Now(), version: version}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}
