package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"im-connector-go/internal/config"
	"im-connector-go/internal/localroute"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the unauthenticated liveness and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	routes  *localroute.Table
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, routes *localroute.Table, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, routes: routes, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusResponse is the body of GET /proxy/status.
type statusResponse struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	IMURL       string   `json:"im_url"`
	LocalRoutes []string `json:"local_routes"`
}

// Status reports the build version, the configured IM base URL and the
// paths answered locally.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:      "ok",
		Version:     string(h.version),
		IMURL:       h.cfg.IM.BaseURL,
		LocalRoutes: h.routes.Paths(),
	})
}
