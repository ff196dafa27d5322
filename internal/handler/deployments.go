package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"im-connector-go/internal/config"
	"im-connector-go/internal/metrics"
	"im-connector-go/internal/model"
	"im-connector-go/internal/service"
)

// DeploymentHandler serves POST /api/v1/deployments.
type DeploymentHandler struct {
	gateway *service.Gateway
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDeploymentHandler creates a DeploymentHandler. m may be nil.
func NewDeploymentHandler(gw *service.Gateway, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *DeploymentHandler {
	return &DeploymentHandler{
		gateway: gw,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "deployment_handler"),
	}
}

// Create validates the deployment request and submits its TOSCA template to
// the IM named in im_url. A 2xx reply is relayed as-is.
func (h *DeploymentHandler) Create(c echo.Context) error {
	var dr model.DeploymentRequest
	if err := c.Bind(&dr); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return c.JSON(http.StatusUnprocessableEntity, errorBody{Detail: "request body must be a JSON object"})
	}
	if err := dr.Validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorBody{Detail: err.Error()})
	}
	if h.cfg.Deployments.ValidateTemplate {
		if err := dr.ValidateTemplate(); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, errorBody{Detail: err.Error()})
		}
	}

	resp, err := h.gateway.CreateDeployment(c.Request().Context(), dr)
	if errors.Is(err, service.ErrHostNotAllowed) {
		h.logger.Warn("deployment to disallowed host", "host", dr.BackendHost())
		return c.JSON(http.StatusForbidden, errorBody{Detail: err.Error()})
	}
	if err != nil {
		ge := service.AsGatewayError(err)
		h.logger.Error("deployment failed",
			"kind", ge.Kind.String(),
			"status", ge.StatusCode,
			"err", sanitizeError(err),
		)
		return writeError(c, h.metrics, ge)
	}

	h.logger.Info("deployment submitted",
		"host", dr.BackendHost(),
		"provider", dr.ProviderName,
		"status", resp.StatusCode,
	)
	return writeBackendResponse(c, resp)
}
