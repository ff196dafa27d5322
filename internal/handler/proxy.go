package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"im-connector-go/internal/localroute"
	"im-connector-go/internal/metrics"
	"im-connector-go/internal/model"
	"im-connector-go/internal/service"
)

// ProxyHandler tunnels /infrastructures calls to the IM, answering the
// local routes itself.
type ProxyHandler struct {
	gateway *service.Gateway
	routes  *localroute.Table
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler. m may be nil.
func NewProxyHandler(gw *service.Gateway, routes *localroute.Table, m *metrics.Metrics, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		gateway: gw,
		routes:  routes,
		metrics: m,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle answers a local route or forwards the call unchanged. Backend
// statuses are relayed verbatim; only transport failures become errors.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	path := strings.TrimPrefix(req.URL.Path, "/")

	if route, ok := h.routes.Lookup(path); ok {
		if h.metrics != nil {
			h.metrics.LocalRouteHits.WithLabelValues(path).Inc()
		}
		r := route()
		return c.JSON(r.Status, r.Body)
	}

	query, err := model.ParseQuery(req.URL.RawQuery)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "malformed query string"})
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return writeError(c, h.metrics, service.AsGatewayError(err))
	}

	pr := &model.ProxyRequest{
		Method: req.Method,
		Path:   path,
		Query:  query,
		Header: req.Header,
		Body:   body,
	}

	resp, err := h.gateway.Forward(req.Context(), pr)
	if err != nil {
		ge := service.AsGatewayError(err)
		h.logger.Error("proxy error",
			"kind", ge.Kind.String(),
			"err", sanitizeError(err),
			"path", req.URL.Path,
		)
		return writeError(c, h.metrics, ge)
	}

	return writeBackendResponse(c, resp)
}
