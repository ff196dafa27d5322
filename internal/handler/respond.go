package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"im-connector-go/internal/metrics"
	"im-connector-go/internal/model"
	"im-connector-go/internal/service"
)

// secretQueryPattern matches credential-like query values in URLs embedded in error messages.
var secretQueryPattern = regexp.MustCompile(`(?i)((?:access_?token|token|api_?key|password|secret)=)[^&\s"]+`)

// errorBody is the JSON shape of every error produced by the gateway itself.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeBackendResponse relays a backend reply: status, sanitized headers and
// body unchanged. Both endpoints use it.
func writeBackendResponse(c echo.Context, resp *model.BackendResponse) error {
	h := c.Response().Header()
	for key, vals := range resp.Header {
		h[key] = vals
	}
	if resp.Header.Get(echo.HeaderContentType) == "" {
		// Suppress net/http content sniffing; the backend sent no type.
		h[echo.HeaderContentType] = nil
	}

	c.Response().WriteHeader(resp.StatusCode)
	if c.Request().Method == http.MethodHead || len(resp.Body) == 0 {
		return nil
	}
	_, err := c.Response().Write(resp.Body)
	return err
}

// writeError sends ge as {"detail": ...} and counts it by kind.
func writeError(c echo.Context, m *metrics.Metrics, ge *service.GatewayError) error {
	if m != nil {
		m.GatewayErrors.WithLabelValues(ge.Kind.String()).Inc()
	}
	return c.JSON(ge.StatusCode, errorBody{Detail: ge.Message})
}

// HTTPErrorHandler renders errors returned through Echo (router misses,
// body limit, rate limit, bearer rejection) in the gateway's error shape.
// Errors that are not *echo.HTTPError are reported as a generic 500.
func HTTPErrorHandler(logger *slog.Logger, m *metrics.Metrics) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		var ge *service.GatewayError
		var status int
		var detail string
		switch {
		case errors.As(err, &he):
			status = he.Code
			detail = http.StatusText(he.Code)
			if he.Message != nil {
				if msg := fmt.Sprint(he.Message); msg != "" {
					detail = msg
				}
			}
		case errors.As(err, &ge):
			status, detail = ge.StatusCode, ge.Message
			if m != nil {
				m.GatewayErrors.WithLabelValues(ge.Kind.String()).Inc()
			}
		default:
			ge = service.AsGatewayError(err)
			status, detail = ge.StatusCode, ge.Message
			logger.Error("unhandled error",
				"err", sanitizeError(err),
				"path", c.Request().URL.Path,
			)
			if m != nil {
				m.GatewayErrors.WithLabelValues(ge.Kind.String()).Inc()
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, errorBody{Detail: detail})
		}
		if werr != nil {
			logger.Error("write error response", "err", werr)
		}
	}
}

// sanitizeError redacts credentials from error messages that may contain backend URLs.
func sanitizeError(err error) string {
	return secretQueryPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
