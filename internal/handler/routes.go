package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Guard authenticates the caller before a protected handler runs.
type Guard echo.MiddlewareFunc

// proxyMethods are the verbs tunnelled to the IM.
var proxyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodOptions,
	http.MethodHead,
}

// RegisterRoutes wires all route handlers onto the Echo instance. A nil guard
// leaves the deployment and proxy routes open.
func RegisterRoutes(e *echo.Echo, deployments *DeploymentHandler, proxy *ProxyHandler, health *HealthHandler, guard Guard) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	var protected []echo.MiddlewareFunc
	if guard != nil {
		protected = append(protected, echo.MiddlewareFunc(guard))
	}

	e.POST("/api/v1/deployments", deployments.Create, protected...)
	e.Match(proxyMethods, "/infrastructures", proxy.Handle, protected...)
	e.Match(proxyMethods, "/infrastructures/*", proxy.Handle, protected...)
}
