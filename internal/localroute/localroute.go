// Package localroute answers a fixed set of proxied paths inside the gateway,
// so they keep working while the IM backend is down.
package localroute

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Paths served locally, relative to the mount root.
const (
	StatusPath      = "infrastructures/proxylocalstatus"
	HealthcheckPath = "infrastructures/proxyhealthcheck"
)

// Response is a canned reply rendered as JSON.
type Response struct {
	Status int
	Body   any
}

// Route produces the reply for one local path.
type Route func() Response

// Table maps exact paths to local routes. It is built once and only read
// afterwards.
type Table struct {
	routes map[string]Route
}

// New returns the table of built-in local routes. started is the process
// start time reported by the health check.
func New(started time.Time) *Table {
	return &Table{routes: map[string]Route{
		StatusPath: func() Response {
			return Response{Status: http.StatusOK, Body: map[string]string{
				"service": "proxy",
				"status":  "ok",
			}}
		},
		HealthcheckPath: func() Response {
			return Response{Status: http.StatusOK, Body: map[string]string{
				"health": "green",
				"uptime": fmt.Sprintf("%ds", int64(time.Since(started).Seconds())),
			}}
		},
	}}
}

// Lookup returns the route registered for path. A miss means the request
// should be forwarded.
func (t *Table) Lookup(path string) (Route, bool) {
	r, ok := t.routes[path]
	return r, ok
}

// Paths lists the registered paths in sorted order.
func (t *Table) Paths() []string {
	paths := make([]string, 0, len(t.routes))
	for p := range t.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
