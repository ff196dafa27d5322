// Package model defines shared types for the gateway.
package model

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ProxyRequest represents a client call to be tunnelled to the IM backend.
// Path is relative to the mount root, e.g. "infrastructures/<id>/state".
type ProxyRequest struct {
	Method string
	Path   string
	Query  []QueryParam
	Header http.Header
	Body   []byte
}

// QueryParam is a single key/value pair of a query string.
type QueryParam struct {
	Key   string
	Value string
}

// BackendResponse is a fully read reply from the IM backend. Header never
// carries hop-by-hop entries.
type BackendResponse struct {
	StatusCode int
	Reason     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the backend answered with a 2xx status.
func (r *BackendResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ParseQuery splits a raw query string into its pairs, keeping their order.
func ParseQuery(raw string) ([]QueryParam, error) {
	var params []QueryParam
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("query key %q: %w", k, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("query value for %q: %w", key, err)
		}
		params = append(params, QueryParam{Key: key, Value: val})
	}
	return params, nil
}

// EncodeQuery is the inverse of ParseQuery.
func EncodeQuery(params []QueryParam) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
