// Package headers strips connection-scoped headers before a message is
// relayed across the gateway.
package headers

import (
	"net/http"
	"strings"
)

// requestExcluded are dropped from inbound requests before forwarding.
var requestExcluded = map[string]struct{}{
	"host":           {},
	"content-length": {},
	"connection":     {},
}

// responseExcluded are dropped from backend responses before relaying.
var responseExcluded = map[string]struct{}{
	"content-encoding":  {},
	"transfer-encoding": {},
	"content-length":    {},
	"connection":        {},
}

// SanitizeRequest returns a copy of h without Host, Content-Length and
// Connection. h is not modified.
func SanitizeRequest(h http.Header) http.Header {
	return without(h, requestExcluded)
}

// SanitizeResponse returns a copy of h without Content-Encoding,
// Transfer-Encoding, Content-Length and Connection. h is not modified.
func SanitizeResponse(h http.Header) http.Header {
	return without(h, responseExcluded)
}

func without(src http.Header, excluded map[string]struct{}) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if _, drop := excluded[strings.ToLower(key)]; drop {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}
