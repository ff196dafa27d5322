package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"im-connector-go/internal/model"
)

// ErrHostNotAllowed is returned when im_url points at a host outside im.allowed_hosts.
var ErrHostNotAllowed = errors.New("im_url host is not allowed")

// Kind classifies a GatewayError.
type Kind int

const (
	// InternalError is an unexpected fault inside the gateway.
	InternalError Kind = iota
	// BackendUnavailable means the backend could not be reached in time.
	BackendUnavailable
	// BackendRejected means the backend answered the structured endpoint with a non-2xx status.
	BackendRejected
)

// String returns the metrics label for k.
func (k Kind) String() string {
	switch k {
	case BackendUnavailable:
		return "backend_unavailable"
	case BackendRejected:
		return "backend_rejected"
	default:
		return "internal_error"
	}
}

// GatewayError is the terminal error outcome of a gateway call. StatusCode and
// Message are safe to show to the caller; Err is for logs only.
type GatewayError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

const internalMessage = "internal gateway error"

// AsGatewayError returns err as a *GatewayError, wrapping anything else as
// an InternalError with a generic message.
func AsGatewayError(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return internal(err)
}

func unavailable(status int, err error) *GatewayError {
	return &GatewayError{
		Kind:       BackendUnavailable,
		StatusCode: status,
		Message:    describeTransportError(err),
		Err:        err,
	}
}

func rejected(resp *model.BackendResponse) *GatewayError {
	msg := resp.Reason
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if msg == "" {
		msg = "backend rejected the request"
	}
	return &GatewayError{
		Kind:       BackendRejected,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

func internal(err error) *GatewayError {
	return &GatewayError{
		Kind:       InternalError,
		StatusCode: http.StatusInternalServerError,
		Message:    internalMessage,
		Err:        err,
	}
}

// describeTransportError turns a transport failure into a caller-facing
// message without leaking addresses or tokens.
func describeTransportError(err error) string {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "backend request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	case errors.As(err, &dnsErr):
		return "backend host unreachable"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "backend connection failed"
	default:
		return "backend request failed"
	}
}
