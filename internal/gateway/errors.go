package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrSessionExpired is returned when the server rejected the credentials.
// The session has already been ended; callers skip user-facing handling.
var ErrSessionExpired = errors.New("session expired")

type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindTimeout    ErrorKind = "timeout"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindServer     ErrorKind = "server"
)

// Error is the single error type surfaced by the gateway.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Field   string // set for field-level validation errors
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a gateway Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == kind
}

func transportError(err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Kind: KindNetwork, Message: "server unreachable", Err: err}
}

func statusError(status int, body []byte) *Error {
	kind := KindServer
	switch {
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status == http.StatusNotFound:
		kind = KindNotFound
	}
	field, msg := extractMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kind, Status: status, Message: msg, Field: field}
}

// extractMessage pulls a human readable message out of an error body. It
// understands {"detail": ...}, {"message": ...}, {"error": ...} and
// field-keyed validation maps such as {"name": ["already exists"]}.
func extractMessage(body []byte) (field, msg string) {
	if !gjson.ValidBytes(body) {
		return "", ""
	}
	res := gjson.ParseBytes(body)
	for _, key := range []string{"detail", "message", "error", "non_field_errors.0"} {
		if v := res.Get(key); v.Exists() && v.Type == gjson.String {
			return "", v.String()
		}
	}
	if !res.IsObject() {
		return "", ""
	}
	res.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsArray() && len(value.Array()) > 0:
			field, msg = key.String(), value.Array()[0].String()
		case value.Type == gjson.String:
			field, msg = key.String(), value.String()
		default:
			return true
		}
		return false
	})
	return field, msg
}
