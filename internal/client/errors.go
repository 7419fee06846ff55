package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"

	mhttp "github.com/wolfeidau/murmur/internal/http"
	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
	"github.com/wolfeidau/murmur/internal/session"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		RequestID:  resp.Header.Get(mhttp.RequestIDHeader),
	}
}

// errorMessage flattens the error bodies the API produces: {"detail": ...},
// {"error": ...}, {"message": ...} and field maps such as {"username": ["taken"]}.
func errorMessage(body []byte) string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 || strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}

	for _, key := range []string{"detail", "error", "message"} {
		if v, ok := raw[key]; ok {
			if s := flatten(v); s != "" {
				return s
			}
		}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s := flatten(raw[k]); s != "" {
			parts = append(parts, k+": "+s)
		}
	}
	return strings.Join(parts, "; ")
}

func flatten(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return strings.Join(list, " ")
	}
	return ""
}

// Describe turns any client, session or view error into a message fit for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return "your session is no longer valid, please log in again"
		case http.StatusForbidden:
			return "you do not have permission to do that"
		case http.StatusNotFound:
			return "not found"
		}
		if apiErr.StatusCode >= 500 {
			return fmt.Sprintf("the server failed to handle the request (%d)", apiErr.StatusCode)
		}
		return apiErr.Message
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, session.ErrNoToken):
		return "you are not logged in, run `murmur login` first"
	case errors.Is(err, session.ErrTokenExpired):
		return "your session has expired, please log in again"
	case errors.Is(err, session.ErrInvalidToken):
		return "the server issued a token that could not be read"
	case errors.Is(err, optimistic.ErrPending):
		return "another change to this item is still in progress"
	case errors.Is(err, optimistic.ErrNotFound):
		return "that item is no longer available"
	case errors.Is(err, models.ErrInvalidRequest):
		return err.Error()
	case errors.Is(err, models.ErrInvalidResponse):
		return "the server sent a response that could not be understood"
	case errors.Is(err, context.DeadlineExceeded):
		return "the server took too long to respond"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return "could not reach the server"
	}

	return err.Error()
}
