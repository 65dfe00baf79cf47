package httpclient

import (
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 1 << 20

// StatusError is returned by the circuit breaker client for responses the
// remote side failed to serve (5xx and 429). The body is already consumed.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, string(e.Body))
}

func newStatusError(resp *http.Response) *StatusError {
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}
