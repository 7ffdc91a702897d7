package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/callrelay/internal/adapters/clients"
	"github.com/jsamuelsen/callrelay/internal/domain"
)

// ErrNotHandled is returned when the engine accepted a message but no
// handler on its bus claimed it.
var ErrNotHandled = errors.New("message not handled")

// errorResponse is the engine's error body. Both the nested and the flat
// form are in use.
type errorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *errorResponse) message() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}

	return e.Message
}

func parseErrorResponse(body io.Reader) *errorResponse {
	if body == nil {
		return nil
	}

	var resp errorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxReplyBytes)).Decode(&resp); err != nil {
		return nil
	}

	if resp.message() == "" && resp.Error.Code == "" && resp.Code == "" {
		return nil
	}

	return &resp
}

// mapClientError translates a transport failure into a domain error.
func mapClientError(err error, service, operation string) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewUnavailableError(service, "circuit breaker open during "+operation)
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return domain.NewUnavailableError(service, fmt.Sprintf("%s failed after retries: %v", operation, errors.Unwrap(err)))
	default:
		return domain.NewUnavailableError(service, fmt.Sprintf("%s failed: %v", operation, err))
	}
}

// mapStatus translates a non-2xx reply into a domain error.
func mapStatus(resp *http.Response, service, operation string) error {
	message := fmt.Sprintf("%s failed with status %d", operation, resp.StatusCode)

	parsed := parseErrorResponse(resp.Body)
	if parsed != nil && parsed.message() != "" {
		message = parsed.message()
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if parsed != nil {
			for field, msg := range parsed.Error.Details {
				return domain.NewValidationError(field, msg)
			}
		}

		return domain.NewValidationError("", message)
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewNotFoundError("engine endpoint", resp.Request.URL.Path)
	default:
		// 401/403 are configuration faults; to the relay the engine is just unusable.
		return domain.NewUnavailableError(service, message)
	}
}
