package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the API
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%d] %s: %s (%s)", e.Status, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Status, e.Code, e.Message)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// ParseError builds an APIError from a failed response
func ParseError(resp *resty.Response) *APIError {
	apiErr := &APIError{
		Status: resp.StatusCode(),
		Body:   resp.Body(),
	}

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.Field = body.Field
		return apiErr
	}

	// Fallback to generic error
	apiErr.Code = "unknown_error"
	apiErr.Message = http.StatusText(apiErr.Status)
	if len(apiErr.Body) > 0 && len(apiErr.Body) <= 200 {
		apiErr.Message = string(apiErr.Body)
	}
	return apiErr
}

// AsAPIError unwraps err to an *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func hasStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == status
}

// IsUnauthorized checks if error is due to missing/invalid authentication
func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

// IsForbidden checks if error is due to insufficient permissions
func IsForbidden(err error) bool { return hasStatus(err, http.StatusForbidden) }

// IsNotFound checks if error is due to resource not found
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

// IsServerError checks if error is due to server error (5xx)
func IsServerError(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status >= 500
}

// DisplayMessage turns any error into something a person can read
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}

	if apiErr, ok := AsAPIError(err); ok {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return "Your session has expired. Please sign in again."
		case apiErr.Status == http.StatusTooManyRequests:
			return "Too many requests. Please slow down and try again shortly."
		case apiErr.Status >= 500 && apiErr.Message == "":
			return "The server ran into a problem. Please try again."
		case apiErr.Field != "" && apiErr.Message != "":
			return fmt.Sprintf("%s: %s", apiErr.Field, apiErr.Message)
		case apiErr.Message != "":
			return apiErr.Message
		}
		return http.StatusText(apiErr.Status)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "The request was cancelled."
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return "Unable to reach the server. Check your connection."
	}
	return err.Error()
}
