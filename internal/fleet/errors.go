package fleet

import (
	"errors"
	"fmt"
)

const invalidUserException = "InvalidUserException"

// APIError is an error object returned in a JSON-RPC response.
type APIError struct {
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// StatusError is a non-2xx HTTP response from the API endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fleet api returned status: %d", e.StatusCode)
}

func IsInvalidUser(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Name == invalidUserException
}

type rpcError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Errors  []struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *rpcError) toAPIError() *APIError {
	apiErr := &APIError{Name: e.Name, Message: e.Message}
	if len(e.Errors) > 0 {
		if e.Errors[0].Name != "" {
			apiErr.Name = e.Errors[0].Name
		}
		if apiErr.Message == "" {
			apiErr.Message = e.Errors[0].Message
		}
	}
	return apiErr
}
