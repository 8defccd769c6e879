package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized means the request carried no valid identity.
var ErrUnauthorized = errors.New("unauthorized")

// InvalidInputError names the request fields that are missing or malformed.
type InvalidInputError struct {
	Fields []string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, ", ")
}

func invalidInput(fields ...string) error {
	return &InvalidInputError{Fields: fields}
}

// ExternalServiceError is a failure of the primary generative step. It is the
// only external failure that fails a request.
type ExternalServiceError struct {
	Stage string
	Err   error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
