// Package server provides the HTTP API for the keyword miner.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/pipeline"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	Fields    []string `json:"fields,omitempty"`
	Required  *int     `json:"required,omitempty"`
	Remaining *int     `json:"remaining,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		inv *pipeline.InvalidInputError
		ins *ledger.InsufficientCreditsError
	)
	switch {
	case errors.As(err, &inv), errors.Is(err, workflow.ErrWorkflowMismatch):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &ins):
		return http.StatusPaymentRequired
	case errors.Is(err, workflow.ErrConfigNotFound), errors.Is(err, ledger.ErrAccountNotProvisioned):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorBody describes err for the client. Internal failures are not echoed.
func errorBody(err error) ErrorBody {
	body := ErrorBody{Error: err.Error()}

	var (
		inv *pipeline.InvalidInputError
		ins *ledger.InsufficientCreditsError
	)
	switch {
	case errors.As(err, &inv):
		body.Error = "invalid input"
		body.Fields = inv.Fields
	case errors.As(err, &ins):
		body.Error = "insufficient credits"
		body.Required = &ins.Required
		body.Remaining = &ins.Remaining
	case HTTPStatus(err) == http.StatusInternalServerError:
		var ext *pipeline.ExternalServiceError
		if errors.As(err, &ext) {
			body.Error = "external service failed: " + ext.Stage
		} else {
			body.Error = "internal error"
		}
	}
	return body
}
