package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/pipeline"
	"github.com/jonathan/keyword-miner/internal/types"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", &pipeline.InvalidInputError{Fields: []string{"mode"}}, http.StatusBadRequest},
		{"mismatch", &workflow.MismatchError{Expected: types.ModeDeepDive, Got: types.ModeKeywordMining}, http.StatusBadRequest},
		{"unauthorized", pipeline.ErrUnauthorized, http.StatusUnauthorized},
		{"insufficient", &ledger.InsufficientCreditsError{Required: 30, Remaining: 10}, http.StatusPaymentRequired},
		{"config not found", fmt.Errorf("resolve: %w", workflow.ErrConfigNotFound), http.StatusNotFound},
		{"not provisioned", ledger.ErrAccountNotProvisioned, http.StatusNotFound},
		{"external", &pipeline.ExternalServiceError{Stage: "mining-gen", Err: errors.New("503")}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorBody(t *testing.T) {
	body := errorBody(&pipeline.InvalidInputError{Fields: []string{"seedKeyword"}})
	assert.Equal(t, "invalid input", body.Error)
	assert.Equal(t, []string{"seedKeyword"}, body.Fields)
	assert.False(t, body.Success)

	body = errorBody(&ledger.InsufficientCreditsError{Required: 30, Remaining: 10})
	require.NotNil(t, body.Required)
	assert.Equal(t, 30, *body.Required)
	assert.Equal(t, 10, *body.Remaining)

	body = errorBody(&pipeline.ExternalServiceError{Stage: "deepdive-strategy", Err: errors.New("api key sk-123 rejected")})
	assert.Equal(t, "external service failed: deepdive-strategy", body.Error)

	body = errorBody(errors.New("pq: connection refused"))
	assert.Equal(t, "internal error", body.Error)
}
