// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"validation", NewValidationError("missing meeting id"), ErrorTypeValidation},
		{"not found", NewNotFoundError("meeting not found"), ErrorTypeNotFound},
		{"conflict", NewConflictError("modified"), ErrorTypeConflict},
		{"unavailable", NewUnavailableError("connection refused"), ErrorTypeUnavailable},
		{"rate limited", NewRateLimitedError("429"), ErrorTypeRateLimited},
		{"wrapped", fmt.Errorf("fetch: %w", NewRateLimitedError("429")), ErrorTypeRateLimited},
		{"concurrent reconciliation", ErrConcurrentReconciliation, ErrorTypeConflict},
		{"plain error", errors.New("boom"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorType(tt.err))
		})
	}
}

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewUnavailableError("zoom api unavailable", cause)

	assert.Equal(t, "zoom api unavailable: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewNotFoundError("meeting not found")
	assert.Equal(t, "meeting not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewUnavailableError("timeout")))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", NewRateLimitedError("429"))))
	assert.False(t, IsTransient(NewNotFoundError("gone")))
	assert.False(t, IsTransient(NewValidationError("bad")))
	assert.False(t, IsTransient(nil))
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "validation", ErrorTypeValidation.String())
	assert.Equal(t, "not_found", ErrorTypeNotFound.String())
	assert.Equal(t, "conflict", ErrorTypeConflict.String())
	assert.Equal(t, "unavailable", ErrorTypeUnavailable.String())
	assert.Equal(t, "rate_limited", ErrorTypeRateLimited.String())
	assert.Equal(t, "internal", ErrorTypeInternal.String())
}
