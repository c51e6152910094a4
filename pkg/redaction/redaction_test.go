// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package redaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{"regular address", "jane.doe@example.org", "j*******@example.org"},
		{"single char local part", "j@example.org", "*@example.org"},
		{"no at sign", "janedoe", "j******"},
		{"leading at sign", "@example.org", "@***********"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactEmail(tt.email))
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "Z***", Redact("Zoë!"))
	assert.Equal(t, "*", Redact("a"))
}
