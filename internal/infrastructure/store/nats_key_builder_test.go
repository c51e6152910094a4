// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilder_EncodeDecodeRoundTrip(t *testing.T) {
	kb := NewKeyBuilder("")

	tests := []struct {
		name string
		key  string
	}{
		{"numeric meeting id", "meeting/85012345678"},
		{"uuid with slash", "sessions/aB1//cD2+eF3=="},
		{"uuid with leading slash", "/meeting/x/y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := kb.EncodeKey(tt.key)
			require.NoError(t, err)
			assert.NotContains(t, encoded, "/")
			assert.NotContains(t, encoded, "=")

			decoded, err := kb.DecodeKey(encoded)
			require.NoError(t, err)
			assert.Equal(t, "/"+strings.TrimPrefix(tt.key, "/"), decoded)
		})
	}
}

func TestKeyBuilder_EncodeKeyRejectsEmpty(t *testing.T) {
	kb := NewKeyBuilder("")

	_, err := kb.EncodeKey("")
	assert.Error(t, err)

	_, err = kb.EncodeKey("/")
	assert.Error(t, err)

	_, err = kb.DecodeKey("")
	assert.Error(t, err)
}

func TestKeyBuilder_EncodeKeyKeepsWildcards(t *testing.T) {
	kb := NewKeyBuilder("")

	encoded, err := kb.EncodeKey("meeting/>")

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(encoded, ".>"))
}

func TestKeyBuilder_EntityKey(t *testing.T) {
	plain := NewKeyBuilder("")
	prefixed := NewKeyBuilder("v1")

	assert.NotEqual(t, plain.EntityKey(KeyPrefixMeeting, "1"), plain.EntityKey(KeyPrefixSessions, "1"))
	assert.NotEqual(t, plain.EntityKey(KeyPrefixMeeting, "1"), prefixed.EntityKey(KeyPrefixMeeting, "1"))

	decoded, err := prefixed.DecodeKey(prefixed.EntityKey(KeyPrefixQueue, "abc/def=="))
	require.NoError(t, err)
	assert.Equal(t, "/v1/queue/abc/def==", decoded)
}
