// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"strings"

	"github.com/nats-io/nats.go"
)

// Key prefixes
const (
	KeyPrefixMeeting  = "meeting"
	KeyPrefixSessions = "sessions"
	KeyPrefixQueue    = "queue"
)

// KeyBuilder builds NATS KV keys from arbitrary identifiers. Each part is
// base64url encoded without padding so meeting UUIDs containing '/', '+' or
// '=' still produce valid keys.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// EntityKey builds an encoded key for an entity, e.g. meeting/85012345678.
// The id is encoded as one token even when it contains slashes.
func (kb *KeyBuilder) EntityKey(entityType, id string) string {
	parts := []string{entityType, id}
	if kb.prefix != "" {
		parts = append([]string{kb.prefix}, parts...)
	}
	for i, part := range parts {
		parts[i] = base64.RawURLEncoding.EncodeToString([]byte(part))
	}
	return strings.Join(parts, ".")
}

// EncodeKey encodes a slash separated key for NATS KV store.
// Adapted from https://github.com/ripienaar/encodedkv
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	trimmed := strings.TrimPrefix(key, "/")
	if trimmed == "" {
		return "", nats.ErrInvalidKey
	}

	parts := strings.Split(trimmed, "/")
	res := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == ">" || part == "*" {
			res = append(res, part)
			continue
		}
		res = append(res, base64.RawURLEncoding.EncodeToString([]byte(part)))
	}

	return strings.Join(res, "."), nil
}

// DecodeKey reverses EncodeKey.
func (kb *KeyBuilder) DecodeKey(key string) (string, error) {
	if key == "" {
		return "", nats.ErrInvalidKey
	}

	parts := strings.Split(key, ".")
	res := make([]string, 0, len(parts))
	for _, part := range parts {
		k, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return "", err
		}
		res = append(res, string(k))
	}

	return "/" + strings.Join(res, "/"), nil
}
