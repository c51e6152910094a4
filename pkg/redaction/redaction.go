// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package redaction masks personal data before it reaches log output.
package redaction

import "strings"

// Redact keeps the first character of s and masks the rest.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) == 1 {
		return "*"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// RedactEmail masks the local part of an email address and keeps the domain,
// e.g. jane.doe@example.org -> j*******@example.org.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return Redact(email)
	}
	return Redact(email[:at]) + email[at:]
}
