// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// minSubstringNameLength keeps short names such as "Al" from matching
// every display name that happens to contain them.
const minSubstringNameLength = 3

type matchRule struct {
	strategy models.MatchStrategy
	matches  func(entry models.ReportEntry, s *models.ParticipantSession) bool
	// fuzzy rules never pair records that carry different emails or user IDs.
	fuzzy bool
}

// Pairing is the outcome of matching one report entry. Session is nil when
// nothing matched.
type Pairing struct {
	Session  *models.ParticipantSession
	Strategy models.MatchStrategy
}

// Matcher pairs authoritative report entries with event-derived sessions.
type Matcher struct {
	rules []matchRule
}

// NewMatcher creates a Matcher whose last strategy accepts join times within
// proximity of each other.
func NewMatcher(proximity time.Duration) *Matcher {
	if proximity <= 0 {
		proximity = DefaultJoinProximity
	}
	return &Matcher{
		rules: []matchRule{
			{strategy: models.MatchByParticipantID, matches: matchParticipantID},
			{strategy: models.MatchByUserID, matches: matchUserID},
			{strategy: models.MatchByEmail, matches: matchEmail},
			{strategy: models.MatchByName, matches: matchName},
			{strategy: models.MatchByNameSubstring, matches: matchNameSubstring, fuzzy: true},
			{strategy: models.MatchByJoinProximity, fuzzy: true, matches: func(entry models.ReportEntry, s *models.ParticipantSession) bool {
				return absDuration(entry.JoinTime.Sub(s.JoinTime)) <= proximity
			}},
		},
	}
}

// Match returns the session entry belongs to and the strategy that found it.
// Strategies are tried in order and the first one with an unclaimed
// candidate wins; within a strategy the closest join time wins. claimed holds
// the UIDs of sessions already paired during this run and gains the match.
func (m *Matcher) Match(entry models.ReportEntry, candidates []*models.ParticipantSession, claimed map[string]bool) (*models.ParticipantSession, models.MatchStrategy) {
	p := m.MatchAll([]models.ReportEntry{entry}, candidates, claimed)[0]
	return p.Session, p.Strategy
}

// MatchAll pairs every entry with at most one session. Each strategy is
// applied to all still unmatched entries before the next one is tried.
// Pairings are returned in entry order and claimed sessions are recorded in
// claimed.
func (m *Matcher) MatchAll(entries []models.ReportEntry, candidates []*models.ParticipantSession, claimed map[string]bool) []Pairing {
	pairings := make([]Pairing, len(entries))
	for _, rule := range m.rules {
		for i, entry := range entries {
			if pairings[i].Session != nil {
				continue
			}
			if best := rule.best(entry, candidates, claimed); best != nil {
				claimed[best.UID] = true
				pairings[i] = Pairing{Session: best, Strategy: rule.strategy}
			}
		}
	}
	return pairings
}

func (r matchRule) accepts(entry models.ReportEntry, s *models.ParticipantSession) bool {
	if r.fuzzy && conflictingIdentity(entry, s) {
		return false
	}
	return r.matches(entry, s)
}

// best returns the unclaimed candidate accepted by r with the closest join.
func (r matchRule) best(entry models.ReportEntry, candidates []*models.ParticipantSession, claimed map[string]bool) *models.ParticipantSession {
	var best *models.ParticipantSession
	for _, s := range candidates {
		if claimed[s.UID] || !r.accepts(entry, s) {
			continue
		}
		if best == nil || absDuration(entry.JoinTime.Sub(s.JoinTime)) < absDuration(entry.JoinTime.Sub(best.JoinTime)) {
			best = s
		}
	}
	return best
}

// ResolveIdentity returns the identity key a new session for entry should
// carry. An entry for a person already known through another session joins
// that identity, so reconnections stay together. Join proximity is not used
// here because it says nothing about who the person is.
func (m *Matcher) ResolveIdentity(entry models.ReportEntry, sessions []*models.ParticipantSession) string {
	for _, rule := range m.rules {
		if rule.strategy == models.MatchByJoinProximity {
			continue
		}
		for _, s := range sessions {
			if rule.accepts(entry, s) {
				return s.IdentityKey
			}
		}
	}
	return models.ReportIdentityKey(entry.Email, entry.UserID, entry.ID, entry.Name)
}

func matchParticipantID(entry models.ReportEntry, s *models.ParticipantSession) bool {
	return equalNonEmpty(entry.ParticipantUUID, s.ParticipantUUID) ||
		equalNonEmpty(entry.ID, s.ParticipantID)
}

func matchUserID(entry models.ReportEntry, s *models.ParticipantSession) bool {
	return equalNonEmpty(entry.UserID, s.UserID) ||
		equalNonEmpty(entry.ParticipantUserID, s.ParticipantUserID)
}

func matchEmail(entry models.ReportEntry, s *models.ParticipantSession) bool {
	return equalNonEmpty(models.NormalizeEmail(entry.Email), models.NormalizeEmail(s.Email))
}

func matchName(entry models.ReportEntry, s *models.ParticipantSession) bool {
	return equalNonEmpty(models.NormalizeName(entry.Name), models.NormalizeName(s.Name))
}

func matchNameSubstring(entry models.ReportEntry, s *models.ParticipantSession) bool {
	a, b := models.NormalizeName(entry.Name), models.NormalizeName(s.Name)
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) >= minSubstringNameLength && strings.Contains(b, a)
}

// conflictingIdentity reports whether entry and s both carry an email or a
// user ID and the values differ.
func conflictingIdentity(entry models.ReportEntry, s *models.ParticipantSession) bool {
	return differNonEmpty(models.NormalizeEmail(entry.Email), models.NormalizeEmail(s.Email)) ||
		differNonEmpty(entry.UserID, s.UserID) ||
		differNonEmpty(entry.ParticipantUserID, s.ParticipantUserID)
}

func differNonEmpty(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && a != b
}

func equalNonEmpty(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && a == b
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
