// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

func TestMatcher_Strategies(t *testing.T) {
	m := NewMatcher(5 * time.Minute)

	tests := []struct {
		name     string
		entry    models.ReportEntry
		session  *models.ParticipantSession
		strategy models.MatchStrategy
	}{
		{
			name:     "participant uuid",
			entry:    models.ReportEntry{ParticipantUUID: "pu-1", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", ParticipantUUID: "pu-1", JoinTime: at(30)},
			strategy: models.MatchByParticipantID,
		},
		{
			name:     "participant id",
			entry:    models.ReportEntry{ID: "zu-1", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", ParticipantID: "zu-1", JoinTime: at(30)},
			strategy: models.MatchByParticipantID,
		},
		{
			name:     "user id",
			entry:    models.ReportEntry{UserID: "16778240", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", UserID: "16778240", JoinTime: at(30)},
			strategy: models.MatchByUserID,
		},
		{
			name:     "email ignores case",
			entry:    models.ReportEntry{Email: "Jane.Doe@Example.org", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Email: "jane.doe@example.org", JoinTime: at(30)},
			strategy: models.MatchByEmail,
		},
		{
			name:     "name ignores case and organization",
			entry:    models.ReportEntry{Name: "JANE DOE", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Jane Doe (Acme)", JoinTime: at(30)},
			strategy: models.MatchByName,
		},
		{
			name:     "name substring",
			entry:    models.ReportEntry{Name: "Jane", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Jane Doe", JoinTime: at(30)},
			strategy: models.MatchByNameSubstring,
		},
		{
			name:     "join time within five minutes",
			entry:    models.ReportEntry{Name: "iPhone", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Jane Doe", JoinTime: at(5)},
			strategy: models.MatchByJoinProximity,
		},
		{
			name:     "join time too far apart",
			entry:    models.ReportEntry{Name: "iPhone", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Jane Doe", JoinTime: at(5).Add(time.Second)},
			strategy: models.MatchNone,
		},
		{
			name:     "short names never match as substring",
			entry:    models.ReportEntry{Name: "Al", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Alice Smith", JoinTime: at(30)},
			strategy: models.MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy := m.Match(tt.entry, []*models.ParticipantSession{tt.session}, map[string]bool{})
			assert.Equal(t, tt.strategy, strategy)
			if tt.strategy == models.MatchNone {
				assert.Nil(t, got)
			} else {
				assert.Same(t, tt.session, got)
			}
		})
	}
}

func TestMatcher_EarlierStrategyWins(t *testing.T) {
	m := NewMatcher(5 * time.Minute)
	entry := models.ReportEntry{Name: "Jane", Email: "jane@example.org", JoinTime: at(0)}

	byName := &models.ParticipantSession{UID: "by-name", Name: "Jane Doe", JoinTime: at(0)}
	byEmail := &models.ParticipantSession{UID: "by-email", Name: "J. D.", Email: "JANE@example.org", JoinTime: at(20)}

	got, strategy := m.Match(entry, []*models.ParticipantSession{byName, byEmail}, map[string]bool{})
	require.NotNil(t, got)
	assert.Equal(t, "by-email", got.UID)
	assert.Equal(t, models.MatchByEmail, strategy)
}

func TestMatcher_ClaimedSessionsAreSkipped(t *testing.T) {
	m := NewMatcher(5 * time.Minute)
	first := &models.ParticipantSession{UID: "first", Email: "jane@example.org", JoinTime: at(0)}
	second := &models.ParticipantSession{UID: "second", Email: "jane@example.org", JoinTime: at(30)}
	candidates := []*models.ParticipantSession{first, second}
	claimed := map[string]bool{}

	got, _ := m.Match(models.ReportEntry{Email: "jane@example.org", JoinTime: at(31)}, candidates, claimed)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.UID, "closest join wins within a strategy")
	claimed[got.UID] = true

	got, _ = m.Match(models.ReportEntry{Email: "jane@example.org", JoinTime: at(31)}, candidates, claimed)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.UID)
	claimed[got.UID] = true

	got, strategy := m.Match(models.ReportEntry{Email: "jane@example.org", JoinTime: at(0)}, candidates, claimed)
	assert.Nil(t, got)
	assert.Equal(t, models.MatchNone, strategy)
}

func TestMatcher_ConflictingIdentifiers(t *testing.T) {
	m := NewMatcher(5 * time.Minute)

	tests := []struct {
		name     string
		entry    models.ReportEntry
		session  *models.ParticipantSession
		strategy models.MatchStrategy
	}{
		{
			name:     "join proximity with different emails",
			entry:    models.ReportEntry{Name: "Dan", Email: "dan@example.org", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Alice Smith", Email: "alice@example.org", JoinTime: at(1)},
			strategy: models.MatchNone,
		},
		{
			name:     "join proximity with different user ids",
			entry:    models.ReportEntry{Name: "iPhone", UserID: "16778240", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Alice Smith", UserID: "16778241", JoinTime: at(1)},
			strategy: models.MatchNone,
		},
		{
			name:     "join proximity when only the entry has an email",
			entry:    models.ReportEntry{Name: "iPhone", Email: "alice@example.org", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Alice Smith", JoinTime: at(1)},
			strategy: models.MatchByJoinProximity,
		},
		{
			name:     "name substring with different emails",
			entry:    models.ReportEntry{Name: "Dan", Email: "dan@example.org", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Dana Scully", Email: "dana@example.org", JoinTime: at(30)},
			strategy: models.MatchNone,
		},
		{
			name:     "exact name is not a fuzzy strategy",
			entry:    models.ReportEntry{Name: "Alice Smith", Email: "alice@personal.example", JoinTime: at(0)},
			session:  &models.ParticipantSession{UID: "s", Name: "Alice Smith", Email: "alice@example.org", JoinTime: at(30)},
			strategy: models.MatchByName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy := m.Match(tt.entry, []*models.ParticipantSession{tt.session}, map[string]bool{})
			assert.Equal(t, tt.strategy, strategy)
			if tt.strategy == models.MatchNone {
				assert.Nil(t, got)
			} else {
				assert.Same(t, tt.session, got)
			}
		})
	}
}

func TestMatcher_MatchAllAppliesStrategiesInOrder(t *testing.T) {
	m := NewMatcher(5 * time.Minute)
	alice := &models.ParticipantSession{UID: "alice", Name: "Alice Smith", JoinTime: at(1)}
	dan := models.ReportEntry{Name: "Dan Missed", JoinTime: at(0)}
	aliceEntry := models.ReportEntry{Name: "Alice Smith", JoinTime: at(1)}

	tests := []struct {
		name    string
		entries []models.ReportEntry
		dan     int
		alice   int
	}{
		{name: "unmatched entry first", entries: []models.ReportEntry{dan, aliceEntry}, dan: 0, alice: 1},
		{name: "unmatched entry last", entries: []models.ReportEntry{aliceEntry, dan}, dan: 1, alice: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claimed := map[string]bool{}
			pairings := m.MatchAll(tt.entries, []*models.ParticipantSession{alice}, claimed)
			require.Len(t, pairings, 2)

			assert.Same(t, alice, pairings[tt.alice].Session)
			assert.Equal(t, models.MatchByName, pairings[tt.alice].Strategy)
			assert.Nil(t, pairings[tt.dan].Session)
			assert.Equal(t, models.MatchNone, pairings[tt.dan].Strategy)
			assert.True(t, claimed["alice"])
		})
	}
}

func TestMatcher_ResolveIdentity(t *testing.T) {
	m := NewMatcher(5 * time.Minute)
	sessions := []*models.ParticipantSession{
		{UID: "s1", IdentityKey: "uuid:pu-1", Email: "jane@example.org", JoinTime: at(0)},
	}

	assert.Equal(t, "uuid:pu-1", m.ResolveIdentity(models.ReportEntry{Email: "JANE@example.org"}, sessions))
	assert.Equal(t, "report:new@example.org", m.ResolveIdentity(models.ReportEntry{Email: "New@example.org", JoinTime: at(0)}, sessions))
	assert.Equal(t, "report:zu-9", m.ResolveIdentity(models.ReportEntry{ID: "zu-9"}, sessions))
	assert.Equal(t, "report:jan@example.org", m.ResolveIdentity(models.ReportEntry{Name: "Jan", Email: "jan@example.org"}, []*models.ParticipantSession{
		{UID: "s2", IdentityKey: "uuid:pu-2", Name: "Jane Doe", Email: "jane@example.org"},
	}))
}
