package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Options{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "cliqshop",
		Audience:   "cliqshop-client",
		TTL:        ttl,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t, time.Hour)

	signed, issued, err := m.Issue(IssueInput{Subject: "42", Username: "alice", Email: "alice@example.com", Role: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, issued.TokenType)

	claims, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestParseRejectsForeignAudience(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other, err := NewManager(Options{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "cliqshop",
		Audience:   "someone-else",
	})
	require.NoError(t, err)

	signed, _, err := other.Issue(IssueInput{Subject: "1"})
	require.NoError(t, err)

	_, err = m.Parse(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpired(t *testing.T) {
	m := newTestManager(t, time.Hour)
	signed, _, err := m.Issue(IssueInput{Subject: "1", TTL: time.Nanosecond})
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	_, err = m.Parse(signed)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewManagerRequiresKey(t *testing.T) {
	_, err := NewManager(Options{})
	require.Error(t, err)
}
