package token

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, err := New("secret", time.Hour, clk)
	require.NoError(t, err)

	signed, expiresAt, err := m.Issue(snowflake.ID(99), "owner@example.com")
	require.NoError(t, err)
	require.Equal(t, clk.Now().Add(time.Hour), expiresAt)

	userID, claims, err := m.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, snowflake.ID(99), userID)
	require.Equal(t, "owner@example.com", claims.Email)
	require.NotEmpty(t, claims.ID)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, err := New("secret", time.Hour, clk)
	require.NoError(t, err)

	signed, _, err := m.Issue(snowflake.ID(1), "a@example.com")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, _, err = m.Parse(signed)
	require.ErrorIs(t, err, ErrExpiredToken)

	other, err := New("other-secret", time.Hour, clk)
	require.NoError(t, err)
	foreign, _, err := other.Issue(snowflake.ID(1), "a@example.com")
	require.NoError(t, err)
	_, _, err = m.Parse(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = m.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New("  ", time.Hour, nil)
	require.ErrorIs(t, err, ErrMissingSecret)
}
