package usercontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	require.False(t, ok)

	ctx := WithUserID(context.Background(), snowflake.ID(42))
	id, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, snowflake.ID(42), id)

	_, ok = UserIDFromContext(WithUserID(context.Background(), 0))
	require.False(t, ok)
}

func TestUserIDFromStringValue(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserContextKey{}, " 77 ")
	id, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, snowflake.ID(77), id)
}
