package httpapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithUserIDRoundTrips(t *testing.T) {
	ctx := withUserID(context.Background(), "user-1")
	userID, ok := userIDFrom(ctx)
	require.True(t, ok)
	require.Equal(t, "user-1", userID)
}

func TestUserIDFromMissingContextReturnsFalse(t *testing.T) {
	_, ok := userIDFrom(context.Background())
	require.False(t, ok)
}
