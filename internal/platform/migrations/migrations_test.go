package migrations

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	entries, err := files.ReadDir("sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var names []string
	for _, e := range entries {
		require.False(t, e.IsDir())
		require.True(t, strings.HasSuffix(e.Name(), ".sql"), "unexpected file %s", e.Name())
		names = append(names, e.Name())
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	require.Equal(t, sorted, names, "migration files must sort to their intended apply order")
}

func TestEachMigrationFollowsVersionNamingConvention(t *testing.T) {
	entries, err := files.ReadDir("sql")
	require.NoError(t, err)
	for _, e := range entries {
		parts := strings.SplitN(e.Name(), "_", 2)
		require.Len(t, parts, 2, "migration %s must be named <version>_<description>.up.sql", e.Name())
		require.True(t, strings.HasSuffix(e.Name(), ".up.sql") || strings.HasSuffix(e.Name(), ".down.sql"))
	}
}
