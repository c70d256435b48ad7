package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	require.Equal(t, ups, downs)
}

func TestSourceReadsFirstVersion(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	first, err := src.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)
}

func TestSchemaCoversRepositoryTables(t *testing.T) {
	for file, want := range map[string][]string{
		"sql/000001_bundles.up.sql":        {"shop_domain", "components", "variants", "version"},
		"sql/000002_shop_sessions.up.sql":  {"access_token", "onboarded"},
		"sql/000003_shop_analytics.up.sql": {"revenue", "orders", "currency"},
	} {
		raw, err := fs.ReadFile(files, file)
		require.NoError(t, err)
		for _, col := range want {
			require.Contains(t, string(raw), col, file)
		}
	}
}

func TestDownRejectsZeroSteps(t *testing.T) {
	require.Error(t, Down(t.Context(), "postgres://unused", 0))
}
