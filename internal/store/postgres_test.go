package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/mesh-intelligence/extend/pkg/types"
)

// startPostgres runs a disposable PostgreSQL container and returns its DSN.
// The test is skipped in -short mode or when no container runtime is usable.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("extend"),
		postgres.WithUsername("extend"),
		postgres.WithPassword("extend"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresStore(t *testing.T) {
	dsn := startPostgres(t)

	for _, tt := range storeCases {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(types.Config{Backend: types.BackendPostgres, DSN: dsn})
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			truncate(t, s)
			tt.check(t, s)
		})
	}
}

func truncate(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.db.Exec("TRUNCATE entity_configs, field_configs, regenerations")
	require.NoError(t, err)
}
