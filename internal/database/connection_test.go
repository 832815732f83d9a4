package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/skin-lesion-advisor/internal/domain"
	"github.com/skin-lesion-advisor/internal/results"
)

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(domain.DatabaseConfig{
		Host:            "db",
		Port:            5433,
		Database:        "advisor",
		Username:        "svc",
		Password:        "pw",
		SSLMode:         "require",
		MaxOpenConns:    8,
		MaxIdleConns:    20,
		ConnMaxLifetime: time.Hour,
	})

	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, int32(8), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLife)
	assert.Equal(t, "require", cfg.SSLMode)

	assert.Equal(t, int32(4), ConfigFrom(domain.DatabaseConfig{}).MaxConns)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_prediction_results.up.sql")
	assert.Contains(t, names, "000001_create_prediction_results.down.sql")
	assert.Equal(t, 0, len(names)%2, "every migration needs an up and a down file")
}

func TestDatabaseConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    "testpass",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewConnection(ctx, config, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))

	version, _, err := db.SchemaVersion(ctx)
	assert.Error(t, err, "schema_migrations does not exist before migrating")
	assert.Zero(t, version)

	databaseURL := fmt.Sprintf("postgres://testuser:testpass@%s:%d/testdb?sslmode=disable", host, port.Int())
	runner, err := NewMigrationRunner(databaseURL, "", logger)
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Up(ctx), "second run is a no-op")

	version, dirty, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	store, err := results.NewPostgresStoreFromURL(databaseURL, domain.DatabaseConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	defer store.Close()

	record := &results.Record{Prediction: "Measles", Confidence: 95, UserID: "u1"}
	require.NoError(t, store.Save(ctx, record))
	assert.NotZero(t, record.ID)

	page, total, err := store.List(ctx, results.Filter{Prediction: "Measles"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, "u1", page[0].UserID)

	stats := db.PoolStats()
	assert.NotZero(t, stats.Total)
	assert.Equal(t, config.MaxConns, stats.Max)
}
