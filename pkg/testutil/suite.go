package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/careops/careops-backend/pkg/database"
	"github.com/careops/careops-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure; the container
// and schema are created once per test binary.
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        database.FromSqlx(db, log),
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}

		globalDB, containerErr = globalContainer.Connect()
		if containerErr != nil {
			return
		}

		_, containerErr = globalDB.ExecContext(ctx, pharmacySchema)
		if containerErr != nil {
			containerErr = fmt.Errorf("failed to apply schema: %w", containerErr)
		}
	})

	return globalContainer, globalDB, containerErr
}

// Reset truncates all tables so each test starts from an empty database.
func (s *IntegrationSuite) Reset(t *testing.T) {
	t.Helper()
	if _, err := s.RawDB.Exec(truncateAll); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}
}

// Cleanup closes suite resources (not the shared container).
func (s *IntegrationSuite) Cleanup(ctx context.Context) {
	// The shared connection and container are released by TerminateContainer.
}

// TerminateContainer tears down the shared container. Call it once, from
// TestMain, after all tests have run.
func TerminateContainer(ctx context.Context) {
	if globalDB != nil {
		globalDB.Close()
	}
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
