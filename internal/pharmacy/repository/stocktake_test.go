package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/pkg/errors"
	"github.com/careops/careops-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStockTake(t *testing.T, repo *repository.StockTakeRepository, locationID string) *repository.StockTake {
	t.Helper()
	st := &repository.StockTake{
		LocationID:    locationID,
		StockTakeDate: time.Now(),
		Type:          repository.StockTakeFull,
		ConductedBy:   uuid.New().String(),
		Reason:        "monthly count",
	}
	require.NoError(t, repo.Create(context.Background(), st))
	return st
}

func TestStockTakeRepository_Create(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	repo := repository.NewStockTakeRepository(suite.DB)

	st := seedStockTake(t, repo, loc.ID)

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, repository.StockTakeDraft, st.Status)
	assert.False(t, st.StartedAt.IsZero())

	got, err := repo.GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalVariance)
	assert.Empty(t, got.Items)
}

func TestStockTakeRepository_AddItems(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	medA := suite.SeedMedication(t, suite.Fixtures.Medication())
	medB := suite.SeedMedication(t, suite.Fixtures.Medication())

	repo := repository.NewStockTakeRepository(suite.DB)
	st := seedStockTake(t, repo, loc.ID)

	updated, err := repo.AddItems(ctx, st.ID, []*repository.StockTakeItem{
		{MedicationID: medA.ID, ExpectedQuantity: 100, ActualQuantity: 97, Variance: -3, Unit: "tablets"},
		{MedicationID: medB.ID, ExpectedQuantity: 50, ActualQuantity: 55, Variance: 5, Unit: "tablets"},
	})
	require.NoError(t, err)

	// Recording items promotes DRAFT to IN_PROGRESS
	assert.Equal(t, repository.StockTakeInProgress, updated.Status)
	// Total variance is the sum of absolute per-item variances
	assert.Equal(t, 8, updated.TotalVariance)
	assert.Len(t, updated.Items, 2)

	// Appending more items accumulates
	updated, err = repo.AddItems(ctx, st.ID, []*repository.StockTakeItem{
		{MedicationID: medA.ID, ExpectedQuantity: 20, ActualQuantity: 22, Variance: 2, Unit: "tablets"},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.TotalVariance)
	assert.Len(t, updated.Items, 3)
}

func TestStockTakeRepository_AddItems_TerminalState(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	repo := repository.NewStockTakeRepository(suite.DB)
	st := seedStockTake(t, repo, loc.ID)

	_, err := repo.Cancel(ctx, st.ID)
	require.NoError(t, err)

	_, err = repo.AddItems(ctx, st.ID, []*repository.StockTakeItem{
		{MedicationID: med.ID, ExpectedQuantity: 10, ActualQuantity: 10, Unit: "tablets"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
}

func TestStockTakeRepository_Complete(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	repo := repository.NewStockTakeRepository(suite.DB)
	st := seedStockTake(t, repo, loc.ID)

	_, err := repo.AddItems(ctx, st.ID, []*repository.StockTakeItem{
		{MedicationID: med.ID, ExpectedQuantity: 10, ActualQuantity: 9, Variance: -1, Unit: "tablets"},
	})
	require.NoError(t, err)

	completed, err := repo.Complete(ctx, st.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, repository.StockTakeCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Nil(t, completed.ReviewedBy)
	assert.Nil(t, completed.ReviewedAt)

	// Completion is terminal
	_, err = repo.Complete(ctx, st.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
}

func TestStockTakeRepository_Complete_FromDraft(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	repo := repository.NewStockTakeRepository(suite.DB)
	st := seedStockTake(t, repo, loc.ID)

	// A DRAFT session may complete without items recorded
	completed, err := repo.Complete(ctx, st.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, repository.StockTakeCompleted, completed.Status)
	assert.Equal(t, 0, completed.TotalVariance)
	assert.Empty(t, completed.Items)
}

func TestStockTakeRepository_Complete_WithReviewer(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	repo := repository.NewStockTakeRepository(suite.DB)
	st := seedStockTake(t, repo, loc.ID)

	_, err := repo.AddItems(ctx, st.ID, []*repository.StockTakeItem{
		{MedicationID: med.ID, ExpectedQuantity: 10, ActualQuantity: 10, Unit: "tablets"},
	})
	require.NoError(t, err)

	reviewer := uuid.New().String()
	completed, err := repo.Complete(ctx, st.ID, &reviewer)
	require.NoError(t, err)

	require.NotNil(t, completed.ReviewedBy)
	assert.Equal(t, reviewer, *completed.ReviewedBy)
	assert.NotNil(t, completed.ReviewedAt)
}

func TestStockTakeRepository_Review(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	repo := repository.NewStockTakeRepository(suite.DB)
	st := seedStockTake(t, repo, loc.ID)

	_, err := repo.AddItems(ctx, st.ID, []*repository.StockTakeItem{
		{MedicationID: med.ID, ExpectedQuantity: 10, ActualQuantity: 10, Unit: "tablets"},
	})
	require.NoError(t, err)

	// Review only applies to completed sessions
	reviewer := uuid.New().String()
	_, err = repo.Review(ctx, st.ID, reviewer, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	_, err = repo.Complete(ctx, st.ID, nil)
	require.NoError(t, err)

	notes := "recount confirmed, shelf labels fixed"
	reviewed, err := repo.Review(ctx, st.ID, reviewer, &notes)
	require.NoError(t, err)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, reviewer, *reviewed.ReviewedBy)
	require.NotNil(t, reviewed.Notes)
	assert.Equal(t, notes, *reviewed.Notes)

	// A second review is rejected
	_, err = repo.Review(ctx, st.ID, uuid.New().String(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestStockTakeRepository_Stats(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	repo := repository.NewStockTakeRepository(suite.DB)

	completed := seedStockTake(t, repo, loc.ID)
	_, err := repo.AddItems(ctx, completed.ID, []*repository.StockTakeItem{
		{MedicationID: med.ID, ExpectedQuantity: 10, ActualQuantity: 6, Variance: -4, Unit: "tablets"},
	})
	require.NoError(t, err)
	_, err = repo.Complete(ctx, completed.ID, nil)
	require.NoError(t, err)

	seedStockTake(t, repo, loc.ID) // stays DRAFT

	cancelled := seedStockTake(t, repo, loc.ID)
	_, err = repo.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, loc.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(1), stats.DraftCount)
	assert.Equal(t, int64(1), stats.CompletedCount)
	assert.Equal(t, int64(1), stats.CancelledCount)
	// Only completed sessions contribute variance
	assert.Equal(t, int64(4), stats.TotalVariance)
}

func TestStockTakeRepository_VarianceReport(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t)

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	medA := suite.SeedMedication(t, suite.Fixtures.Medication(testutil.WithMedicationName("Atorvastatin")))
	medB := suite.SeedMedication(t, suite.Fixtures.Medication(testutil.WithMedicationName("Bisoprolol")))

	repo := repository.NewStockTakeRepository(suite.DB)

	first := seedStockTake(t, repo, loc.ID)
	_, err := repo.AddItems(ctx, first.ID, []*repository.StockTakeItem{
		{MedicationID: medA.ID, ExpectedQuantity: 100, ActualQuantity: 95, Variance: -5, Unit: "tablets"},
		{MedicationID: medB.ID, ExpectedQuantity: 40, ActualQuantity: 41, Variance: 1, Unit: "tablets"},
	})
	require.NoError(t, err)
	_, err = repo.Complete(ctx, first.ID, nil)
	require.NoError(t, err)

	second := seedStockTake(t, repo, loc.ID)
	_, err = repo.AddItems(ctx, second.ID, []*repository.StockTakeItem{
		{MedicationID: medA.ID, ExpectedQuantity: 80, ActualQuantity: 83, Variance: 3, Unit: "tablets"},
	})
	require.NoError(t, err)
	_, err = repo.Complete(ctx, second.ID, nil)
	require.NoError(t, err)

	// An open session is excluded from the report
	open := seedStockTake(t, repo, loc.ID)
	_, err = repo.AddItems(ctx, open.ID, []*repository.StockTakeItem{
		{MedicationID: medA.ID, ExpectedQuantity: 10, ActualQuantity: 0, Variance: -10, Unit: "tablets"},
	})
	require.NoError(t, err)

	report, err := repo.VarianceReport(ctx, loc.ID, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)

	require.Len(t, report, 2)
	// Largest absolute variance first
	assert.Equal(t, medA.ID, report[0].MedicationID)
	assert.Equal(t, int64(2), report[0].TimesCounted)
	assert.Equal(t, int64(8), report[0].TotalVariance)
	assert.Equal(t, int64(-2), report[0].NetVariance)

	assert.Equal(t, medB.ID, report[1].MedicationID)
	assert.Equal(t, int64(1), report[1].TotalVariance)
}
