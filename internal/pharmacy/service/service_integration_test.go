package service_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/careops/careops-backend/internal/pharmacy/events"
	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/internal/pharmacy/service"
	"github.com/careops/careops-backend/pkg/actor"
	"github.com/careops/careops-backend/pkg/errors"
	"github.com/careops/careops-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	code := m.Run()

	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

type services struct {
	ledger     *service.LedgerService
	transfers  *service.TransferService
	stockTakes *service.StockTakeService
	alerts     *service.AlertService
	lines      *repository.LineRepository
}

func newServices() *services {
	lineRepo := repository.NewLineRepository(suite.DB)
	transferRepo := repository.NewTransferRepository(suite.DB)
	stockTakeRepo := repository.NewStockTakeRepository(suite.DB)
	alertRepo := repository.NewAlertRepository(suite.DB)
	medicationRepo := repository.NewMedicationRepository(suite.DB)
	locationRepo := repository.NewLocationRepository(suite.DB)

	// No broker in tests, event emission becomes a no-op
	publisher := events.NewPublisher(nil, suite.Logger)

	return &services{
		ledger:     service.NewLedgerService(lineRepo, medicationRepo, locationRepo, publisher, suite.Logger),
		transfers:  service.NewTransferService(suite.DB, transferRepo, lineRepo, locationRepo, publisher, suite.Logger),
		stockTakes: service.NewStockTakeService(stockTakeRepo, locationRepo, publisher, suite.Logger),
		alerts:     service.NewAlertService(alertRepo, suite.Logger),
		lines:      lineRepo,
	}
}

func asActor(id string) context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{ID: id, Name: "Test User"})
}

func TestTransferService_FullLifecycle(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	from := suite.SeedLocation(t, suite.Fixtures.Location())
	to := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())
	suite.SeedLine(t, suite.Fixtures.Line(from.ID, med.ID, testutil.WithQuantity(100)))

	requester := uuid.New().String()
	approver := uuid.New().String()
	receiver := uuid.New().String()

	transfer, err := svc.transfers.Request(asActor(requester), service.RequestTransferRequest{
		FromLocationID: from.ID,
		ToLocationID:   to.ID,
		MedicationID:   med.ID,
		Quantity:       30,
		Unit:           "tablets",
		TransferType:   repository.TransferTypeInterLocation,
		Reason:         "restock branch",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.TransferPending, transfer.Status)
	assert.Regexp(t, `^TRF-\d+-[A-Z0-9]{6}$`, transfer.TrackingNumber)

	// Requesting does not move stock
	line, err := svc.lines.Get(context.Background(), from.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 100, line.Quantity)

	transfer, err = svc.transfers.Approve(asActor(approver), transfer.ID, service.ApproveTransferRequest{})
	require.NoError(t, err)
	assert.Equal(t, repository.TransferInTransit, transfer.Status)

	transfer, err = svc.transfers.Complete(asActor(receiver), transfer.ID, service.CompleteTransferRequest{})
	require.NoError(t, err)
	assert.Equal(t, repository.TransferCompleted, transfer.Status)

	// Stock moved: debit at the source, credit at the destination
	source, err := svc.lines.Get(context.Background(), from.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 70, source.Quantity)

	dest, err := svc.lines.Get(context.Background(), to.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 30, dest.Quantity)

	// The created destination line inherits unit and price from the source
	assert.Equal(t, source.Unit, dest.Unit)
	assert.Equal(t, 250, dest.UnitPriceCents)
}

func TestTransferService_Complete_ConcurrentTransfersOverdraw(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	from := suite.SeedLocation(t, suite.Fixtures.Location())
	to := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())
	suite.SeedLine(t, suite.Fixtures.Line(from.ID, med.ID, testutil.WithQuantity(100)))

	caller := asActor(uuid.New().String())

	// Two 60-unit transfers out of a 100-unit line, both in transit
	var transfers [2]*repository.Transfer
	for i := range transfers {
		tr, err := svc.transfers.Request(caller, service.RequestTransferRequest{
			FromLocationID: from.ID,
			ToLocationID:   to.ID,
			MedicationID:   med.ID,
			Quantity:       60,
			Unit:           "tablets",
			TransferType:   repository.TransferTypeInterLocation,
			Reason:         "restock",
		})
		require.NoError(t, err)
		_, err = svc.transfers.Approve(caller, tr.ID, service.ApproveTransferRequest{})
		require.NoError(t, err)
		transfers[i] = tr
	}

	// Completed concurrently, only one debit can pass the guard
	errs := make(chan error, len(transfers))
	for _, tr := range transfers {
		go func(id string) {
			_, err := svc.transfers.Complete(caller, id, service.CompleteTransferRequest{})
			errs <- err
		}(tr.ID)
	}

	var succeeded, insufficient int
	for range transfers {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, errors.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	source, err := svc.lines.Get(context.Background(), from.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 40, source.Quantity)

	dest, err := svc.lines.Get(context.Background(), to.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 60, dest.Quantity)
}

func TestTransferService_Complete_Idempotent(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	from := suite.SeedLocation(t, suite.Fixtures.Location())
	to := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())
	suite.SeedLine(t, suite.Fixtures.Line(from.ID, med.ID, testutil.WithQuantity(50)))

	caller := asActor(uuid.New().String())

	transfer, err := svc.transfers.Request(caller, service.RequestTransferRequest{
		FromLocationID: from.ID,
		ToLocationID:   to.ID,
		MedicationID:   med.ID,
		Quantity:       20,
		Unit:           "tablets",
		TransferType:   repository.TransferTypeInterLocation,
		Reason:         "restock",
	})
	require.NoError(t, err)

	_, err = svc.transfers.Approve(caller, transfer.ID, service.ApproveTransferRequest{})
	require.NoError(t, err)

	first, err := svc.transfers.Complete(caller, transfer.ID, service.CompleteTransferRequest{})
	require.NoError(t, err)

	// Re-completing returns the stored record and moves nothing
	second, err := svc.transfers.Complete(caller, transfer.ID, service.CompleteTransferRequest{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, repository.TransferCompleted, second.Status)

	source, err := svc.lines.Get(context.Background(), from.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 30, source.Quantity)

	dest, err := svc.lines.Get(context.Background(), to.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 20, dest.Quantity)
}

func TestTransferService_Complete_InsufficientStockRollsBack(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	from := suite.SeedLocation(t, suite.Fixtures.Location())
	to := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())
	suite.SeedLine(t, suite.Fixtures.Line(from.ID, med.ID, testutil.WithQuantity(25)))

	caller := asActor(uuid.New().String())

	transfer, err := svc.transfers.Request(caller, service.RequestTransferRequest{
		FromLocationID: from.ID,
		ToLocationID:   to.ID,
		MedicationID:   med.ID,
		Quantity:       25,
		Unit:           "tablets",
		TransferType:   repository.TransferTypeInterLocation,
		Reason:         "restock",
	})
	require.NoError(t, err)
	_, err = svc.transfers.Approve(caller, transfer.ID, service.ApproveTransferRequest{})
	require.NoError(t, err)

	// Stock is drained between approval and completion
	_, err = svc.ledger.AdjustStock(caller, service.AdjustStockRequest{
		LocationID:   from.ID,
		MedicationID: med.ID,
		Delta:        -10,
		Unit:         "tablets",
		Reason:       "dispensed",
	})
	require.NoError(t, err)

	_, err = svc.transfers.Complete(caller, transfer.ID, service.CompleteTransferRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// The whole completion rolled back: status and both lines untouched
	got, err := svc.transfers.Get(context.Background(), transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TransferInTransit, got.Status)

	source, err := svc.lines.Get(context.Background(), from.ID, med.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 15, source.Quantity)

	_, err = svc.lines.Get(context.Background(), to.ID, med.ID, "")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestTransferService_Request_Validations(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	from := suite.SeedLocation(t, suite.Fixtures.Location())
	to := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())
	suite.SeedLine(t, suite.Fixtures.Line(from.ID, med.ID, testutil.WithQuantity(10)))

	caller := asActor(uuid.New().String())

	// Same source and destination
	_, err := svc.transfers.Request(caller, service.RequestTransferRequest{
		FromLocationID: from.ID,
		ToLocationID:   from.ID,
		MedicationID:   med.ID,
		Quantity:       5,
		Unit:           "tablets",
		TransferType:   repository.TransferTypeInterLocation,
		Reason:         "restock",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// More than the source holds
	_, err = svc.transfers.Request(caller, service.RequestTransferRequest{
		FromLocationID: from.ID,
		ToLocationID:   to.ID,
		MedicationID:   med.ID,
		Quantity:       11,
		Unit:           "tablets",
		TransferType:   repository.TransferTypeInterLocation,
		Reason:         "restock",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// Unknown source location
	_, err = svc.transfers.Request(caller, service.RequestTransferRequest{
		FromLocationID: uuid.New().String(),
		ToLocationID:   to.ID,
		MedicationID:   med.ID,
		Quantity:       5,
		Unit:           "tablets",
		TransferType:   repository.TransferTypeInterLocation,
		Reason:         "restock",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStockTakeService_MakerChecker(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	conductor := uuid.New().String()
	checker := uuid.New().String()

	st, err := svc.stockTakes.Create(asActor(conductor), service.CreateStockTakeRequest{
		LocationID:    loc.ID,
		StockTakeDate: time.Now(),
		Type:          repository.StockTakeFull,
		Reason:        "monthly count",
	})
	require.NoError(t, err)
	assert.Equal(t, conductor, st.ConductedBy)

	_, err = svc.stockTakes.AddItems(asActor(conductor), st.ID, service.AddStockTakeItemsRequest{
		Items: []service.StockTakeItemInput{
			{MedicationID: med.ID, ExpectedQuantity: 100, ActualQuantity: 92, Unit: "tablets"},
		},
	})
	require.NoError(t, err)

	// A different actor completing the count is recorded as its reviewer
	completed, err := svc.stockTakes.UpdateStatus(asActor(checker), st.ID, service.UpdateStockTakeStatusRequest{
		Status: repository.StockTakeCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, completed.TotalVariance)
	require.NotNil(t, completed.ReviewedBy)
	assert.Equal(t, checker, *completed.ReviewedBy)
	assert.NotNil(t, completed.ReviewedAt)
}

func TestStockTakeService_SelfCompleteThenReview(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	conductor := uuid.New().String()
	reviewer := uuid.New().String()

	st, err := svc.stockTakes.Create(asActor(conductor), service.CreateStockTakeRequest{
		LocationID:    loc.ID,
		StockTakeDate: time.Now(),
		Type:          repository.StockTakeSpotCheck,
		Reason:        "spot check",
	})
	require.NoError(t, err)

	_, err = svc.stockTakes.AddItems(asActor(conductor), st.ID, service.AddStockTakeItemsRequest{
		Items: []service.StockTakeItemInput{
			{MedicationID: med.ID, ExpectedQuantity: 10, ActualQuantity: 10, Unit: "tablets"},
		},
	})
	require.NoError(t, err)

	// Conductor completing their own count leaves the review open
	completed, err := svc.stockTakes.UpdateStatus(asActor(conductor), st.ID, service.UpdateStockTakeStatusRequest{
		Status: repository.StockTakeCompleted,
	})
	require.NoError(t, err)
	assert.Nil(t, completed.ReviewedBy)

	// The conductor cannot review their own count
	_, err = svc.stockTakes.Review(asActor(conductor), st.ID, service.ReviewStockTakeRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	notes := "count verified against delivery notes"
	reviewed, err := svc.stockTakes.Review(asActor(reviewer), st.ID, service.ReviewStockTakeRequest{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, reviewer, *reviewed.ReviewedBy)
	require.NotNil(t, reviewed.Notes)
	assert.Equal(t, notes, *reviewed.Notes)
}

func TestAlertService_LowStock(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	medA := suite.SeedMedication(t, suite.Fixtures.Medication())
	medB := suite.SeedMedication(t, suite.Fixtures.Medication())
	medC := suite.SeedMedication(t, suite.Fixtures.Medication())

	suite.SeedLine(t, suite.Fixtures.Line(loc.ID, medA.ID, testutil.WithQuantity(5)))
	suite.SeedLine(t, suite.Fixtures.Line(loc.ID, medB.ID, testutil.WithQuantity(15)))
	suite.SeedLine(t, suite.Fixtures.Line(loc.ID, medC.ID, testutil.WithQuantity(8)))

	lines, err := svc.alerts.LowStock(context.Background(), loc.ID, 10)
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, 8, lines[1].Quantity)
}

func TestAlertService_Summary(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	medLow := suite.SeedMedication(t, suite.Fixtures.Medication())
	medExpiring := suite.SeedMedication(t, suite.Fixtures.Medication())
	medExpired := suite.SeedMedication(t, suite.Fixtures.Medication())
	medFine := suite.SeedMedication(t, suite.Fixtures.Medication())

	suite.SeedLine(t, suite.Fixtures.Line(loc.ID, medLow.ID, testutil.WithQuantity(3)))
	suite.SeedLine(t, suite.Fixtures.Line(loc.ID, medExpiring.ID,
		testutil.WithBatch("LOT-1", time.Now().AddDate(0, 0, 10))))
	suite.SeedLine(t, suite.Fixtures.Line(loc.ID, medExpired.ID,
		testutil.WithBatch("LOT-2", time.Now().AddDate(0, 0, -1))))
	suite.SeedLine(t, suite.Fixtures.Line(loc.ID, medFine.ID,
		testutil.WithBatch("LOT-3", time.Now().AddDate(2, 0, 0))))

	summary, err := svc.alerts.Summary(context.Background(), loc.ID)
	require.NoError(t, err)

	require.Len(t, summary.LowStock, 1)
	assert.Equal(t, medLow.ID, summary.LowStock[0].MedicationID)

	// The expired line also falls inside the expiring window
	assert.Len(t, summary.Expiring, 2)

	require.Len(t, summary.Expired, 1)
	assert.Equal(t, medExpired.ID, summary.Expired[0].MedicationID)
}

func TestLedgerService_AdjustStock(t *testing.T) {
	suite.Reset(t)
	svc := newServices()

	loc := suite.SeedLocation(t, suite.Fixtures.Location())
	med := suite.SeedMedication(t, suite.Fixtures.Medication())

	caller := asActor(uuid.New().String())

	line, err := svc.ledger.AdjustStock(caller, service.AdjustStockRequest{
		LocationID:   loc.ID,
		MedicationID: med.ID,
		Delta:        40,
		Unit:         "tablets",
		Reason:       "delivery received",
	})
	require.NoError(t, err)
	assert.Equal(t, 40, line.Quantity)

	// Unknown medication is rejected before touching the ledger
	_, err = svc.ledger.AdjustStock(caller, service.AdjustStockRequest{
		LocationID:   loc.ID,
		MedicationID: uuid.New().String(),
		Delta:        10,
		Unit:         "tablets",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
