package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/payouts"
	"github.com/taskhive/taskhive-backend/internal/tasks"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	"github.com/taskhive/taskhive-backend/pkg/outbox"
)

type gormTx struct {
	db *gorm.DB
}

func (r gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupApplierTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  budget TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'EUR',
  created_by TEXT NOT NULL,
  assigned_to TEXT,
  payment_status TEXT NOT NULL DEFAULT 'none',
  payment_provider TEXT,
  payment_intent_ref TEXT,
  payout_id TEXT,
  payout_status TEXT NOT NULL DEFAULT 'none',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS payout_records (
  id TEXT PRIMARY KEY,
  task_id TEXT,
  helper_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'EUR',
  status TEXT NOT NULL DEFAULT 'pending',
  provider TEXT NOT NULL,
  provider_payout_ref TEXT NOT NULL DEFAULT '',
  batch_ref TEXT,
  idempotency_key TEXT,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newApplier(t *testing.T, db *gorm.DB) *Applier {
	t.Helper()
	applier, err := NewApplier(ApplierParams{
		Tasks:   tasks.NewRepository(db),
		Records: payouts.NewRepository(db),
		Outbox:  outbox.NewService(outbox.NewRepository(db), nil),
		Tx:      gormTx{db: db},
	})
	require.NoError(t, err)
	return applier
}

func seedPendingTask(t *testing.T, db *gorm.DB, intentRef string) *models.Task {
	t.Helper()
	task := &models.Task{
		ID:               uuid.New(),
		Title:            "mount shelves",
		Budget:           decimal.RequireFromString("49.99"),
		Currency:         "EUR",
		CreatedBy:        uuid.New(),
		PaymentStatus:    enums.PaymentStatusPending,
		PaymentIntentRef: &intentRef,
		PayoutStatus:     enums.PayoutStatusNone,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func seedPayoutRecord(t *testing.T, db *gorm.DB, taskID *uuid.UUID, providerRef string) *models.PayoutRecord {
	t.Helper()
	record := &models.PayoutRecord{
		ID:                uuid.New(),
		TaskID:            taskID,
		HelperID:          uuid.New(),
		Amount:            decimal.RequireFromString("48.00"),
		Currency:          "EUR",
		Status:            enums.PayoutStatusProcessing,
		Provider:          enums.ProviderPayPal,
		ProviderPayoutRef: providerRef,
	}
	require.NoError(t, db.Create(record).Error)
	return record
}

func countOutboxRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	return count
}

func TestApplyChargeSucceededMarksTaskPaid(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	task := seedPendingTask(t, db, "int_abc")

	result, err := applier.Apply(context.Background(), Event{
		Category:         enums.EventChargeSucceeded,
		Provider:         enums.ProviderAirwallex,
		EventRef:         "evt_1",
		PaymentIntentRef: "int_abc",
	})
	require.NoError(t, err)

	assert.True(t, result.Applied)
	require.NotNil(t, result.TaskID)
	assert.Equal(t, task.ID, *result.TaskID)

	var got models.Task
	require.NoError(t, db.First(&got, "id = ?", task.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, got.PaymentStatus)
	assert.EqualValues(t, 1, countOutboxRows(t, db))
}

func TestApplyChargeSucceededTwiceIsNoOp(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	seedPendingTask(t, db, "int_abc")

	event := Event{
		Category:         enums.EventChargeSucceeded,
		Provider:         enums.ProviderAirwallex,
		EventRef:         "evt_1",
		PaymentIntentRef: "int_abc",
	}

	first, err := applier.Apply(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := applier.Apply(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, second.Applied, "duplicate delivery must not re-apply")
	assert.EqualValues(t, 1, countOutboxRows(t, db), "replay must not queue a second event")
}

func TestApplyChargeFailedAllowsRetry(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	task := seedPendingTask(t, db, "int_fail")

	result, err := applier.Apply(context.Background(), Event{
		Category:         enums.EventChargeFailed,
		Provider:         enums.ProviderAirwallex,
		PaymentIntentRef: "int_fail",
		FailureReason:    "card declined",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	var got models.Task
	require.NoError(t, db.First(&got, "id = ?", task.ID).Error)
	assert.Equal(t, enums.PaymentStatusFailed, got.PaymentStatus)
}

func TestApplyChargeUnknownReferenceIsAcked(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)

	result, err := applier.Apply(context.Background(), Event{
		Category:         enums.EventChargeSucceeded,
		Provider:         enums.ProviderAirwallex,
		PaymentIntentRef: "int_unknown",
	})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.EqualValues(t, 0, countOutboxRows(t, db))
}

func TestApplyChargeLocatesTaskByTaskID(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	task := seedPendingTask(t, db, "int_meta")

	result, err := applier.Apply(context.Background(), Event{
		Category: enums.EventChargeSucceeded,
		Provider: enums.ProviderStripe,
		TaskID:   &task.ID,
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
}

func TestApplyChargeBackfillsPaymentRef(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)

	// Intent-based checkout leaves the task row untouched; the webhook is
	// the first writer of the provider reference.
	task := &models.Task{
		ID:            uuid.New(),
		Title:         "assemble wardrobe",
		Budget:        decimal.RequireFromString("49.99"),
		Currency:      "EUR",
		CreatedBy:     uuid.New(),
		PaymentStatus: enums.PaymentStatusNone,
		PayoutStatus:  enums.PayoutStatusNone,
	}
	require.NoError(t, db.Create(task).Error)

	result, err := applier.Apply(context.Background(), Event{
		Category:         enums.EventChargeSucceeded,
		Provider:         enums.ProviderAirwallex,
		EventRef:         "evt_9",
		TaskID:           &task.ID,
		PaymentIntentRef: "int_backfill",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	var got models.Task
	require.NoError(t, db.First(&got, "id = ?", task.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, got.PaymentStatus)
	require.NotNil(t, got.PaymentIntentRef)
	assert.Equal(t, "int_backfill", *got.PaymentIntentRef)
	require.NotNil(t, got.PaymentProvider)
	assert.Equal(t, enums.ProviderAirwallex, *got.PaymentProvider)
}

func TestApplyChargeKeepsExistingPaymentRef(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	task := seedPendingTask(t, db, "int_original")

	result, err := applier.Apply(context.Background(), Event{
		Category:         enums.EventChargeSucceeded,
		Provider:         enums.ProviderAirwallex,
		TaskID:           &task.ID,
		PaymentIntentRef: "int_other",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	var got models.Task
	require.NoError(t, db.First(&got, "id = ?", task.ID).Error)
	require.NotNil(t, got.PaymentIntentRef)
	assert.Equal(t, "int_original", *got.PaymentIntentRef)
}

func TestApplyPayoutSucceededUpdatesRecordAndTask(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	task := seedPendingTask(t, db, "int_p")
	require.NoError(t, db.Model(&models.Task{}).Where("id = ?", task.ID).
		Updates(map[string]any{"payment_status": enums.PaymentStatusPaid, "payout_status": enums.PayoutStatusProcessing}).Error)
	record := seedPayoutRecord(t, db, &task.ID, "BATCH-7")

	result, err := applier.Apply(context.Background(), Event{
		Category:  enums.EventPayoutSucceeded,
		Provider:  enums.ProviderPayPal,
		PayoutRef: "BATCH-7",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	var gotRecord models.PayoutRecord
	require.NoError(t, db.First(&gotRecord, "id = ?", record.ID).Error)
	assert.Equal(t, enums.PayoutStatusSucceeded, gotRecord.Status)

	var gotTask models.Task
	require.NoError(t, db.First(&gotTask, "id = ?", task.ID).Error)
	assert.Equal(t, enums.PayoutStatusSucceeded, gotTask.PayoutStatus)
	assert.EqualValues(t, 1, countOutboxRows(t, db))
}

func TestApplyPayoutFailedRecordsReason(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	record := seedPayoutRecord(t, db, nil, "tr_9")

	result, err := applier.Apply(context.Background(), Event{
		Category:      enums.EventPayoutFailed,
		Provider:      enums.ProviderPayPal,
		PayoutRef:     "tr_9",
		FailureReason: "receiver unregistered",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	var got models.PayoutRecord
	require.NoError(t, db.First(&got, "id = ?", record.ID).Error)
	assert.Equal(t, enums.PayoutStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "receiver unregistered", *got.FailureReason)
}

func TestApplyLateFailureCannotDisplaceSuccess(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)
	record := seedPayoutRecord(t, db, nil, "BATCH-8")

	_, err := applier.Apply(context.Background(), Event{
		Category:  enums.EventPayoutSucceeded,
		Provider:  enums.ProviderPayPal,
		PayoutRef: "BATCH-8",
	})
	require.NoError(t, err)

	late, err := applier.Apply(context.Background(), Event{
		Category:      enums.EventPayoutFailed,
		Provider:      enums.ProviderPayPal,
		PayoutRef:     "BATCH-8",
		FailureReason: "out of order delivery",
	})
	require.NoError(t, err)
	assert.False(t, late.Applied)

	var got models.PayoutRecord
	require.NoError(t, db.First(&got, "id = ?", record.ID).Error)
	assert.Equal(t, enums.PayoutStatusSucceeded, got.Status)
}

func TestApplyRejectsUnrecognizedCategory(t *testing.T) {
	db := setupApplierTestDB(t)
	applier := newApplier(t, db)

	_, err := applier.Apply(context.Background(), Event{Category: "subscription.updated"})
	require.Error(t, err)
}
