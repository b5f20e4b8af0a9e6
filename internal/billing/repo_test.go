package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/pkg/db"
	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL,
  company_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  due_date DATETIME NOT NULL,
  paid_at DATETIME,
  invoice_number TEXT NOT NULL UNIQUE,
  invoice_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, gdb.Exec(payments).Error)
	return gdb
}

func seedPayment(t *testing.T, gdb *gorm.DB, status enums.PaymentStatus, companyID, subscriptionID uuid.UUID, dueDate time.Time) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		CompanyID:      companyID,
		Amount:         decimal.NewFromInt(499),
		Status:         status,
		DueDate:        dueDate,
		InvoiceNumber:  NewInvoiceNumber("INV", companyID, time.Now().UTC()),
	}
	require.NoError(t, gdb.Create(payment).Error)
	return payment
}

func TestInvoiceNumberUniqueIndexRejected(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	companyID := uuid.New()
	subID := uuid.New()
	first := seedPayment(t, gdb, enums.PaymentStatusPending, companyID, subID, time.Now().UTC())

	dup := &models.Payment{
		ID:             uuid.New(),
		SubscriptionID: subID,
		CompanyID:      companyID,
		Amount:         decimal.NewFromInt(499),
		Status:         enums.PaymentStatusPending,
		DueDate:        time.Now().UTC(),
		InvoiceNumber:  first.InvoiceNumber,
	}
	err := gdb.Create(dup).Error
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""), "expected a unique violation, got %v", err)
}

func TestMarkPaymentPaidOnlySettlesPending(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	now := time.Now().UTC()

	payment := seedPayment(t, gdb, enums.PaymentStatusPending, uuid.New(), uuid.New(), now)

	rows, err := repo.MarkPaymentPaid(ctx, payment.ID, map[string]any{
		"status":  enums.PaymentStatusPaid,
		"paid_at": now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.MarkPaymentPaid(ctx, payment.ID, map[string]any{
		"status":  enums.PaymentStatusPaid,
		"paid_at": now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "a settled payment must not settle twice")

	found, err := repo.FindPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.PaymentStatusPaid, found.Status)
	require.NotNil(t, found.PaidAt)
}

func TestHasPendingPayment(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	now := time.Now().UTC()

	withPending := uuid.New()
	seedPayment(t, gdb, enums.PaymentStatusPending, uuid.New(), withPending, now)
	withoutPending := uuid.New()
	seedPayment(t, gdb, enums.PaymentStatusPaid, uuid.New(), withoutPending, now)

	pending, err := repo.HasPendingPayment(ctx, withPending)
	require.NoError(t, err)
	assert.True(t, pending)

	pending, err = repo.HasPendingPayment(ctx, withoutPending)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestListDuePayments(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := seedPayment(t, gdb, enums.PaymentStatusPending, uuid.New(), uuid.New(), now.Add(-24*time.Hour))
	seedPayment(t, gdb, enums.PaymentStatusPending, uuid.New(), uuid.New(), now.Add(240*time.Hour))
	seedPayment(t, gdb, enums.PaymentStatusPaid, uuid.New(), uuid.New(), now.Add(-24*time.Hour))

	due, err := repo.ListDuePayments(ctx, now)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(due))
	for _, p := range due {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, overdue.ID)
	for _, p := range due {
		assert.Equal(t, enums.PaymentStatusPending, p.Status)
		assert.False(t, p.DueDate.After(now))
	}
}

func TestListCompanyPaymentsPaginates(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	now := time.Now().UTC()

	companyID := uuid.New()
	subID := uuid.New()
	for i := 0; i < 3; i++ {
		seedPayment(t, gdb, enums.PaymentStatusPaid, companyID, subID, now.Add(-time.Duration(i)*24*time.Hour))
	}

	page, cursor, err := repo.ListCompanyPayments(ctx, ListCompanyPaymentsQuery{
		CompanyID: companyID,
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor, "expected a next-page cursor")
	assert.True(t, page[0].DueDate.After(page[1].DueDate) || page[0].DueDate.Equal(page[1].DueDate),
		"newest due date first")

	rest, cursor, err := repo.ListCompanyPayments(ctx, ListCompanyPaymentsQuery{
		CompanyID: companyID,
		Limit:     2,
		Cursor:    cursor,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, cursor)
}

func TestListCompanyPaymentsStatusFilter(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	now := time.Now().UTC()

	companyID := uuid.New()
	seedPayment(t, gdb, enums.PaymentStatusPending, companyID, uuid.New(), now)
	seedPayment(t, gdb, enums.PaymentStatusPaid, companyID, uuid.New(), now.Add(-24*time.Hour))

	status := enums.PaymentStatusPending
	page, _, err := repo.ListCompanyPayments(ctx, ListCompanyPaymentsQuery{
		CompanyID: companyID,
		Status:    &status,
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, enums.PaymentStatusPending, page[0].Status)
}
