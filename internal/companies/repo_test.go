package companies

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
)

func setupCompaniesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	companies := `
CREATE TABLE IF NOT EXISTS companies (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  suspended_at DATETIME,
  suspended_reason TEXT,
  max_agencies INTEGER,
  billing_email TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(companies).Error)
	return db
}

func seedCompany(t *testing.T, db *gorm.DB, status enums.CompanyStatus, suspendedAt *time.Time) *models.Company {
	t.Helper()
	company := &models.Company{
		ID:           uuid.New(),
		Name:         "Acme Rentals",
		Status:       status,
		SuspendedAt:  suspendedAt,
		BillingEmail: "billing@acme.test",
	}
	require.NoError(t, db.Create(company).Error)
	return company
}

func TestUpdateCompanyWhereStatusGuards(t *testing.T) {
	db := setupCompaniesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	company := seedCompany(t, db, enums.CompanyStatusActive, nil)

	rows, err := repo.UpdateCompanyWhereStatus(ctx, company.ID,
		[]enums.CompanyStatus{enums.CompanyStatusActive},
		map[string]any{
			"status":           enums.CompanyStatusSuspended,
			"suspended_at":     now,
			"suspended_reason": "subscription expired",
		})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.UpdateCompanyWhereStatus(ctx, company.ID,
		[]enums.CompanyStatus{enums.CompanyStatusActive},
		map[string]any{"status": enums.CompanyStatusDeleted})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "guard must not match a suspended row")

	found, err := repo.FindCompanyByID(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.CompanyStatusSuspended, found.Status)
	require.NotNil(t, found.SuspendedAt)
	require.NotNil(t, found.SuspendedReason)
	assert.Equal(t, "subscription expired", *found.SuspendedReason)
}

func TestFindCompanyByIDMissing(t *testing.T) {
	db := setupCompaniesTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindCompanyByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListSuspendedBefore(t *testing.T) {
	db := setupCompaniesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	old := now.Add(-101 * 24 * time.Hour)
	recent := now.Add(-5 * 24 * time.Hour)
	stale := seedCompany(t, db, enums.CompanyStatusSuspended, &old)
	seedCompany(t, db, enums.CompanyStatusSuspended, &recent)
	seedCompany(t, db, enums.CompanyStatusActive, nil)

	cutoff := now.Add(-100 * 24 * time.Hour)
	companies, err := repo.ListSuspendedBefore(ctx, cutoff)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(companies))
	for _, c := range companies {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, stale.ID)
	for _, c := range companies {
		assert.Equal(t, enums.CompanyStatusSuspended, c.Status)
		require.NotNil(t, c.SuspendedAt)
		assert.False(t, c.SuspendedAt.After(cutoff))
	}
}
