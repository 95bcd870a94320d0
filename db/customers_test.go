// ABOUTME: Tests for customer selection, risk-score write-back, and upsert
// ABOUTME: Uses a temp SQLite file plus sqlmock for store failure paths
package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/harperreed/retainiq/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCustomer(t *testing.T, repo *CustomerRepository, c models.Customer) {
	t.Helper()
	if c.Email == "" {
		c.Email = c.ID + "@example.com"
	}
	if c.Company == "" {
		c.Company = c.Name + " Inc"
	}
	require.NoError(t, repo.Upsert(context.Background(), &c))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestCustomerUpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	login := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedCustomer(t, repo, models.Customer{
		ID:               "c1",
		Name:             "Ann",
		Tier:             models.TierEntry,
		HealthScore:      42,
		FeaturesUsed:     3,
		TotalFeatures:    10,
		OnboardingStatus: models.OnboardingStuck,
		OnboardingDay:    intPtr(4),
		LastLogin:        &login,
	})

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, models.TierEntry, got.Tier)
	assert.Equal(t, models.OnboardingStuck, got.OnboardingStatus)
	require.NotNil(t, got.OnboardingDay)
	assert.Equal(t, 4, *got.OnboardingDay)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(login))
	assert.Equal(t, "3/10", got.FeatureSummary())

	// Upsert replaces fields
	seedCustomer(t, repo, models.Customer{ID: "c1", Name: "Ann B", Tier: models.TierMid, HealthScore: 60})
	got, err = repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ann B", got.Name)
	assert.Equal(t, models.TierMid, got.Tier)
	assert.Nil(t, got.OnboardingDay)
	assert.Empty(t, got.OnboardingStatus)
}

func TestCustomerGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCustomerUpsertRequiresID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)

	err := repo.Upsert(context.Background(), &models.Customer{Name: "No ID", Tier: models.TierEntry})
	assert.Error(t, err)
}

func TestSelectScopesToTierAndSortsByHealth(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)

	seedCustomer(t, repo, models.Customer{ID: "e1", Name: "A", Tier: models.TierEntry, HealthScore: 70})
	seedCustomer(t, repo, models.Customer{ID: "e2", Name: "B", Tier: models.TierEntry, HealthScore: 20})
	seedCustomer(t, repo, models.Customer{ID: "e3", Name: "C", Tier: models.TierEntry, HealthScore: 20})
	seedCustomer(t, repo, models.Customer{ID: "m1", Name: "D", Tier: models.TierMid, HealthScore: 10})

	got, err := repo.Select(context.Background(), models.TierEntry, models.CustomerFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"e2", "e3", "e1"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestSelectStuckOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)

	seedCustomer(t, repo, models.Customer{ID: "e1", Name: "A", Tier: models.TierEntry, OnboardingStatus: models.OnboardingStuck})
	seedCustomer(t, repo, models.Customer{ID: "e2", Name: "B", Tier: models.TierEntry, OnboardingStatus: models.OnboardingOnTrack})

	got, err := repo.Select(context.Background(), models.TierEntry, models.CustomerFilter{StuckOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
}

func TestSelectChurnRiskIsStrictAndSortedDescending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)

	seedCustomer(t, repo, models.Customer{ID: "m1", Name: "A", Tier: models.TierMid, ChurnRisk: 50})
	seedCustomer(t, repo, models.Customer{ID: "m2", Name: "B", Tier: models.TierMid, ChurnRisk: 55})
	seedCustomer(t, repo, models.Customer{ID: "m3", Name: "C", Tier: models.TierMid, ChurnRisk: 90})

	got, err := repo.Select(context.Background(), models.TierMid, models.CustomerFilter{MinChurnRisk: floatPtr(50)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
}

func TestSelectUpsellReadySortedByValue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)

	seedCustomer(t, repo, models.Customer{ID: "m1", Name: "A", Tier: models.TierMid, UpsellReady: true, UpsellValue: 1000})
	seedCustomer(t, repo, models.Customer{ID: "m2", Name: "B", Tier: models.TierMid, UpsellReady: true, UpsellValue: 5000})
	seedCustomer(t, repo, models.Customer{ID: "m3", Name: "C", Tier: models.TierMid, UpsellReady: false, UpsellValue: 9000})

	got, err := repo.Select(context.Background(), models.TierMid, models.CustomerFilter{UpsellReady: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].ID)
	assert.True(t, got[0].UpsellReady)
	assert.Equal(t, "m1", got[1].ID)
}

func TestUpdateRiskScore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	seedCustomer(t, repo, models.Customer{ID: "t1", Name: "A", Tier: models.TierTop, ChurnRisk: 10})

	require.NoError(t, repo.UpdateRiskScore(ctx, "t1", 85.5))
	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.InDelta(t, 85.5, got.ChurnRisk, 0.001)

	assert.ErrorIs(t, repo.UpdateRiskScore(ctx, "missing", 1), ErrCustomerNotFound)
}

func TestCountByTier(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	seedCustomer(t, repo, models.Customer{ID: "e1", Name: "A", Tier: models.TierEntry})
	seedCustomer(t, repo, models.Customer{ID: "t1", Name: "B", Tier: models.TierTop})

	n, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.Count(ctx, models.TierTop)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSelectPropagatesStoreError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectQuery("FROM customers WHERE tier = \\?").
		WithArgs("top").
		WillReturnError(errors.New("connection refused"))

	repo := NewCustomerRepository(sqlDB)
	_, err = repo.Select(context.Background(), models.TierTop, models.CustomerFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRiskScorePropagatesStoreError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectExec("UPDATE customers SET churn_risk").
		WithArgs(72.0, "t1").
		WillReturnError(errors.New("database is locked"))

	repo := NewCustomerRepository(sqlDB)
	err = repo.UpdateRiskScore(context.Background(), "t1", 72.0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCustomerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
