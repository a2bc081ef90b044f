package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pos-service/models"
	"pos-service/services"
)

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return &parsed
}

func TestChooseBestBatch_PrefersQuantityThenEarlierExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	batches := []models.Batch{
		{ID: "expired", AvailableQty: 5, Expiry: ts(t, "2020-01-01")},
		{ID: "late", AvailableQty: 10, Expiry: ts(t, "2099-01-01")},
		{ID: "early", AvailableQty: 10, Expiry: ts(t, "2030-01-01")},
	}

	best := services.ChooseBestBatch(now, batches)
	assert.NotNil(t, best)
	assert.Equal(t, "early", best.ID)
}

func TestChooseBestBatch_NoExpirySortsLastOnTie(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	batches := []models.Batch{
		{ID: "open", AvailableQty: 10},
		{ID: "dated", AvailableQty: 10, Expiry: ts(t, "2027-01-01")},
	}

	best := services.ChooseBestBatch(now, batches)
	assert.Equal(t, "dated", best.ID)
}

func TestChooseBestBatch_NoExpiryIsAlwaysEligible(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	batches := []models.Batch{
		{ID: "expired", AvailableQty: 50, Expiry: ts(t, "2024-01-01")},
		{ID: "open", AvailableQty: 3},
	}

	best := services.ChooseBestBatch(now, batches)
	assert.Equal(t, "open", best.ID)
}

func TestChooseBestBatch_EmptyAfterFiltering(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, services.ChooseBestBatch(now, nil))
	assert.Nil(t, services.ChooseBestBatch(now, []models.Batch{
		{ID: "expired", AvailableQty: 5, Expiry: ts(t, "2020-01-01")},
	}))
}
