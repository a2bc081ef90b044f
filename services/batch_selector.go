package services

import (
	"sort"
	"time"

	"pos-service/models"
)

// ChooseBestBatch picks the batch to sell from: expired batches are
// discarded, then the largest available quantity wins, ties broken by the
// earliest expiry (no expiry sorts last). Returns nil when nothing is
// eligible. Pure and deterministic for a fixed now.
func ChooseBestBatch(now time.Time, batches []models.Batch) *models.Batch {
	eligible := make([]models.Batch, 0, len(batches))
	for _, b := range batches {
		if !b.Expired(now) {
			eligible = append(eligible, b)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].AvailableQty != eligible[j].AvailableQty {
			return eligible[i].AvailableQty > eligible[j].AvailableQty
		}
		ei, ej := eligible[i].Expiry, eligible[j].Expiry
		switch {
		case ei == nil:
			return false
		case ej == nil:
			return true
		default:
			return ei.Before(*ej)
		}
	})

	best := eligible[0]
	return &best
}
