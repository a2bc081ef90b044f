package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pos-service/models"
)

// PrescriptionResolver turns free-text prescription lines into cart lines,
// each independently reservation-backed. One line's failure never stops the
// rest of the batch; problems are aggregated and reported once at the end.
type PrescriptionResolver struct {
	catalog   Catalog
	inventory Inventory
	log       *zap.Logger
}

func NewPrescriptionResolver(catalog Catalog, inventory Inventory, log *zap.Logger) *PrescriptionResolver {
	return &PrescriptionResolver{catalog: catalog, inventory: inventory, log: log}
}

// ResolveAndReserve processes a prescription batch, emitting one cart line
// per input line through emit. The returned error aggregates per-line
// problems (unresolved names, failed reservations); a non-nil error still
// means every line was processed.
func (r *PrescriptionResolver) ResolveAndReserve(ctx context.Context, lines []models.PrescriptionLine, rctx models.ReservationContext, emit func(models.CartLine)) error {
	var errs error

	for i, pl := range lines {
		if pl.ID == "" {
			pl.ID = uuid.NewString()
		}
		qty := pl.Qty
		if qty < 1 {
			qty = 1
		}

		productID := r.resolveProductID(ctx, pl)
		if productID == "" {
			// Keep the line visible for manual correction instead of
			// dropping it.
			emit(models.CartLine{
				ProductID:          models.UnmappedIDPrefix + uuid.NewString(),
				DisplayName:        pl.ProductName,
				Quantity:           qty,
				PrescriptionLineID: pl.ID,
			})
			errs = multierr.Append(errs, fmt.Errorf("line %d (%q): no product match", i+1, pl.ProductName))
			continue
		}

		product, err := r.catalog.GetProduct(ctx, productID)
		if err != nil {
			// Resolved but unfetchable: emit anyway, visibility over silence.
			r.log.Warn("product fetch failed during prescription import",
				zap.String("product_id", productID), zap.Error(err))
			emit(models.CartLine{
				ProductID:          productID,
				DisplayName:        pl.ProductName,
				Quantity:           qty,
				PrescriptionLineID: pl.ID,
			})
			errs = multierr.Append(errs, fmt.Errorf("line %d (%q): product %s unavailable: %w", i+1, pl.ProductName, productID, err))
			continue
		}

		line := models.CartLine{
			ProductID:          product.ID,
			BatchID:            product.DefaultBatchID,
			DisplayName:        product.Name,
			SKU:                product.SKU,
			UnitPrice:          product.Price,
			Quantity:           qty,
			TaxRatePercent:     product.TaxRatePercent,
			PrescriptionLineID: pl.ID,
		}

		lineCtx := rctx
		lineCtx.PrescriptionLineID = pl.ID
		res, err := r.inventory.Reserve(ctx, lineCtx, product.ID, product.DefaultBatchID, qty)
		if err != nil {
			// Unbacked line: the clerk sees it, checkout revalidates it.
			r.log.Warn("prescription line reservation failed",
				zap.String("product_id", product.ID), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("line %d (%q): %w", i+1, pl.ProductName, err))
		} else {
			line.ReservationID = res.ReservationID
			expires := res.ExpiresAt
			line.ReservationExpiresAt = &expires
		}

		emit(line)
	}

	return errs
}

// resolveProductID walks the fallback chain: suggested ids, then the
// medication-name normalizer, then free-text search. Returns "" when every
// stage comes up empty.
func (r *PrescriptionResolver) resolveProductID(ctx context.Context, pl models.PrescriptionLine) string {
	if len(pl.SuggestedProductIDs) > 0 {
		return pl.SuggestedProductIDs[0]
	}

	if ids, err := r.catalog.NormalizeMedication(ctx, pl.ProductName); err == nil && len(ids) > 0 {
		return ids[0]
	} else if err != nil {
		r.log.Debug("medication normalize failed", zap.String("name", pl.ProductName), zap.Error(err))
	}

	if products, err := r.catalog.SearchProducts(ctx, pl.ProductName); err == nil && len(products) > 0 {
		return products[0].ID
	} else if err != nil {
		r.log.Debug("product search failed", zap.String("name", pl.ProductName), zap.Error(err))
	}

	return ""
}
