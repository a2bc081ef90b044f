package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-service/cart"
	apperrors "pos-service/common/errors"
	"pos-service/models"
)

// CheckoutService reconciles the final cart snapshot against live stock and
// submits the order exactly once per idempotency key.
type CheckoutService struct {
	catalog     Catalog
	inventory   Inventory
	billing     Billing
	submissions SubmissionStore
	events      EventPublisher
	log         *zap.Logger
	idemTTL     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func NewCheckoutService(catalog Catalog, inventory Inventory, billing Billing, submissions SubmissionStore, events EventPublisher, log *zap.Logger) *CheckoutService {
	return &CheckoutService{
		catalog:     catalog,
		inventory:   inventory,
		billing:     billing,
		submissions: submissions,
		events:      events,
		log:         log,
		idemTTL:     24 * time.Hour,
		now:         time.Now,
	}
}

// SubmitRequest is one checkout attempt.
type SubmitRequest struct {
	Org       models.OrgContext
	PatientID string
	Payment   models.Payment

	// IdempotencyKey pins a retried submission to its original effect. The
	// terminal sends the same key for every retry of one attempt; when
	// absent, one is generated here, once, before anything is sent.
	IdempotencyKey string
}

// Submit validates the cart, re-checks live stock and submits the order.
// On success the cart is reset (reservations were consumed server-side) and
// the fulfillment event is published. On failure the cart and its
// reservations are untouched so the clerk can retry without re-entering
// anything.
func (s *CheckoutService) Submit(ctx context.Context, store *cart.Store, req SubmitRequest) (*models.Receipt, error) {
	if missing := req.Org.MissingFields(); len(missing) > 0 {
		return nil, &apperrors.ConfigurationError{Missing: missing}
	}
	if req.PatientID == "" {
		return nil, &apperrors.ValidationError{Field: "patient_id", Message: "a patient must be selected before checkout"}
	}

	lines, totals := store.Snapshot()
	if len(lines) == 0 {
		return nil, &apperrors.ValidationError{Field: "cart", Message: "cart is empty"}
	}
	for _, line := range lines {
		if models.IsUnmappedID(line.ProductID) {
			return nil, &apperrors.ValidationError{
				Field:   "cart",
				Message: "unmapped prescription line " + line.DisplayName + " must be corrected or removed",
			}
		}
	}

	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = uuid.NewString()
	}

	// Duplicate click or client retry: replay the recorded receipt instead
	// of creating a second order.
	if prior, err := s.submissions.GetSubmission(ctx, idemKey); err == nil && prior != nil {
		s.log.Info("replaying recorded submission", zap.String("idempotency_key", idemKey))
		return prior, nil
	} else if err != nil {
		s.log.Warn("submission record lookup failed", zap.Error(err))
	}

	s.refreshExpiredReservations(ctx, store, req)
	lines, totals = store.Snapshot()

	if err := s.precheckStock(ctx, lines); err != nil {
		return nil, err
	}

	payload := s.buildPayload(req, lines, totals)
	receipt, err := s.billing.Fulfill(ctx, payload, idemKey)
	if err != nil {
		return nil, &apperrors.SubmissionError{Cause: err}
	}

	if err := s.submissions.PutSubmission(ctx, idemKey, receipt, s.idemTTL); err != nil {
		s.log.Warn("failed to record submission", zap.String("idempotency_key", idemKey), zap.Error(err))
	}

	if s.events != nil {
		event := models.OrderFulfilledEvent{
			Event:      "pos.order.fulfilled",
			OrderID:    receipt.OrderID,
			RegisterID: req.Org.RegisterID,
			PatientID:  req.PatientID,
			Total:      totals.Total,
			LineCount:  len(lines),
			Timestamp:  s.now(),
		}
		if err := s.events.PublishOrderFulfilled(event); err != nil {
			// The order exists server-side; a lost event never fails checkout.
			s.log.Warn("order fulfilled event publish failed", zap.Error(err))
		}
	}

	store.Reset()
	return receipt, nil
}

// refreshExpiredReservations re-reserves lines whose hold looks expired.
// Expiry is authoritative only server-side, so a failed re-reserve leaves
// the line unbacked rather than failing checkout; the fulfill call is the
// authoritative check.
func (s *CheckoutService) refreshExpiredReservations(ctx context.Context, store *cart.Store, req SubmitRequest) {
	now := s.now()
	lines, _ := store.Snapshot()
	for _, line := range lines {
		if line.ReservationID == "" || line.Reserved(now) {
			continue
		}
		rctx := models.ReservationContext{
			CompanyID:          req.Org.CompanyID,
			LocationID:         req.Org.LocationID,
			PatientID:          req.PatientID,
			PrescriptionLineID: line.PrescriptionLineID,
		}
		res, err := s.inventory.Reserve(ctx, rctx, line.ProductID, line.BatchID, line.Quantity)
		if err != nil {
			s.log.Warn("re-reservation failed, submitting line unbacked",
				zap.String("product_id", line.ProductID), zap.Error(err))
			store.ClearReservation(line.ID)
			continue
		}
		expires := res.ExpiresAt
		store.SetReservation(line.ID, res.ReservationID, &expires)
	}
}

// precheckStock sums requested quantities per unique (product, batch) pair
// and compares against live availability. Best-effort: an unreachable stock
// endpoint is logged and skipped, since the server re-checks at fulfill
// time; a definitive shortfall blocks submission.
func (s *CheckoutService) precheckStock(ctx context.Context, lines []models.CartLine) error {
	type pair struct{ productID, batchID string }
	requested := make(map[pair]int)
	order := make([]pair, 0, len(lines))
	for _, line := range lines {
		p := pair{line.ProductID, line.BatchID}
		if _, seen := requested[p]; !seen {
			order = append(order, p)
		}
		requested[p] += line.Quantity
	}

	for _, p := range order {
		available, err := s.catalog.GetStock(ctx, p.productID, p.batchID)
		if err != nil {
			s.log.Warn("stock pre-check unavailable, deferring to server",
				zap.String("product_id", p.productID), zap.Error(err))
			continue
		}
		if requested[p] > available {
			return &apperrors.InsufficientStock{
				ProductID: p.productID,
				BatchID:   p.batchID,
				Requested: requested[p],
				Available: available,
			}
		}
	}
	return nil
}

func (s *CheckoutService) buildPayload(req SubmitRequest, lines []models.CartLine, totals models.Totals) models.OrderPayload {
	orderLines := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		orderLines = append(orderLines, models.OrderLine{
			ProductID:          line.ProductID,
			BatchID:            line.BatchID,
			DisplayName:        line.DisplayName,
			Quantity:           line.Quantity,
			UnitPrice:          line.UnitPrice,
			DiscountAmount:     line.DiscountAmount,
			TaxRatePercent:     line.TaxRatePercent,
			ReservationID:      line.ReservationID,
			PrescriptionLineID: line.PrescriptionLineID,
		})
	}
	return models.OrderPayload{
		TenantID:   req.Org.TenantID,
		CompanyID:  req.Org.CompanyID,
		LocationID: req.Org.LocationID,
		PatientID:  req.PatientID,
		CreatedBy:  req.Org.ClerkID,
		Lines:      orderLines,
		Payment:    req.Payment,
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		Total:      totals.Total,
	}
}
