package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pos-service/cart"
	apperrors "pos-service/common/errors"
	"pos-service/models"
	"pos-service/services"
)

func checkoutOrg() models.OrgContext {
	return models.OrgContext{
		TenantID:   "t-1",
		CompanyID:  "co-1",
		LocationID: "loc-1",
		RegisterID: "reg-1",
		ClerkID:    "clerk-1",
	}
}

func newCheckout(catalog *mockCatalog, inventory *mockInventory, billing *mockBilling, subs *mockSubmissions, pub *mockPublisher) *services.CheckoutService {
	return services.NewCheckoutService(catalog, inventory, billing, subs, pub, zap.NewNop())
}

func TestSubmit_MissingOrgContext(t *testing.T) {
	svc := newCheckout(&mockCatalog{}, &mockInventory{}, &mockBilling{}, &mockSubmissions{}, &mockPublisher{})
	store := cart.NewStore(nil, nil)
	store.Add(models.CartLine{ProductID: "p1", Quantity: 1})

	_, err := svc.Submit(context.Background(), store, services.SubmitRequest{
		Org:       models.OrgContext{RegisterID: "reg-1"},
		PatientID: "pat-1",
	})

	var confErr *apperrors.ConfigurationError
	assert.True(t, errors.As(err, &confErr))
	assert.Contains(t, confErr.Missing, "tenant_id")
}

func TestSubmit_RequiresPatientAndLines(t *testing.T) {
	billing := &mockBilling{}
	svc := newCheckout(&mockCatalog{}, &mockInventory{}, billing, &mockSubmissions{}, &mockPublisher{})
	store := cart.NewStore(nil, nil)
	store.Add(models.CartLine{ProductID: "p1", Quantity: 1})

	_, err := svc.Submit(context.Background(), store, services.SubmitRequest{Org: checkoutOrg()})
	var valErr *apperrors.ValidationError
	assert.True(t, errors.As(err, &valErr))
	assert.Equal(t, "patient_id", valErr.Field)

	empty := cart.NewStore(nil, nil)
	_, err = svc.Submit(context.Background(), empty, services.SubmitRequest{Org: checkoutOrg(), PatientID: "pat-1"})
	assert.True(t, errors.As(err, &valErr))
	assert.Equal(t, "cart", valErr.Field)

	assert.Empty(t, billing.payloads)
}

func TestSubmit_UnmappedLineBlocksCheckout(t *testing.T) {
	billing := &mockBilling{}
	svc := newCheckout(&mockCatalog{}, &mockInventory{}, billing, &mockSubmissions{}, &mockPublisher{})
	store := cart.NewStore(nil, nil)
	store.Add(models.CartLine{ProductID: models.UnmappedIDPrefix + "x", DisplayName: "mystery", Quantity: 1})

	_, err := svc.Submit(context.Background(), store, services.SubmitRequest{Org: checkoutOrg(), PatientID: "pat-1"})

	var valErr *apperrors.ValidationError
	assert.True(t, errors.As(err, &valErr))
	assert.Empty(t, billing.payloads)
}

func TestSubmit_InsufficientStockBlocksSubmission(t *testing.T) {
	catalog := &mockCatalog{stock: map[string]int{stockKey("p1", "b1"): 10}}
	billing := &mockBilling{}
	svc := newCheckout(catalog, &mockInventory{}, billing, &mockSubmissions{}, &mockPublisher{})

	// Two lines for the same (product, batch) pair: requested quantity is
	// summed across them.
	store := cart.NewStore(nil, nil)
	store.Add(models.CartLine{ProductID: "p1", BatchID: "b1", Quantity: 5, PrescriptionLineID: "rx1"})
	store.Add(models.CartLine{ProductID: "p1", BatchID: "b1", Quantity: 7, PrescriptionLineID: "rx2"})

	_, err := svc.Submit(context.Background(), store, services.SubmitRequest{Org: checkoutOrg(), PatientID: "pat-1"})

	var stockErr *apperrors.InsufficientStock
	assert.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 12, stockErr.Requested)
	assert.Equal(t, 10, stockErr.Available)
	assert.Empty(t, billing.payloads, "submit endpoint must not be called")

	// Failure leaves the cart intact for retry.
	lines, _ := store.Snapshot()
	assert.Len(t, lines, 2)
}

func TestSubmit_Success(t *testing.T) {
	catalog := &mockCatalog{stock: map[string]int{stockKey("p1", "b1"): 100}}
	billing := &mockBilling{}
	subs := &mockSubmissions{}
	pub := &mockPublisher{}
	svc := newCheckout(catalog, &mockInventory{}, billing, subs, pub)

	store := cart.NewStore(nil, nil)
	expires := time.Now().Add(10 * time.Minute)
	store.Add(models.CartLine{
		ProductID: "p1", BatchID: "b1", DisplayName: "Amoxicillin",
		UnitPrice: 100, Quantity: 2, DiscountAmount: 10, TaxRatePercent: 18,
		ReservationID: "res-1", ReservationExpiresAt: &expires,
	})

	receipt, err := svc.Submit(context.Background(), store, services.SubmitRequest{
		Org: checkoutOrg(), PatientID: "pat-1",
		Payment: models.Payment{Method: "cash", AmountTendered: 250},
	})

	assert.NoError(t, err)
	assert.Equal(t, "ord-1", receipt.OrderID)

	assert.Len(t, billing.payloads, 1)
	payload := billing.payloads[0]
	assert.Equal(t, "pat-1", payload.PatientID)
	assert.Equal(t, "clerk-1", payload.CreatedBy)
	assert.Len(t, payload.Lines, 1)
	assert.Equal(t, "res-1", payload.Lines[0].ReservationID)
	assert.InDelta(t, 224.2, payload.Total, 0.001)
	assert.NotEmpty(t, billing.keys[0])

	// Receipt recorded for replay, event published, cart reset.
	assert.Len(t, subs.records, 1)
	assert.Len(t, pub.events, 1)
	assert.Equal(t, "pos.order.fulfilled", pub.events[0].Event)
	lines, _ := store.Snapshot()
	assert.Empty(t, lines)
}

func TestSubmit_DuplicateKeyReplaysReceipt(t *testing.T) {
	catalog := &mockCatalog{stock: map[string]int{stockKey("p1", ""): 100}}
	billing := &mockBilling{}
	recorded := &models.Receipt{OrderID: "ord-original", Status: "fulfilled"}
	subs := &mockSubmissions{records: map[string]*models.Receipt{"idem-1": recorded}}
	svc := newCheckout(catalog, &mockInventory{}, billing, subs, &mockPublisher{})

	store := cart.NewStore(nil, nil)
	store.Add(models.CartLine{ProductID: "p1", UnitPrice: 5, Quantity: 1})

	receipt, err := svc.Submit(context.Background(), store, services.SubmitRequest{
		Org: checkoutOrg(), PatientID: "pat-1", IdempotencyKey: "idem-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "ord-original", receipt.OrderID)
	assert.Empty(t, billing.payloads, "a replayed submission never reaches billing")
}

func TestSubmit_FailureLeavesCartAndReservations(t *testing.T) {
	catalog := &mockCatalog{stock: map[string]int{stockKey("p1", ""): 100}}
	billing := &mockBilling{err: errors.New("billing down")}
	inventory := &mockInventory{}
	svc := newCheckout(catalog, inventory, billing, &mockSubmissions{}, &mockPublisher{})

	store := cart.NewStore(nil, nil)
	expires := time.Now().Add(10 * time.Minute)
	store.Add(models.CartLine{ProductID: "p1", UnitPrice: 5, Quantity: 1, ReservationID: "res-1", ReservationExpiresAt: &expires})

	_, err := svc.Submit(context.Background(), store, services.SubmitRequest{Org: checkoutOrg(), PatientID: "pat-1"})

	var subErr *apperrors.SubmissionError
	assert.True(t, errors.As(err, &subErr))

	lines, _ := store.Snapshot()
	assert.Len(t, lines, 1)
	assert.Equal(t, "res-1", lines[0].ReservationID)
	assert.Empty(t, inventory.released)
}

func TestSubmit_ReReservesExpiredHolds(t *testing.T) {
	catalog := &mockCatalog{stock: map[string]int{stockKey("p1", "b1"): 100}}
	billing := &mockBilling{}
	inventory := &mockInventory{}
	svc := newCheckout(catalog, inventory, billing, &mockSubmissions{}, &mockPublisher{})

	store := cart.NewStore(nil, nil)
	expired := time.Now().Add(-time.Minute)
	store.Add(models.CartLine{
		ProductID: "p1", BatchID: "b1", UnitPrice: 5, Quantity: 2,
		ReservationID: "res-stale", ReservationExpiresAt: &expired,
	})

	_, err := svc.Submit(context.Background(), store, services.SubmitRequest{Org: checkoutOrg(), PatientID: "pat-1"})

	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, inventory.reserves)
	assert.Len(t, billing.payloads, 1)
	assert.Equal(t, "res-1", billing.payloads[0].Lines[0].ReservationID)
}

func TestSubmit_StockCheckOutageDefersToServer(t *testing.T) {
	catalog := &mockCatalog{stockErr: errors.New("stock endpoint down")}
	billing := &mockBilling{}
	svc := newCheckout(catalog, &mockInventory{}, billing, &mockSubmissions{}, &mockPublisher{})

	store := cart.NewStore(nil, nil)
	store.Add(models.CartLine{ProductID: "p1", UnitPrice: 5, Quantity: 1})

	_, err := svc.Submit(context.Background(), store, services.SubmitRequest{Org: checkoutOrg(), PatientID: "pat-1"})

	// Pre-check is best-effort only; the server is authoritative.
	assert.NoError(t, err)
	assert.Len(t, billing.payloads, 1)
}
