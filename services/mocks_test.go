package services_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pos-service/models"
)

// ---- mock catalog ----

type mockCatalog struct {
	products      map[string]*models.Product
	productErr    map[string]error
	searchResults map[string][]models.Product
	searchErr     error
	searchCalls   int
	normalized    map[string][]string
	normalizeErr  error
	batches       []models.Batch
	stock         map[string]int
	stockErr      error
	stockCalls    []string

	mu sync.Mutex
}

func stockKey(productID, batchID string) string { return productID + "|" + batchID }

func (m *mockCatalog) SearchProducts(_ context.Context, q string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults[q], nil
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*models.Product, error) {
	if err := m.productErr[id]; err != nil {
		return nil, err
	}
	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("product %s not found", id)
}

func (m *mockCatalog) GetBatches(_ context.Context, _ string) ([]models.Batch, error) {
	return m.batches, nil
}

func (m *mockCatalog) NormalizeMedication(_ context.Context, q string) ([]string, error) {
	if m.normalizeErr != nil {
		return nil, m.normalizeErr
	}
	return m.normalized[q], nil
}

func (m *mockCatalog) GetStock(_ context.Context, productID, batchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockCalls = append(m.stockCalls, stockKey(productID, batchID))
	if m.stockErr != nil {
		return 0, m.stockErr
	}
	return m.stock[stockKey(productID, batchID)], nil
}

// ---- mock inventory ----

type mockInventory struct {
	reserveErr map[string]error
	reserves   []string
	updates    map[string]int
	released   []string
	seq        int

	mu sync.Mutex
}

func (m *mockInventory) Reserve(_ context.Context, rctx models.ReservationContext, productID, batchID string, qty int) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if missing := rctx.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("missing context: %v", missing)
	}
	if err := m.reserveErr[productID]; err != nil {
		return nil, err
	}
	m.seq++
	m.reserves = append(m.reserves, productID)
	return &models.Reservation{
		ReservationID: fmt.Sprintf("res-%d", m.seq),
		ProductID:     productID,
		BatchID:       batchID,
		Quantity:      qty,
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}, nil
}

func (m *mockInventory) UpdateReservation(_ context.Context, reservationID string, qty int) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == nil {
		m.updates = make(map[string]int)
	}
	m.updates[reservationID] = qty
	return &models.Reservation{
		ReservationID: reservationID,
		Quantity:      qty,
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}, nil
}

func (m *mockInventory) Release(_ context.Context, reservationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, reservationID)
}

// ---- mock billing ----

type mockBilling struct {
	receipt  *models.Receipt
	err      error
	payloads []models.OrderPayload
	keys     []string
}

func (m *mockBilling) Fulfill(_ context.Context, payload models.OrderPayload, idempotencyKey string) (*models.Receipt, error) {
	m.payloads = append(m.payloads, payload)
	m.keys = append(m.keys, idempotencyKey)
	if m.err != nil {
		return nil, m.err
	}
	if m.receipt != nil {
		return m.receipt, nil
	}
	return &models.Receipt{OrderID: "ord-1", Status: "fulfilled", Total: payload.Total, CreatedAt: time.Now()}, nil
}

// ---- mock submission store ----

type mockSubmissions struct {
	records map[string]*models.Receipt
	getErr  error
}

func (m *mockSubmissions) GetSubmission(_ context.Context, key string) (*models.Receipt, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.records[key], nil
}

func (m *mockSubmissions) PutSubmission(_ context.Context, key string, receipt *models.Receipt, _ time.Duration) error {
	if m.records == nil {
		m.records = make(map[string]*models.Receipt)
	}
	m.records[key] = receipt
	return nil
}

// ---- mock event publisher ----

type mockPublisher struct {
	events []models.OrderFulfilledEvent
	err    error
}

func (m *mockPublisher) PublishOrderFulfilled(event models.OrderFulfilledEvent) error {
	m.events = append(m.events, event)
	return m.err
}
