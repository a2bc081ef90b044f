package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-service/cart"
	"pos-service/models"
	"pos-service/services"
)

// CartPersistence is the slice of the cart repository sessions need.
type CartPersistence interface {
	LoadSnapshot(ctx context.Context, registerID string) []models.CartLine
	SaveSnapshot(ctx context.Context, registerID string, lines []models.CartLine) error
	DeleteSnapshot(ctx context.Context, registerID string) error
}

// Session is the checkout state of one register: its cart store, its
// typeahead searcher and whatever prescription-import report is pending.
// The cart store is owned here and passed by reference to whoever needs it;
// there is no ambient global cart.
type Session struct {
	RegisterID string
	Store      *cart.Store
	Searcher   *services.TypeaheadSearcher

	mu           sync.Mutex
	importReport string
}

// SetImportReport holds the aggregated message of the last prescription
// import for the clerk to review.
func (s *Session) SetImportReport(report string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importReport = report
}

// ImportReport returns the pending import report, if any.
func (s *Session) ImportReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.importReport
}

// ClearImportState drops held prescription-import state after a successful
// checkout.
func (s *Session) ClearImportState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importReport = ""
}

// Manager lazily creates per-register sessions, hydrating each cart from
// its persisted snapshot so a terminal restart does not lose the order in
// progress.
type Manager struct {
	repo      CartPersistence
	catalog   services.Catalog
	inventory services.Inventory
	debounce  time.Duration
	log       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(repo CartPersistence, catalog services.Catalog, inventory services.Inventory, debounce time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		repo:      repo,
		catalog:   catalog,
		inventory: inventory,
		debounce:  debounce,
		log:       log,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the session for a register, creating and hydrating it on
// first touch.
func (m *Manager) Session(registerID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[registerID]; ok {
		return s
	}

	store := cart.NewStore(
		func(lines []models.CartLine) {
			// Best-effort persistence; a write failure never reaches the
			// mutation path. An emptied cart drops its key rather than
			// storing an empty list.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			var err error
			if len(lines) == 0 {
				err = m.repo.DeleteSnapshot(ctx, registerID)
			} else {
				err = m.repo.SaveSnapshot(ctx, registerID, lines)
			}
			if err != nil {
				m.log.Warn("cart snapshot write failed",
					zap.String("register_id", registerID), zap.Error(err))
			}
		},
		func(reservationID string) {
			go m.inventory.Release(context.Background(), reservationID)
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if lines := m.repo.LoadSnapshot(ctx, registerID); len(lines) > 0 {
		store.Replace(lines)
		m.log.Info("cart session restored",
			zap.String("register_id", registerID), zap.Int("lines", len(lines)))
	}

	s := &Session{
		RegisterID: registerID,
		Store:      store,
		Searcher:   services.NewTypeaheadSearcher(m.catalog, m.debounce),
	}
	m.sessions[registerID] = s
	return s
}

// LiveReservationIDs collects the reservation ids of every session, for the
// teardown release sweep.
func (m *Manager) LiveReservationIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, s := range m.sessions {
		ids = append(ids, s.Store.ReservationIDs()...)
	}
	return ids
}
