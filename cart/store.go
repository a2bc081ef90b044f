package cart

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"pos-service/models"
)

// Store holds the order lines of one register session. It is the only way
// cart state may be mutated; merge and clamp rules live here so they hold on
// every path. One store exists per session, never globally.
type Store struct {
	mu    sync.Mutex
	lines []models.CartLine

	// onChange receives a copy of the lines after every mutation
	// (persistence hook, best-effort).
	onChange func(lines []models.CartLine)

	// onRelease is invoked fire-and-forget for each reservation dropped by
	// Remove or Clear.
	onRelease func(reservationID string)
}

func NewStore(onChange func([]models.CartLine), onRelease func(string)) *Store {
	return &Store{onChange: onChange, onRelease: onRelease}
}

// NormalizeQuantity floors fractional input and clamps to a minimum of 1.
// Quantities are never zero or negative.
func NormalizeQuantity(qty float64) int {
	n := int(math.Floor(qty))
	if n < 1 {
		return 1
	}
	return n
}

// Add inserts a line, or merges its quantity into an existing line with the
// same (product, batch, prescription line) key. Lines without an id get one
// assigned.
func (s *Store) Add(line models.CartLine) models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	if line.Quantity < 1 {
		line.Quantity = 1
	}

	key := line.Key()
	for i, existing := range s.lines {
		if existing.Key() == key {
			s.lines[i].Quantity += line.Quantity
			s.notifyLocked()
			return s.lines[i]
		}
	}

	s.lines = append(s.lines, line)
	s.notifyLocked()
	return line
}

// LinePatch is a partial update of a cart line. Nil fields are left as-is.
type LinePatch struct {
	Quantity       *float64
	DiscountAmount *float64
}

// Update applies a patch to the line with the given id. Quantity input is
// floored and clamped to >= 1. Returns false if no such line exists.
func (s *Store) Update(id string, patch LinePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ID != id {
			continue
		}
		if patch.Quantity != nil {
			s.lines[i].Quantity = NormalizeQuantity(*patch.Quantity)
		}
		if patch.DiscountAmount != nil {
			d := *patch.DiscountAmount
			if d < 0 {
				d = 0
			}
			s.lines[i].DiscountAmount = d
		}
		s.notifyLocked()
		return true
	}
	return false
}

// SetQuantity replaces the line's quantity, clamped to >= 1.
func (s *Store) SetQuantity(id string, qty int) bool {
	q := float64(qty)
	return s.Update(id, LinePatch{Quantity: &q})
}

// SetReservation attaches or replaces the reservation backing a line.
func (s *Store) SetReservation(id, reservationID string, expiresAt *time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines[i].ReservationID = reservationID
			s.lines[i].ReservationExpiresAt = expiresAt
			s.notifyLocked()
			return true
		}
	}
	return false
}

// ClearReservation marks a line unbacked.
func (s *Store) ClearReservation(id string) bool {
	return s.SetReservation(id, "", nil)
}

// Remove deletes the line. A held reservation is released fire-and-forget
// before the line leaves state.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range s.lines {
		if line.ID != id {
			continue
		}
		if line.ReservationID != "" && s.onRelease != nil {
			s.onRelease(line.ReservationID)
		}
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
		s.notifyLocked()
		return true
	}
	return false
}

// Clear empties the cart, releasing every held reservation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range s.lines {
		if line.ReservationID != "" && s.onRelease != nil {
			s.onRelease(line.ReservationID)
		}
	}
	s.lines = nil
	s.notifyLocked()
}

// Reset empties the cart without releasing reservations. Used after a
// successful checkout, where the server has consumed the holds.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.notifyLocked()
}

// Replace swaps in a full set of lines without side effects. Used when
// hydrating a session from its persisted snapshot.
func (s *Store) Replace(lines []models.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append([]models.CartLine(nil), lines...)
}

// Snapshot returns a copy of the lines and totals derived from them.
// Totals are recomputed on every call, never cached.
func (s *Store) Snapshot() ([]models.CartLine, models.Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := append([]models.CartLine(nil), s.lines...)
	return lines, models.ComputeTotals(lines)
}

// ReservationIDs returns the ids of all reservations currently backing
// lines. Used by the shutdown release sweep.
func (s *Store) ReservationIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, line := range s.lines {
		if line.ReservationID != "" {
			ids = append(ids, line.ReservationID)
		}
	}
	return ids
}

func (s *Store) notifyLocked() {
	if s.onChange != nil {
		s.onChange(append([]models.CartLine(nil), s.lines...))
	}
}
