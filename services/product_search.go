package services

import (
	"context"
	"sync"
	"time"

	"pos-service/models"
)

// TypeaheadSearcher serializes search-as-you-type for one register session.
// Each new query cancels the in-flight one, and the actual lookup only goes
// out after a short debounce window, so a fast typist costs one upstream
// call instead of one per keystroke. A canceled search returns no results
// and no error.
type TypeaheadSearcher struct {
	catalog  Catalog
	debounce time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewTypeaheadSearcher(catalog Catalog, debounce time.Duration) *TypeaheadSearcher {
	return &TypeaheadSearcher{catalog: catalog, debounce: debounce}
}

// Search runs a debounced product search, superseding any search still in
// flight for this session.
func (t *TypeaheadSearcher) Search(ctx context.Context, q string) ([]models.Product, error) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	select {
	case <-time.After(t.debounce):
	case <-ctx.Done():
		return nil, nil
	}

	products, err := t.catalog.SearchProducts(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			// Superseded by a newer keystroke, not a failure.
			return nil, nil
		}
		return nil, err
	}
	return products, nil
}
