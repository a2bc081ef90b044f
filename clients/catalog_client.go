package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pos-service/models"
)

// CatalogClient reads products, batches, stock levels and medication-name
// normalizations from the ERP backend.
type CatalogClient struct {
	baseURL string
	client  *http.Client
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// SearchProducts runs a free-text product search.
func (c *CatalogClient) SearchProducts(ctx context.Context, q string) ([]models.Product, error) {
	var out []models.Product
	query := url.Values{"q": {q}}
	if err := doJSON(ctx, c.client, http.MethodGet, c.baseURL+"/products", query, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("product search: %w", err)
	}
	return out, nil
}

// GetProduct fetches one product by id.
func (c *CatalogClient) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var out models.Product
	if err := doJSON(ctx, c.client, http.MethodGet, c.baseURL+"/products/"+url.PathEscape(id), nil, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	return &out, nil
}

// GetBatches lists the stock batches of a product.
func (c *CatalogClient) GetBatches(ctx context.Context, productID string) ([]models.Batch, error) {
	var out []models.Batch
	if err := doJSON(ctx, c.client, http.MethodGet, c.baseURL+"/products/"+url.PathEscape(productID)+"/batches", nil, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("batch list: %w", err)
	}
	return out, nil
}

// NormalizeMedication resolves a free-text medication name to candidate
// product ids, highest confidence first.
func (c *CatalogClient) NormalizeMedication(ctx context.Context, q string) ([]string, error) {
	var out []struct {
		ProductID string `json:"product_id"`
	}
	query := url.Values{"q": {q}}
	if err := doJSON(ctx, c.client, http.MethodGet, c.baseURL+"/medications/normalize", query, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("medication normalize: %w", err)
	}
	ids := make([]string, 0, len(out))
	for _, r := range out {
		if r.ProductID != "" {
			ids = append(ids, r.ProductID)
		}
	}
	return ids, nil
}

// GetStock returns the live available quantity for a product/batch pair.
func (c *CatalogClient) GetStock(ctx context.Context, productID, batchID string) (int, error) {
	var out struct {
		AvailableQty int `json:"available_qty"`
	}
	query := url.Values{"product_id": {productID}}
	if batchID != "" {
		query.Set("batch_id", batchID)
	}
	if err := doJSON(ctx, c.client, http.MethodGet, c.baseURL+"/stock", query, nil, nil, &out); err != nil {
		return 0, fmt.Errorf("stock query: %w", err)
	}
	return out.AvailableQty, nil
}
