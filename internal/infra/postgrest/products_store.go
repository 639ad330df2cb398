package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kvasquez/receiptguard/internal/domain"
)

// ============================================================
// Products store — catalog reads for investment analysis
// ============================================================

type productRow struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	Stock      int     `json:"stock"`
	Active     bool    `json:"active"`
	CategoryID string  `json:"category_id"`
}

// ListProducts fetches the product catalog. Inactive products are included;
// the analyzer decides what to do with them.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.ListProducts")
	defer span.End()

	var products []domain.Product

	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, "products?order=name.asc")
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			products = []domain.Product{}
			return nil
		}

		var rows []productRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode products: %w", err)
		}

		products = make([]domain.Product, 0, len(rows))
		for _, r := range rows {
			products = append(products, domain.Product{
				ID:         r.ID,
				Name:       r.Name,
				Price:      r.Price,
				Cost:       r.Cost,
				Stock:      r.Stock,
				Active:     r.Active,
				CategoryID: r.CategoryID,
			})
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/products", Err: err}
	}

	return products, nil
}
