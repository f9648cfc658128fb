package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OfferPriceUpdate is one row of a bulk offer-price update. OfferPrice is
// kept raw so a malformed value fails that row alone, not the whole batch.
type OfferPriceUpdate struct {
	ItemCode   string          `json:"item_code"`
	OfferPrice json.RawMessage `json:"offer_price"`
}

// UpdateError records one failed row of a bulk update, keyed by item code.
type UpdateError struct {
	ItemCode string `json:"item_code"`
	Error    string `json:"error"`
}

// OfferPriceUpdateResult reports the outcome of a bulk update. Success is
// true only when every attempted row succeeded; skipped rows (empty item
// code) count neither way.
type OfferPriceUpdateResult struct {
	Success      bool          `json:"success"`
	UpdatedCount int           `json:"updated_count"`
	Errors       []UpdateError `json:"errors"`
}

// PricingService is the one write path of this module: it sets the
// wholesale_offer_price field on item records.
type PricingService interface {
	// UpdateOfferPrices applies each row independently. Rows with an empty
	// item code are skipped silently; a failed row is recorded and the batch
	// continues. Successful rows commit together at the end.
	UpdateOfferPrices(ctx context.Context, updates []OfferPriceUpdate) (*OfferPriceUpdateResult, error)
}

type pricingService struct {
	pool *pgxpool.Pool
}

// NewPricingService constructs a PricingService backed by the given pool.
func NewPricingService(pool *pgxpool.Pool) PricingService {
	return &pricingService{pool: pool}
}

func (s *pricingService) UpdateOfferPrices(ctx context.Context, updates []OfferPriceUpdate) (*OfferPriceUpdateResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &OfferPriceUpdateResult{Errors: []UpdateError{}}

	for _, u := range updates {
		if u.ItemCode == "" {
			continue
		}

		var price OfferPrice
		if len(u.OfferPrice) > 0 {
			if err := json.Unmarshal(u.OfferPrice, &price); err != nil {
				result.Errors = append(result.Errors, UpdateError{ItemCode: u.ItemCode, Error: err.Error()})
				continue
			}
		}

		var value any
		if price.Set {
			value = price.Amount
		}

		// Per-row savepoint: a failed UPDATE must not poison the outer
		// transaction for the remaining rows.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create savepoint for %s: %w", u.ItemCode, err)
		}

		tag, err := sp.Exec(ctx,
			"UPDATE items SET wholesale_offer_price = $1 WHERE code = $2",
			value, u.ItemCode,
		)
		if err != nil {
			_ = sp.Rollback(ctx)
			result.Errors = append(result.Errors, UpdateError{ItemCode: u.ItemCode, Error: err.Error()})
			continue
		}
		if tag.RowsAffected() == 0 {
			_ = sp.Rollback(ctx)
			result.Errors = append(result.Errors, UpdateError{ItemCode: u.ItemCode, Error: fmt.Sprintf("item %s not found", u.ItemCode)})
			continue
		}

		if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to release savepoint for %s: %w", u.ItemCode, err)
		}
		result.UpdatedCount++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit offer price updates: %w", err)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}
