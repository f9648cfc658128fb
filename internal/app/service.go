package app

import (
	"context"

	"github.com/garystarr-surgi/wholesale-management/internal/core"
)

// ApplicationService is the single interface all transport adapters call.
// It decouples presentation from the core services; implementations contain
// no HTTP types and no display logic.
type ApplicationService interface {
	// GetWholesaleAvailability builds the full availability report.
	GetWholesaleAvailability(ctx context.Context, params core.ReportParams) (*core.AvailabilityReport, error)

	// ListWarehouses returns all active warehouses, name-sorted.
	ListWarehouses(ctx context.Context) (*WarehouseListResult, error)

	// GetItemWholesaleDetail returns the drill-down for one item. An empty
	// warehouse resolves to the default warehouse (DEFAULT_WAREHOUSE env var
	// if set, otherwise the first active warehouse).
	GetItemWholesaleDetail(ctx context.Context, itemCode, warehouse string, params core.DetailParams) (*core.ItemDetail, error)

	// UpdateOfferPrices applies a bulk offer-price update with per-row error
	// capture.
	UpdateOfferPrices(ctx context.Context, updates []core.OfferPriceUpdate) (*core.OfferPriceUpdateResult, error)
}
