package app

import (
	"context"
	"os"

	"github.com/garystarr-surgi/wholesale-management/internal/core"
)

type appService struct {
	availability core.AvailabilityService
	pricing      core.PricingService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(availability core.AvailabilityService, pricing core.PricingService) ApplicationService {
	return &appService{
		availability: availability,
		pricing:      pricing,
	}
}

func (s *appService) GetWholesaleAvailability(ctx context.Context, params core.ReportParams) (*core.AvailabilityReport, error) {
	return s.availability.BuildReport(ctx, params)
}

func (s *appService) ListWarehouses(ctx context.Context) (*WarehouseListResult, error) {
	warehouses, err := s.availability.GetWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	return &WarehouseListResult{Warehouses: warehouses, Count: len(warehouses)}, nil
}

func (s *appService) GetItemWholesaleDetail(ctx context.Context, itemCode, warehouse string, params core.DetailParams) (*core.ItemDetail, error) {
	if warehouse == "" {
		resolved, err := s.resolveDefaultWarehouse(ctx)
		if err != nil {
			return nil, err
		}
		warehouse = resolved
	}
	return s.availability.GetItemDetail(ctx, itemCode, warehouse, params)
}

func (s *appService) UpdateOfferPrices(ctx context.Context, updates []core.OfferPriceUpdate) (*core.OfferPriceUpdateResult, error) {
	return s.pricing.UpdateOfferPrices(ctx, updates)
}

// resolveDefaultWarehouse uses the DEFAULT_WAREHOUSE env var if set;
// otherwise falls back to the first active warehouse in the store.
func (s *appService) resolveDefaultWarehouse(ctx context.Context) (string, error) {
	if wh := os.Getenv("DEFAULT_WAREHOUSE"); wh != "" {
		return wh, nil
	}
	w, err := s.availability.GetDefaultWarehouse(ctx)
	if err != nil {
		return "", err
	}
	return w.Name, nil
}
