package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReportParams are the inputs of a full availability report run.
type ReportParams struct {
	MonthsLookback int             // window for the par-level average
	MonthsPar      int             // months of par to hold in reserve
	BufferPercent  decimal.Decimal // extra safety margin on the reserve
	Warehouse      string          // empty = sum across all warehouses
	Policy         SurplusPolicy
}

// DefaultReportParams returns the standard report configuration:
// 3-month lookback, 6 months of par, 10% buffer, signed policy.
func DefaultReportParams() ReportParams {
	return ReportParams{
		MonthsLookback: 3,
		MonthsPar:      6,
		BufferPercent:  decimal.NewFromInt(10),
		Policy:         PolicySigned,
	}
}

// Validate rejects parameter combinations that would produce nonsensical
// reserves instead of silently computing them.
func (p ReportParams) Validate() error {
	if p.MonthsLookback < 0 {
		return &InvalidParamError{Param: "months_lookback", Value: fmt.Sprint(p.MonthsLookback), Reason: "must not be negative"}
	}
	if p.MonthsPar < 0 {
		return &InvalidParamError{Param: "months_par", Value: fmt.Sprint(p.MonthsPar), Reason: "must not be negative"}
	}
	if p.BufferPercent.IsNegative() {
		return &InvalidParamError{Param: "buffer_percent", Value: p.BufferPercent.String(), Reason: "must not be negative"}
	}
	if p.Policy != PolicySigned && p.Policy != PolicyClamped {
		return &InvalidParamError{Param: "policy", Value: string(p.Policy), Reason: "must be signed or clamped"}
	}
	return nil
}

// DetailParams are the inputs of a single-item drill-down.
type DetailParams struct {
	LookbackDays  int
	MonthsPar     int
	BufferPercent decimal.Decimal
	HistoryMonths int
}

// DefaultDetailParams returns the drill-down defaults: 90-day lookback,
// 6 months of par, 10% buffer, 12 months of history.
func DefaultDetailParams() DetailParams {
	return DetailParams{
		LookbackDays:  90,
		MonthsPar:     6,
		BufferPercent: decimal.NewFromInt(10),
		HistoryMonths: 12,
	}
}

func (p DetailParams) Validate() error {
	if p.LookbackDays < 0 {
		return &InvalidParamError{Param: "lookback_days", Value: fmt.Sprint(p.LookbackDays), Reason: "must not be negative"}
	}
	if p.MonthsPar < 0 {
		return &InvalidParamError{Param: "months_par", Value: fmt.Sprint(p.MonthsPar), Reason: "must not be negative"}
	}
	if p.BufferPercent.IsNegative() {
		return &InvalidParamError{Param: "buffer_percent", Value: p.BufferPercent.String(), Reason: "must not be negative"}
	}
	if p.HistoryMonths < 1 {
		return &InvalidParamError{Param: "history_months", Value: fmt.Sprint(p.HistoryMonths), Reason: "must be at least 1"}
	}
	return nil
}

// AvailabilityService builds the wholesale availability report and its
// single-item drill-down. Read-only over the ERP schema.
type AvailabilityService interface {
	// BuildReport returns one row per stock-tracked, enabled item with
	// positive on-hand quantity, ordered by brand then item name. Row
	// filtering follows params.Policy.
	BuildReport(ctx context.Context, params ReportParams) (*AvailabilityReport, error)

	// GetWarehouses returns all active warehouses, name-sorted.
	GetWarehouses(ctx context.Context) ([]Warehouse, error)

	// GetDefaultWarehouse returns the first active warehouse by name.
	GetDefaultWarehouse(ctx context.Context) (*Warehouse, error)

	// GetItemDetail returns the drill-down for one item in one warehouse.
	// Unknown item codes fail with ErrNotFound; a missing bin row is
	// reported as a zero stock position.
	GetItemDetail(ctx context.Context, itemCode, warehouse string, params DetailParams) (*ItemDetail, error)
}

type availabilityService struct {
	pool    *pgxpool.Pool
	metrics MetricsService
}

// NewAvailabilityService constructs an AvailabilityService backed by the
// given pool and metrics.
func NewAvailabilityService(pool *pgxpool.Pool, metrics MetricsService) AvailabilityService {
	return &availabilityService{pool: pool, metrics: metrics}
}

// candidateItem is one row of the candidate query: an enabled, stock-tracked
// item with its summed (or warehouse-filtered) on-hand quantity.
type candidateItem struct {
	code         string
	name         string
	brand        string
	group        string
	offerPrice   decimal.NullDecimal
	qtyAvailable decimal.Decimal
}

func (s *availabilityService) fetchCandidates(ctx context.Context, warehouse string) ([]candidateItem, error) {
	q := `
		SELECT i.code, i.name, COALESCE(i.brand, ''), COALESCE(i.item_group, ''),
		       i.wholesale_offer_price,
		       COALESCE(SUM(b.actual_qty), 0) AS qty_available
		FROM items i
		LEFT JOIN bins b ON b.item_code = i.code`

	var args []any
	if warehouse != "" {
		args = append(args, warehouse)
		q += " AND b.warehouse = $1"
	}
	q += `
		WHERE i.disabled = false
		  AND i.is_stock_item = true
		GROUP BY i.code, i.name, i.brand, i.item_group, i.wholesale_offer_price
		HAVING COALESCE(SUM(b.actual_qty), 0) > 0
		ORDER BY COALESCE(i.brand, ''), i.name`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate items: %w", err)
	}
	defer rows.Close()

	var items []candidateItem
	for rows.Next() {
		var c candidateItem
		if err := rows.Scan(&c.code, &c.name, &c.brand, &c.group, &c.offerPrice, &c.qtyAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan candidate item: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidate item iteration error: %w", err)
	}
	return items, nil
}

func offerPriceFromNull(d decimal.NullDecimal) OfferPrice {
	if !d.Valid {
		return MakeOffer()
	}
	return PricedOffer(d.Decimal)
}

func (s *availabilityService) BuildReport(ctx context.Context, params ReportParams) (*AvailabilityReport, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	lookbackDate := time.Now().AddDate(0, 0, -params.MonthsLookback*30)

	candidates, err := s.fetchCandidates(ctx, params.Warehouse)
	if err != nil {
		return nil, err
	}

	report := &AvailabilityReport{
		Data: []AvailabilityRow{},
		Summary: ReportSummary{
			GeneratedAt: time.Now(),
			Warehouse:   params.Warehouse,
			Parameters: ReportParameters{
				MonthsLookback: params.MonthsLookback,
				MonthsPar:      params.MonthsPar,
				BufferPercent:  params.BufferPercent,
				Policy:         params.Policy,
			},
		},
	}

	for _, c := range candidates {
		parLevel, err := s.metrics.ParLevel(ctx, c.code, lookbackDate)
		if err != nil {
			return nil, err
		}
		onHold, err := s.metrics.OnHoldQty(ctx, c.code)
		if err != nil {
			return nil, err
		}

		wholesaleQty, keep := params.Policy.Apply(
			WholesaleQty(c.qtyAvailable, onHold, parLevel, params.MonthsPar, params.BufferPercent))
		if !keep {
			continue
		}

		avgPrice, err := s.metrics.AvgSalePrice(ctx, c.code, lookbackDate, params.Warehouse)
		if err != nil {
			return nil, err
		}
		lastCost, err := s.metrics.LastPurchasePrice(ctx, c.code, params.Warehouse)
		if err != nil {
			return nil, err
		}

		report.Data = append(report.Data, AvailabilityRow{
			Brand:             c.brand,
			ItemCode:          c.code,
			ItemName:          c.name,
			ItemGroup:         c.group,
			WholesaleQty:      wholesaleQty.Round(0),
			LastOfferPrice:    offerPriceFromNull(c.offerPrice),
			QtyAvailable:      c.qtyAvailable,
			OnHold:            onHold,
			ParLevel:          parLevel.Round(2),
			AvgSalePrice:      avgPrice.Round(2),
			LastPurchasePrice: lastCost.Round(2),
			ParMonths:         params.MonthsPar,
			BufferPercent:     params.BufferPercent,
		})
	}

	report.Summary.TotalItems = len(report.Data)
	return report, nil
}

func (s *availabilityService) GetWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, warehouse_name
		FROM warehouses
		WHERE disabled = false
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.Name, &w.WarehouseName); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse iteration error: %w", err)
	}
	return warehouses, nil
}

func (s *availabilityService) GetDefaultWarehouse(ctx context.Context) (*Warehouse, error) {
	var w Warehouse
	err := s.pool.QueryRow(ctx, `
		SELECT name, warehouse_name
		FROM warehouses
		WHERE disabled = false
		ORDER BY name
		LIMIT 1
	`).Scan(&w.Name, &w.WarehouseName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no active warehouse: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch default warehouse: %w", err)
	}
	return &w, nil
}

func (s *availabilityService) GetItemDetail(ctx context.Context, itemCode, warehouse string, params DetailParams) (*ItemDetail, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var (
		name, brand, group string
		offerPrice         decimal.NullDecimal
	)
	err := s.pool.QueryRow(ctx, `
		SELECT name, COALESCE(brand, ''), COALESCE(item_group, ''), wholesale_offer_price
		FROM items
		WHERE code = $1
	`, itemCode).Scan(&name, &brand, &group, &offerPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", itemCode, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", itemCode, err)
	}

	var stock StockPosition
	err = s.pool.QueryRow(ctx, `
		SELECT actual_qty, reserved_qty, ordered_qty, planned_qty
		FROM bins
		WHERE item_code = $1 AND warehouse = $2
	`, itemCode, warehouse).Scan(&stock.ActualQty, &stock.ReservedQty, &stock.OrderedQty, &stock.PlannedQty)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to fetch stock position for %s in %s: %w", itemCode, warehouse, err)
	}
	// No bin row means no stock recorded in this warehouse; keep zeros.

	lookbackDate := time.Now().AddDate(0, 0, -params.LookbackDays)

	parLevel, err := s.metrics.ParLevel(ctx, itemCode, lookbackDate)
	if err != nil {
		return nil, err
	}
	onHold, err := s.metrics.OnHoldQty(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	avgPrice, err := s.metrics.AvgSalePrice(ctx, itemCode, lookbackDate, warehouse)
	if err != nil {
		return nil, err
	}
	lastCost, err := s.metrics.LastPurchasePrice(ctx, itemCode, warehouse)
	if err != nil {
		return nil, err
	}
	history, err := s.metrics.SalesHistory(ctx, itemCode, params.HistoryMonths)
	if err != nil {
		return nil, err
	}

	wholesaleQty := WholesaleQty(stock.ActualQty, onHold, parLevel, params.MonthsPar, params.BufferPercent)

	return &ItemDetail{
		ItemCode:          itemCode,
		ItemName:          name,
		Brand:             brand,
		ItemGroup:         group,
		Warehouse:         warehouse,
		Stock:             stock,
		ParLevel:          parLevel.Round(2),
		OnHold:            onHold,
		WholesaleQty:      wholesaleQty.Round(0),
		AvgSalePrice:      avgPrice.Round(2),
		LastPurchasePrice: lastCost.Round(2),
		LastOfferPrice:    offerPriceFromNull(offerPrice),
		SalesHistory:      history,
		LookbackDays:      params.LookbackDays,
		ParMonths:         params.MonthsPar,
		BufferPercent:     params.BufferPercent,
	}, nil
}
