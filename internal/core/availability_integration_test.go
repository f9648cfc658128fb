package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/garystarr-surgi/wholesale-management/internal/core"

	"github.com/shopspring/decimal"
)

func TestAvailability_ReportFiltersAndOrdering(t *testing.T) {
	pool, ctx := setupTestDB(t)
	seedBaseItems(t, ctx, pool)

	_, err := pool.Exec(ctx, `
		INSERT INTO bins (item_code, warehouse, actual_qty) VALUES
		('WIDGET-A', 'MAIN', 60),
		('WIDGET-A', 'OVERFLOW', 40),
		('WIDGET-B', 'MAIN', 25),
		('GADGET-C', 'OVERFLOW', 5),
		('SVC-FEE', 'MAIN', 99),   -- not stock-tracked, must never appear
		('RETIRED', 'MAIN', 99);   -- disabled, must never appear
	`)
	if err != nil {
		t.Fatalf("Failed to seed bins: %v", err)
	}

	metrics := core.NewMetricsService(pool)
	svc := core.NewAvailabilityService(pool, metrics)

	report, err := svc.BuildReport(ctx, core.DefaultReportParams())
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}

	if len(report.Data) != 3 {
		t.Fatalf("Expected 3 rows, got %d: %+v", len(report.Data), report.Data)
	}
	for _, row := range report.Data {
		if row.ItemCode == "SVC-FEE" || row.ItemCode == "RETIRED" {
			t.Errorf("Excluded item %s appeared in report", row.ItemCode)
		}
	}

	// Brand then item name: Acme Widget Alpha, Acme Widget Beta, Bolt Gadget Gamma.
	wantOrder := []string{"WIDGET-A", "WIDGET-B", "GADGET-C"}
	for i, want := range wantOrder {
		if report.Data[i].ItemCode != want {
			t.Errorf("Row %d = %s, want %s", i, report.Data[i].ItemCode, want)
		}
	}

	// No sales, no commitments: wholesale qty equals summed on-hand.
	if !report.Data[0].QtyAvailable.Equal(decimal.NewFromInt(100)) {
		t.Errorf("WIDGET-A qty available = %s, want 100 (summed across warehouses)", report.Data[0].QtyAvailable)
	}
	if !report.Data[0].WholesaleQty.Equal(decimal.NewFromInt(100)) {
		t.Errorf("WIDGET-A wholesale qty = %s, want 100", report.Data[0].WholesaleQty)
	}

	// Offer price sentinel: WIDGET-A has a price, WIDGET-B does not.
	if !report.Data[0].LastOfferPrice.Set {
		t.Error("WIDGET-A offer price should be set")
	}
	if report.Data[1].LastOfferPrice.Set {
		t.Errorf("WIDGET-B offer price should be MO, got %s", report.Data[1].LastOfferPrice)
	}

	if report.Summary.TotalItems != 3 {
		t.Errorf("Summary total = %d, want 3", report.Summary.TotalItems)
	}
	if report.Summary.Parameters.MonthsPar != 6 {
		t.Errorf("Summary months_par = %d, want 6", report.Summary.Parameters.MonthsPar)
	}
}

func TestAvailability_WarehouseFilter(t *testing.T) {
	pool, ctx := setupTestDB(t)
	seedBaseItems(t, ctx, pool)

	_, err := pool.Exec(ctx, `
		INSERT INTO bins (item_code, warehouse, actual_qty) VALUES
		('WIDGET-A', 'MAIN', 60),
		('WIDGET-A', 'OVERFLOW', 40),
		('GADGET-C', 'OVERFLOW', 5);
	`)
	if err != nil {
		t.Fatalf("Failed to seed bins: %v", err)
	}

	svc := core.NewAvailabilityService(pool, core.NewMetricsService(pool))

	params := core.DefaultReportParams()
	params.Warehouse = "MAIN"
	report, err := svc.BuildReport(ctx, params)
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}

	if len(report.Data) != 1 {
		t.Fatalf("Expected 1 row for MAIN, got %d", len(report.Data))
	}
	if report.Data[0].ItemCode != "WIDGET-A" {
		t.Errorf("Expected WIDGET-A, got %s", report.Data[0].ItemCode)
	}
	if !report.Data[0].QtyAvailable.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Filtered qty = %s, want 60 (MAIN only)", report.Data[0].QtyAvailable)
	}
	if report.Summary.Warehouse != "MAIN" {
		t.Errorf("Summary warehouse = %q, want MAIN", report.Summary.Warehouse)
	}
}

func TestAvailability_PolicyDeficitRows(t *testing.T) {
	pool, ctx := setupTestDB(t)
	seedBaseItems(t, ctx, pool)

	// 10 on hand against a par of 5/month over the 1-month window: the
	// 6-month zero-buffer reserve is 30, leaving a deficit of 20.
	today := time.Now().Format("2006-01-02")
	_, err := pool.Exec(ctx, `
		INSERT INTO sales_invoices (name, posting_date, docstatus, is_return) VALUES
		('SINV-301', $1, 1, false)
	`, today)
	if err != nil {
		t.Fatalf("Failed to seed invoice: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO bins (item_code, warehouse, actual_qty) VALUES
		('WIDGET-A', 'MAIN', 10);

		INSERT INTO sales_invoice_items (parent, item_code, qty, base_amount, warehouse) VALUES
		('SINV-301', 'WIDGET-A', 5, 50, 'MAIN');
	`)
	if err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	svc := core.NewAvailabilityService(pool, core.NewMetricsService(pool))

	params := core.ReportParams{
		MonthsLookback: 0, // lookback date = today, divisor floors to 1
		MonthsPar:      6,
		BufferPercent:  decimal.Zero,
		Policy:         core.PolicySigned,
	}
	report, err := svc.BuildReport(ctx, params)
	if err != nil {
		t.Fatalf("BuildReport (signed) failed: %v", err)
	}
	if len(report.Data) != 1 {
		t.Fatalf("Signed policy should keep the deficit row, got %d rows", len(report.Data))
	}
	if !report.Data[0].WholesaleQty.Equal(decimal.NewFromInt(-20)) {
		t.Errorf("Signed wholesale qty = %s, want -20", report.Data[0].WholesaleQty)
	}

	params.Policy = core.PolicyClamped
	report, err = svc.BuildReport(ctx, params)
	if err != nil {
		t.Fatalf("BuildReport (clamped) failed: %v", err)
	}
	if len(report.Data) != 0 {
		t.Errorf("Clamped policy should drop the deficit row, got %d rows", len(report.Data))
	}
}

func TestAvailability_InvalidParams(t *testing.T) {
	pool, ctx := setupTestDB(t)
	svc := core.NewAvailabilityService(pool, core.NewMetricsService(pool))

	params := core.DefaultReportParams()
	params.BufferPercent = decimal.NewFromInt(-5)
	_, err := svc.BuildReport(ctx, params)
	var invalid *core.InvalidParamError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidParamError, got %v", err)
	}
	if invalid.Param != "buffer_percent" {
		t.Errorf("Param = %s, want buffer_percent", invalid.Param)
	}
}

func TestAvailability_Warehouses(t *testing.T) {
	pool, ctx := setupTestDB(t)
	seedBaseItems(t, ctx, pool)
	svc := core.NewAvailabilityService(pool, core.NewMetricsService(pool))

	warehouses, err := svc.GetWarehouses(ctx)
	if err != nil {
		t.Fatalf("GetWarehouses failed: %v", err)
	}
	if len(warehouses) != 2 {
		t.Fatalf("Expected 2 active warehouses, got %d", len(warehouses))
	}
	// Name-sorted: MAIN before OVERFLOW; the disabled OLD warehouse is absent.
	if warehouses[0].Name != "MAIN" || warehouses[1].Name != "OVERFLOW" {
		t.Errorf("Unexpected warehouse order: %+v", warehouses)
	}

	def, err := svc.GetDefaultWarehouse(ctx)
	if err != nil {
		t.Fatalf("GetDefaultWarehouse failed: %v", err)
	}
	if def.Name != "MAIN" {
		t.Errorf("Default warehouse = %s, want MAIN", def.Name)
	}
}

func TestAvailability_ItemDetail(t *testing.T) {
	pool, ctx := setupTestDB(t)
	seedBaseItems(t, ctx, pool)

	today := time.Now().Format("2006-01-02")
	_, err := pool.Exec(ctx, `
		INSERT INTO sales_invoices (name, posting_date, docstatus, is_return) VALUES
		('SINV-401', $1, 1, false)
	`, today)
	if err != nil {
		t.Fatalf("Failed to seed invoice: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO bins (item_code, warehouse, actual_qty, reserved_qty, ordered_qty, planned_qty) VALUES
		('WIDGET-A', 'MAIN', 50, 5, 10, 0);

		INSERT INTO sales_invoice_items (parent, item_code, qty, base_amount, warehouse) VALUES
		('SINV-401', 'WIDGET-A', 4, 52, 'MAIN');
	`)
	if err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	svc := core.NewAvailabilityService(pool, core.NewMetricsService(pool))

	detail, err := svc.GetItemDetail(ctx, "WIDGET-A", "MAIN", core.DefaultDetailParams())
	if err != nil {
		t.Fatalf("GetItemDetail failed: %v", err)
	}
	if detail.ItemName != "Widget Alpha" || detail.Warehouse != "MAIN" {
		t.Errorf("Unexpected detail header: %+v", detail)
	}
	if !detail.Stock.ActualQty.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Actual qty = %s, want 50", detail.Stock.ActualQty)
	}
	if !detail.AvgSalePrice.Equal(decimal.NewFromInt(13)) {
		t.Errorf("Avg sale price = %s, want 13", detail.AvgSalePrice)
	}
	if len(detail.SalesHistory) != 1 {
		t.Errorf("Expected 1 history bucket, got %d", len(detail.SalesHistory))
	}
	if detail.LookbackDays != 90 || detail.ParMonths != 6 {
		t.Errorf("Defaults not echoed: %+v", detail)
	}

	// Missing bin row: zero-filled stock, not an error.
	detail, err = svc.GetItemDetail(ctx, "GADGET-C", "MAIN", core.DefaultDetailParams())
	if err != nil {
		t.Fatalf("GetItemDetail (no bin) failed: %v", err)
	}
	if !detail.Stock.ActualQty.IsZero() || !detail.Stock.ReservedQty.IsZero() {
		t.Errorf("Expected zero-filled stock position, got %+v", detail.Stock)
	}

	// Unknown item: ErrNotFound.
	_, err = svc.GetItemDetail(ctx, "NOPE", "MAIN", core.DefaultDetailParams())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown item, got %v", err)
	}
}
