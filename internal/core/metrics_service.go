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

// MetricsService computes the per-item sales and commitment metrics the
// availability report is built from. Every method is a single aggregation
// query over the ERP schema plus arithmetic; nothing is cached.
type MetricsService interface {
	// ParLevel returns the average monthly sell-through rate: total posted,
	// non-return sales quantity on/after lookbackDate divided by the number
	// of elapsed calendar months (floored to 1).
	ParLevel(ctx context.Context, itemCode string, lookbackDate time.Time) (decimal.Decimal, error)

	// OnHoldQty returns demand already earmarked against inventory: the
	// outstanding quantity of open sales-order lines plus the full quantity
	// of open quotation lines.
	OnHoldQty(ctx context.Context, itemCode string) (decimal.Decimal, error)

	// AvgSalePrice returns the quantity-weighted average per-unit pre-tax
	// price over posted, non-return sales lines on/after lookbackDate,
	// optionally restricted to one warehouse (empty = all).
	// Returns zero when no quantity was sold.
	AvgSalePrice(ctx context.Context, itemCode string, lookbackDate time.Time, warehouse string) (decimal.Decimal, error)

	// LastPurchasePrice returns the per-unit rate of the most recent posted
	// purchase-receipt line for the item, optionally restricted to one
	// warehouse. Ties on posting date break on record creation time.
	// Returns zero when the item was never received.
	LastPurchasePrice(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error)

	// SalesHistory returns calendar-month buckets of quantity sold and
	// distinct invoice count, most recent month first, at most months
	// buckets. Months with no sales are omitted, not zero-filled.
	SalesHistory(ctx context.Context, itemCode string, months int) ([]MonthlySales, error)
}

type metricsService struct {
	pool *pgxpool.Pool
}

// NewMetricsService constructs a MetricsService backed by the given pool.
func NewMetricsService(pool *pgxpool.Pool) MetricsService {
	return &metricsService{pool: pool}
}

// MonthsBetween returns the calendar year/month difference between from and
// to, floored to a minimum of 1 so it is always safe as a divisor. The
// difference is not day-accurate: Jan 31 to Feb 1 counts as one month.
func MonthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months < 1 {
		months = 1
	}
	return months
}

// WholesaleQty returns the signed surplus available for wholesale:
//
//	qtyAvailable - onHold - parLevel × monthsPar × (1 + bufferPercent/100)
//
// Negative results mean the item is already short of its protective reserve.
// Row-level clamping and filtering is the caller's concern (SurplusPolicy).
func WholesaleQty(qtyAvailable, onHold, parLevel decimal.Decimal, monthsPar int, bufferPercent decimal.Decimal) decimal.Decimal {
	buffer := decimal.NewFromInt(1).Add(bufferPercent.Div(decimal.NewFromInt(100)))
	reserve := parLevel.Mul(decimal.NewFromInt(int64(monthsPar))).Mul(buffer)
	return qtyAvailable.Sub(onHold).Sub(reserve)
}

// Apply resolves a signed wholesale quantity under the policy. It returns the
// quantity to report and whether the row is kept at all.
func (p SurplusPolicy) Apply(qty decimal.Decimal) (decimal.Decimal, bool) {
	if p == PolicyClamped && !qty.IsPositive() {
		return decimal.Zero, false
	}
	return qty, true
}

func (s *metricsService) ParLevel(ctx context.Context, itemCode string, lookbackDate time.Time) (decimal.Decimal, error) {
	var totalQty decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(sii.qty), 0)
		FROM sales_invoice_items sii
		JOIN sales_invoices si ON si.name = sii.parent
		WHERE sii.item_code = $1
		  AND si.docstatus = 1
		  AND si.is_return = false
		  AND si.posting_date >= $2::date
	`, itemCode, lookbackDate).Scan(&totalQty)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query sales total for %s: %w", itemCode, err)
	}

	months := MonthsBetween(lookbackDate, time.Now())
	return totalQty.Div(decimal.NewFromInt(int64(months))), nil
}

func (s *metricsService) OnHoldQty(ctx context.Context, itemCode string) (decimal.Decimal, error) {
	// Outstanding sales-order lines: ordered minus delivered, positive only,
	// on posted orders that are still live.
	var onHoldSO decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(soi.qty - soi.delivered_qty), 0)
		FROM sales_order_items soi
		JOIN sales_orders so ON so.name = soi.parent
		WHERE soi.item_code = $1
		  AND so.docstatus = 1
		  AND so.status NOT IN ('Closed', 'Completed', 'Cancelled')
		  AND (soi.qty - soi.delivered_qty) > 0
	`, itemCode).Scan(&onHoldSO)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query sales order commitments for %s: %w", itemCode, err)
	}

	// Open quotations count at full line quantity.
	var onHoldQuot decimal.Decimal
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(qi.qty), 0)
		FROM quotation_items qi
		JOIN quotations q ON q.name = qi.parent
		WHERE qi.item_code = $1
		  AND q.docstatus = 1
		  AND q.status NOT IN ('Lost', 'Cancelled', 'Ordered')
	`, itemCode).Scan(&onHoldQuot)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query quotation commitments for %s: %w", itemCode, err)
	}

	return onHoldSO.Add(onHoldQuot), nil
}

func (s *metricsService) AvgSalePrice(ctx context.Context, itemCode string, lookbackDate time.Time, warehouse string) (decimal.Decimal, error) {
	q := `
		SELECT COALESCE(SUM(sii.base_amount), 0),
		       COALESCE(SUM(sii.qty), 0)
		FROM sales_invoice_items sii
		JOIN sales_invoices si ON si.name = sii.parent
		WHERE sii.item_code = $1
		  AND si.docstatus = 1
		  AND si.is_return = false
		  AND si.posting_date >= $2::date
		  AND sii.qty > 0`

	args := []any{itemCode, lookbackDate}
	if warehouse != "" {
		args = append(args, warehouse)
		q += fmt.Sprintf(" AND sii.warehouse = $%d", len(args))
	}

	var totalAmount, totalQty decimal.Decimal
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&totalAmount, &totalQty); err != nil {
		return decimal.Zero, fmt.Errorf("failed to query sale price aggregate for %s: %w", itemCode, err)
	}

	if !totalQty.IsPositive() {
		return decimal.Zero, nil
	}
	// Quantity-weighted per-unit price. Averaging the per-line rate would
	// overweight small lines.
	return totalAmount.Div(totalQty), nil
}

func (s *metricsService) LastPurchasePrice(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error) {
	q := `
		SELECT pri.rate
		FROM purchase_receipt_items pri
		JOIN purchase_receipts pr ON pr.name = pri.parent
		WHERE pri.item_code = $1
		  AND pr.docstatus = 1`

	args := []any{itemCode}
	if warehouse != "" {
		args = append(args, warehouse)
		q += fmt.Sprintf(" AND pri.warehouse = $%d", len(args))
	}
	q += " ORDER BY pr.posting_date DESC, pr.creation DESC LIMIT 1"

	var rate decimal.Decimal
	err := s.pool.QueryRow(ctx, q, args...).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query last purchase price for %s: %w", itemCode, err)
	}
	return rate, nil
}

func (s *metricsService) SalesHistory(ctx context.Context, itemCode string, months int) ([]MonthlySales, error) {
	if months < 1 {
		return nil, &InvalidParamError{Param: "months", Value: fmt.Sprint(months), Reason: "must be at least 1"}
	}

	startDate := time.Now().AddDate(0, 0, -months*30)

	// The 30-day window can straddle one extra calendar month; the LIMIT
	// keeps the bucket count at the requested number.
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(si.posting_date, 'YYYY-MM') AS month,
		       COALESCE(SUM(sii.qty), 0),
		       COUNT(DISTINCT si.name)
		FROM sales_invoice_items sii
		JOIN sales_invoices si ON si.name = sii.parent
		WHERE sii.item_code = $1
		  AND si.docstatus = 1
		  AND si.is_return = false
		  AND si.posting_date >= $2::date
		GROUP BY to_char(si.posting_date, 'YYYY-MM')
		ORDER BY month DESC
		LIMIT $3
	`, itemCode, startDate, months)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales history for %s: %w", itemCode, err)
	}
	defer rows.Close()

	var history []MonthlySales
	for rows.Next() {
		var m MonthlySales
		if err := rows.Scan(&m.Month, &m.QtySold, &m.InvoiceCount); err != nil {
			return nil, fmt.Errorf("failed to scan sales history row: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sales history row iteration error: %w", err)
	}
	return history, nil
}
