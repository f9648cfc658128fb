package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MakeOfferSentinel is rendered in place of a price when no wholesale offer
// price has been recorded for an item.
const MakeOfferSentinel = "MO"

// Item is an ERP item master record. Read-only here except for OfferPrice,
// which the bulk price updater writes back.
type Item struct {
	Code        string
	Name        string
	Brand       string
	Group       string
	IsStockItem bool
	Disabled    bool
	OfferPrice  OfferPrice
}

// Warehouse is an active storage location in the ERP.
type Warehouse struct {
	Name          string `json:"name"`
	WarehouseName string `json:"warehouse_name"`
}

// StockPosition is one bin row: stock figures for an item in one warehouse.
// A zero value stands in for a missing bin (no stock recorded).
type StockPosition struct {
	ActualQty   decimal.Decimal `json:"actual_qty"`
	ReservedQty decimal.Decimal `json:"reserved_qty"`
	OrderedQty  decimal.Decimal `json:"ordered_qty"`
	PlannedQty  decimal.Decimal `json:"planned_qty"`
}

// MonthlySales is one calendar-month bucket of an item's sales history.
type MonthlySales struct {
	Month        string          `json:"month"` // "2006-01"
	QtySold      decimal.Decimal `json:"qty_sold"`
	InvoiceCount int             `json:"invoice_count"`
}

// OfferPrice is either a concrete last offer price or "make offer" when no
// price has been recorded. It marshals as a JSON number, or as the string
// "MO" when unset.
type OfferPrice struct {
	Amount decimal.Decimal
	Set    bool
}

// PricedOffer returns an OfferPrice carrying a concrete amount.
func PricedOffer(amount decimal.Decimal) OfferPrice {
	return OfferPrice{Amount: amount, Set: true}
}

// MakeOffer returns the unset OfferPrice ("MO").
func MakeOffer() OfferPrice {
	return OfferPrice{}
}

func (p OfferPrice) String() string {
	if !p.Set {
		return MakeOfferSentinel
	}
	return p.Amount.String()
}

func (p OfferPrice) MarshalJSON() ([]byte, error) {
	if !p.Set {
		return json.Marshal(MakeOfferSentinel)
	}
	return []byte(p.Amount.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string, or the "MO" sentinel
// (also null or the empty string) meaning no price.
func (p *OfferPrice) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*p = MakeOffer()
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" || strings.EqualFold(str, MakeOfferSentinel) {
			*p = MakeOffer()
			return nil
		}
		amount, err := decimal.NewFromString(str)
		if err != nil {
			return fmt.Errorf("invalid offer price %q", str)
		}
		*p = PricedOffer(amount)
		return nil
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid offer price %s", s)
	}
	*p = PricedOffer(amount)
	return nil
}

// SurplusPolicy controls how non-positive wholesale quantities are treated in
// the availability report.
type SurplusPolicy string

const (
	// PolicySigned keeps every candidate row and reports deficits as negative
	// wholesale quantities.
	PolicySigned SurplusPolicy = "signed"
	// PolicyClamped drops rows whose wholesale quantity is not positive.
	PolicyClamped SurplusPolicy = "clamped"
)

// ParseSurplusPolicy maps the wire value to a SurplusPolicy. Empty input
// selects the signed policy.
func ParseSurplusPolicy(s string) (SurplusPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicySigned):
		return PolicySigned, nil
	case string(PolicyClamped):
		return PolicyClamped, nil
	}
	return "", &InvalidParamError{Param: "policy", Value: s, Reason: "must be signed or clamped"}
}

// AvailabilityRow is one item in the wholesale availability report.
type AvailabilityRow struct {
	Brand             string          `json:"brand"`
	ItemCode          string          `json:"item_code"`
	ItemName          string          `json:"item_name"`
	ItemGroup         string          `json:"item_group"`
	WholesaleQty      decimal.Decimal `json:"wholesale_qty"`
	LastOfferPrice    OfferPrice      `json:"last_offer_price"`
	QtyAvailable      decimal.Decimal `json:"qty_available"`
	OnHold            decimal.Decimal `json:"on_hold"`
	ParLevel          decimal.Decimal `json:"par_level"`
	AvgSalePrice      decimal.Decimal `json:"avg_sale_price"`
	LastPurchasePrice decimal.Decimal `json:"last_purchase_price"`
	ParMonths         int             `json:"par_months"`
	BufferPercent     decimal.Decimal `json:"buffer_percent"`
}

// ReportSummary echoes the inputs of a report run alongside its row count.
type ReportSummary struct {
	TotalItems  int              `json:"total_items"`
	GeneratedAt time.Time        `json:"generated_at"`
	Warehouse   string           `json:"warehouse,omitempty"`
	Parameters  ReportParameters `json:"parameters"`
}

// ReportParameters is the parameter echo inside a report summary.
type ReportParameters struct {
	MonthsLookback int             `json:"months_lookback"`
	MonthsPar      int             `json:"months_par"`
	BufferPercent  decimal.Decimal `json:"buffer_percent"`
	Policy         SurplusPolicy   `json:"policy"`
}

// AvailabilityReport is the full output of BuildReport.
type AvailabilityReport struct {
	Data    []AvailabilityRow `json:"data"`
	Summary ReportSummary     `json:"summary"`
}

// ItemDetail is the single-item drill-down: the same metrics as a report row
// plus the raw stock position and a monthly sales history.
type ItemDetail struct {
	ItemCode          string          `json:"item_code"`
	ItemName          string          `json:"item_name"`
	Brand             string          `json:"brand"`
	ItemGroup         string          `json:"item_group"`
	Warehouse         string          `json:"warehouse"`
	Stock             StockPosition   `json:"stock"`
	ParLevel          decimal.Decimal `json:"par_level"`
	OnHold            decimal.Decimal `json:"on_hold"`
	WholesaleQty      decimal.Decimal `json:"wholesale_qty"`
	AvgSalePrice      decimal.Decimal `json:"avg_sale_price"`
	LastPurchasePrice decimal.Decimal `json:"last_purchase_price"`
	LastOfferPrice    OfferPrice      `json:"last_offer_price"`
	SalesHistory      []MonthlySales  `json:"sales_history"`
	LookbackDays      int             `json:"lookback_days"`
	ParMonths         int             `json:"par_months"`
	BufferPercent     decimal.Decimal `json:"buffer_percent"`
}
