package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/garystarr-surgi/wholesale-management/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// intParam reads an optional integer query parameter, falling back to def.
func intParam(q url.Values, name string, def int) (int, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &core.InvalidParamError{Param: name, Value: s, Reason: "must be an integer"}
	}
	return v, nil
}

// decimalParam reads an optional decimal query parameter, falling back to def.
func decimalParam(q url.Values, name string, def decimal.Decimal) (decimal.Decimal, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &core.InvalidParamError{Param: name, Value: s, Reason: "must be a number"}
	}
	return v, nil
}

// availabilityRequest is the optional JSON body of POST /availability.
// Absent fields keep their query-parameter or default values.
type availabilityRequest struct {
	MonthsLookback *int             `json:"months_lookback"`
	MonthsPar      *int             `json:"months_par"`
	BufferPercent  *decimal.Decimal `json:"buffer_percent"`
	Warehouse      *string          `json:"warehouse"`
	Policy         *string          `json:"policy"`
}

// reportParams assembles core.ReportParams from defaults, query parameters,
// and (for POST) an optional JSON body, in that order of precedence.
func (h *Handler) reportParams(r *http.Request) (core.ReportParams, error) {
	params := core.DefaultReportParams()
	params.Policy = h.defaultPolicy

	q := r.URL.Query()
	var err error
	if params.MonthsLookback, err = intParam(q, "months_lookback", params.MonthsLookback); err != nil {
		return params, err
	}
	if params.MonthsPar, err = intParam(q, "months_par", params.MonthsPar); err != nil {
		return params, err
	}
	if params.BufferPercent, err = decimalParam(q, "buffer_percent", params.BufferPercent); err != nil {
		return params, err
	}
	params.Warehouse = q.Get("warehouse")
	if p := q.Get("policy"); p != "" {
		if params.Policy, err = core.ParseSurplusPolicy(p); err != nil {
			return params, err
		}
	}

	if r.Method == http.MethodPost && r.ContentLength != 0 &&
		strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req availabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return params, &core.InvalidParamError{Param: "body", Value: "", Reason: "invalid JSON: " + err.Error()}
		}
		if req.MonthsLookback != nil {
			params.MonthsLookback = *req.MonthsLookback
		}
		if req.MonthsPar != nil {
			params.MonthsPar = *req.MonthsPar
		}
		if req.BufferPercent != nil {
			params.BufferPercent = *req.BufferPercent
		}
		if req.Warehouse != nil {
			params.Warehouse = *req.Warehouse
		}
		if req.Policy != nil {
			if params.Policy, err = core.ParseSurplusPolicy(*req.Policy); err != nil {
				return params, err
			}
		}
	}

	return params, nil
}

// availability handles GET|POST /api/wholesale/availability.
// When format=csv, streams CSV instead of JSON.
func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	params, err := h.reportParams(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, err := h.svc.GetWholesaleAvailability(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeAvailabilityCSV(w, report)
		return
	}
	writeJSON(w, report)
}

func writeAvailabilityCSV(w http.ResponseWriter, report *core.AvailabilityReport) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="wholesale-availability.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"Brand", "Item Code", "Item Name", "Item Group", "Wholesale Qty",
		"Last Offer Price", "Qty Available", "On Hold", "Par Level",
		"Avg Sale Price", "Last Purchase Price",
	})
	for _, row := range report.Data {
		_ = cw.Write([]string{
			csvSafe(row.Brand),
			csvSafe(row.ItemCode),
			csvSafe(row.ItemName),
			csvSafe(row.ItemGroup),
			row.WholesaleQty.String(),
			row.LastOfferPrice.String(),
			row.QtyAvailable.String(),
			row.OnHold.String(),
			row.ParLevel.String(),
			row.AvgSalePrice.String(),
			row.LastPurchasePrice.String(),
		})
	}
	cw.Flush()
}

// csvSafe prevents CSV formula injection by prefixing cells that begin with a
// formula-triggering character with a single quote.
func csvSafe(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// warehouses handles GET /api/wholesale/warehouses.
func (h *Handler) warehouses(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListWarehouses(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// itemDetail handles GET /api/wholesale/items/{code}.
func (h *Handler) itemDetail(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	q := r.URL.Query()

	params := core.DefaultDetailParams()
	var err error
	if params.LookbackDays, err = intParam(q, "lookback_days", params.LookbackDays); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if params.MonthsPar, err = intParam(q, "months_par", params.MonthsPar); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if params.BufferPercent, err = decimalParam(q, "buffer_percent", params.BufferPercent); err != nil {
		writeServiceError(w, r, err)
		return
	}

	detail, err := h.svc.GetItemWholesaleDetail(r.Context(), code, q.Get("warehouse"), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, detail)
}

// updateOfferPrices handles POST /api/wholesale/offer-prices.
// The body is either a bare JSON array of rows or {"items": [...]}
// (the legacy "items_data" key is accepted too).
func (h *Handler) updateOfferPrices(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodeJSON(w, r, &raw) {
		return
	}

	updates, err := parseOfferPriceUpdates(raw)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.UpdateOfferPrices(r.Context(), updates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func parseOfferPriceUpdates(raw json.RawMessage) ([]core.OfferPriceUpdate, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var updates []core.OfferPriceUpdate
		if err := json.Unmarshal(trimmed, &updates); err != nil {
			return nil, err
		}
		return updates, nil
	}

	var wrapper struct {
		Items     []core.OfferPriceUpdate `json:"items"`
		ItemsData []core.OfferPriceUpdate `json:"items_data"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Items != nil {
		return wrapper.Items, nil
	}
	return wrapper.ItemsData, nil
}
