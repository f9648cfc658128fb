package app

import "github.com/garystarr-surgi/wholesale-management/internal/core"

// WarehouseListResult is returned by ListWarehouses.
type WarehouseListResult struct {
	Warehouses []core.Warehouse `json:"warehouses"`
	Count      int              `json:"count"`
}
