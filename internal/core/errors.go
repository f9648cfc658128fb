package core

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for records that do not exist in the ERP store.
// Wrap it with context: fmt.Errorf("item %s: %w", code, ErrNotFound).
var ErrNotFound = errors.New("not found")

// InvalidParamError reports a request parameter that failed validation before
// any query ran. The web adapter maps it to HTTP 400.
type InvalidParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%q: %s", e.Param, e.Value, e.Reason)
}
