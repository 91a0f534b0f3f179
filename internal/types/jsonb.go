package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*PricingConfiguration)(nil)
	_ driver.Valuer = PricingConfiguration{}
	_ sql.Scanner   = (*TierSnapshot)(nil)
	_ driver.Valuer = TierSnapshot(nil)
	_ sql.Scanner   = (*Breakdown)(nil)
	_ driver.Valuer = Breakdown(nil)
	_ sql.Scanner   = (*SelectedAddOns)(nil)
	_ driver.Valuer = SelectedAddOns(nil)
)

// scanJSONB scans a JSONB database value into dest. It accepts the []byte and
// string representations different drivers hand back.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONB converts a Go value to a JSONB-compatible driver.Value.
func valueJSONB(v interface{}) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// ---------------------------------------------------------------------------
// PricingConfiguration
// ---------------------------------------------------------------------------

// Scan implements sql.Scanner.
func (c *PricingConfiguration) Scan(value interface{}) error {
	return scanJSONB(c, value)
}

// Value implements driver.Valuer.
func (c PricingConfiguration) Value() (driver.Value, error) {
	return valueJSONB(c)
}

// ---------------------------------------------------------------------------
// TierSnapshot
// ---------------------------------------------------------------------------

// TierSnapshot is the copy of the tier schedule stored with a quote.
type TierSnapshot []PricingTier

// Scan implements sql.Scanner.
func (s *TierSnapshot) Scan(value interface{}) error {
	return scanJSONB(s, value)
}

// Value implements driver.Valuer. A nil snapshot is stored as an empty array
// so flat-mode quotes still carry a well-formed document.
func (s TierSnapshot) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return valueJSONB([]PricingTier(s))
}

// ---------------------------------------------------------------------------
// Breakdown
// ---------------------------------------------------------------------------

// Breakdown is the per-band pricing detail stored with a quote.
type Breakdown []BandResult

// Scan implements sql.Scanner.
func (b *Breakdown) Scan(value interface{}) error {
	return scanJSONB(b, value)
}

// Value implements driver.Valuer.
func (b Breakdown) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return valueJSONB([]BandResult(b))
}

// ---------------------------------------------------------------------------
// SelectedAddOns
// ---------------------------------------------------------------------------

// SelectedAddOns is the list of add-ons priced into a quote.
type SelectedAddOns []SelectedAddOn

// Scan implements sql.Scanner.
func (a *SelectedAddOns) Scan(value interface{}) error {
	return scanJSONB(a, value)
}

// Value implements driver.Valuer.
func (a SelectedAddOns) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return valueJSONB([]SelectedAddOn(a))
}
