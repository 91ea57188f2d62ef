package provider

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// numeric decodes upstream amounts sent either as JSON numbers or as decimal
// strings. Null, empty and unparseable values decode to an unset numeric.
type numeric struct {
	value decimal.Decimal
	set   bool
}

func (n *numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = numeric{}
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		*n = numeric{}
		return nil
	}
	*n = numeric{value: d, set: true}
	return nil
}

// Ptr returns the value as a float pointer, nil when unset.
func (n numeric) Ptr() *float64 {
	if !n.set {
		return nil
	}
	f, _ := n.value.Float64()
	return &f
}

// Float returns the value, 0 when unset.
func (n numeric) Float() float64 {
	f, _ := n.value.Float64()
	return f
}
