package pricing

import "encoding/json"

// Line is one checkout entry: a catalog code and the requested quantity.
type Line struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// UnmarshalJSON accepts the legacy "quant" key when "quantity" is absent.
func (l *Line) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code     string `json:"code"`
		Quantity *int   `json:"quantity"`
		Quant    *int   `json:"quant"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Code = raw.Code
	switch {
	case raw.Quantity != nil:
		l.Quantity = *raw.Quantity
	case raw.Quant != nil:
		l.Quantity = *raw.Quant
	default:
		l.Quantity = 0
	}
	return nil
}
