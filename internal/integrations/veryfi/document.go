package veryfi

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"wa-bot/internal/domain"
)

// field decodes a value that Veryfi sends either as a bare scalar or, with
// confidence details enabled, as {"value": ..., "score": ...}.
type field struct {
	raw json.RawMessage
}

func (f *field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		f.raw = wrapped.Value
		return nil
	}
	f.raw = append([]byte(nil), b...)
	return nil
}

func (f field) String() string {
	if len(f.raw) == 0 || string(f.raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(f.raw)
}

func (f field) Decimal() (decimal.Decimal, bool) {
	s := f.String()
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

type vendor struct {
	Name field `json:"name"`
}

type lineItem struct {
	Description field `json:"description"`
	Quantity    field `json:"quantity"`
	Total       field `json:"total"`
	UnitPrice   field `json:"unit_price"`
}

type documentMeta struct {
	Vendor       vendor `json:"vendor"`
	Total        field  `json:"total"`
	CurrencyCode field  `json:"currency_code"`
	Date         field  `json:"date"`
}

// documentResponse is the subset of a processed document the bot reads.
// Values under meta take precedence over the top-level ones.
type documentResponse struct {
	ID           field        `json:"id"`
	Vendor       vendor       `json:"vendor"`
	Total        field        `json:"total"`
	CurrencyCode field        `json:"currency_code"`
	Date         field        `json:"date"`
	Meta         documentMeta `json:"meta"`
	LineItems    []lineItem   `json:"line_items"`
}

func firstString(fs ...field) string {
	for _, f := range fs {
		if s := f.String(); s != "" {
			return s
		}
	}
	return ""
}

func firstDecimal(fs ...field) decimal.Decimal {
	for _, f := range fs {
		if d, ok := f.Decimal(); ok && !d.IsZero() {
			return d
		}
	}
	return decimal.Zero
}

func (d documentResponse) receipt() domain.Receipt {
	r := domain.Receipt{
		ID:       d.ID.String(),
		Vendor:   firstString(d.Meta.Vendor.Name, d.Vendor.Name),
		Total:    firstDecimal(d.Meta.Total, d.Total),
		Currency: firstString(d.Meta.CurrencyCode, d.CurrencyCode),
		Date:     firstString(d.Meta.Date, d.Date),
	}
	// Veryfi dates carry a time part: "2024-03-01 12:34:00".
	if len(r.Date) > 10 {
		r.Date = r.Date[:10]
	}
	for _, li := range d.LineItems {
		qty, ok := li.Quantity.Decimal()
		if !ok || qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		r.Items = append(r.Items, domain.ReceiptItem{
			Description: li.Description.String(),
			Quantity:    qty,
			Total:       firstDecimal(li.Total, li.UnitPrice),
		})
	}
	return r
}
