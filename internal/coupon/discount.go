package coupon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/daap14/billstore/internal/store"
)

// Discount is the closed set of coupon discount variants: Percentage or
// Fixed.
type Discount interface {
	isDiscount()
}

// Percentage discounts a fraction of the amount (0.15 is 15%).
type Percentage struct {
	Rate decimal.Decimal
}

// Fixed discounts a flat amount in one currency.
type Fixed struct {
	Currency string
	Amount   decimal.Decimal
}

func (Percentage) isDiscount() {}
func (Fixed) isDiscount()      {}

// Stored variant tags.
const (
	tagPercentage = "Percentage"
	tagFixed      = "Fixed"
)

type fixedPayload struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// DiscountEqual reports whether a and b are the same variant with equal
// values. Decimals compare by value and scale.
func DiscountEqual(a, b Discount) bool {
	switch x := a.(type) {
	case Percentage:
		y, ok := b.(Percentage)
		return ok && sameDecimal(x.Rate, y.Rate)
	case Fixed:
		y, ok := b.(Fixed)
		return ok && x.Currency == y.Currency && sameDecimal(x.Amount, y.Amount)
	default:
		return false
	}
}

// EncodeDiscount renders d as its tagged document:
// {"Percentage":"0.15"} or {"Fixed":{"currency":"USD","amount":"10.00"}}.
func EncodeDiscount(d Discount) ([]byte, error) {
	var doc any
	switch v := d.(type) {
	case Percentage:
		doc = map[string]string{tagPercentage: decimalText(v.Rate)}
	case Fixed:
		doc = map[string]fixedPayload{tagFixed: {Currency: v.Currency, Amount: decimalText(v.Amount)}}
	case nil:
		return nil, fmt.Errorf("encoding coupon discount: %w: discount is required", store.ErrEncoding)
	default:
		return nil, fmt.Errorf("encoding coupon discount: %w: unsupported variant %T", store.ErrEncoding, d)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding coupon discount: %w: %w", store.ErrEncoding, err)
	}
	return data, nil
}

// DecodeDiscount parses a stored discount document. Unknown tags, extra
// tags and missing or malformed payload fields are ErrDecoding.
func DecodeDiscount(data []byte) (Discount, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, decodeErr(err)
	}
	if len(doc) != 1 {
		return nil, decodeErr(fmt.Errorf("expected exactly one variant, got %d", len(doc)))
	}

	var (
		tag     string
		payload json.RawMessage
	)
	for k, v := range doc {
		tag, payload = k, v
	}

	switch tag {
	case tagPercentage:
		rate, err := decodeDecimal(payload, "percentage rate")
		if err != nil {
			return nil, decodeErr(err)
		}
		return Percentage{Rate: rate}, nil

	case tagFixed:
		if isNull(payload) {
			return nil, decodeErr(errors.New("fixed payload is missing"))
		}
		// Payload keys are case-sensitive.
		var fd map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fd); err != nil {
			return nil, decodeErr(fmt.Errorf("fixed payload: %w", err))
		}
		rawCurrency, ok := fd["currency"]
		if !ok || isNull(rawCurrency) {
			return nil, decodeErr(errors.New("fixed currency is missing"))
		}
		var currency string
		if err := json.Unmarshal(rawCurrency, &currency); err != nil {
			return nil, decodeErr(fmt.Errorf("fixed currency: %w", err))
		}
		amount, err := decodeDecimal(fd["amount"], "fixed amount")
		if err != nil {
			return nil, decodeErr(err)
		}
		return Fixed{Currency: currency, Amount: amount}, nil

	default:
		return nil, decodeErr(fmt.Errorf("unknown variant %q", tag))
	}
}

func decodeErr(err error) error {
	return fmt.Errorf("decoding coupon discount: %w: %w", store.ErrDecoding, err)
}

func decodeDecimal(raw json.RawMessage, field string) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return decimal.Decimal{}, fmt.Errorf("%s is missing", field)
	}
	if raw[0] != '"' {
		return decimal.Decimal{}, fmt.Errorf("%s must be a decimal string", field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", field, err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decimalText keeps the scale: 10.00 renders as "10.00", not "10".
func decimalText(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func sameDecimal(a, b decimal.Decimal) bool {
	return a.Equal(b) && decimalText(a) == decimalText(b)
}
