package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/daap14/billstore/internal/store"
)

// Ramps is the ordered list of price adjustments over the life of a
// subscription. The last ramp may be open-ended.
//
// Ramps decoded from storage remember their document: fields this package
// does not model, and the original spelling of unchanged values, are
// written back as they were.
type Ramps struct {
	Ramps []Ramp `json:"ramps"`

	raw json.RawMessage
}

// Ramp applies Adjustment for DurationInMonths, starting where the previous
// ramp ended.
type Ramp struct {
	Index            uint32         `json:"index"`
	DurationInMonths *uint32        `json:"duration_in_months"`
	Adjustment       RampAdjustment `json:"ramp_adjustment"`
}

// RampAdjustment is the minimum charge and discount during a ramp.
type RampAdjustment struct {
	Minimum  decimal.Decimal `json:"minimum"`
	Discount decimal.Decimal `json:"discount"`
}

// Stored document shape, with pointers to detect absent fields.
type rampsDocument struct {
	Ramps *[]rampDocument `json:"ramps"`
}

type rampDocument struct {
	Index            *uint32             `json:"index"`
	DurationInMonths *uint32             `json:"duration_in_months"`
	Adjustment       *adjustmentDocument `json:"ramp_adjustment"`
}

type adjustmentDocument struct {
	Minimum  *decimal.Decimal `json:"minimum"`
	Discount *decimal.Decimal `json:"discount"`
}

// Validate checks the ramps are contiguous from index 0, non-negative, and
// that only the last ramp is open-ended.
func (r Ramps) Validate() error {
	for i, ramp := range r.Ramps {
		if ramp.Index != uint32(i) {
			return fmt.Errorf("ramp %d has index %d", i, ramp.Index)
		}
		if ramp.DurationInMonths == nil && i != len(r.Ramps)-1 {
			return fmt.Errorf("ramp %d is open-ended but not last", i)
		}
		if ramp.DurationInMonths != nil && *ramp.DurationInMonths == 0 {
			return fmt.Errorf("ramp %d has zero duration", i)
		}
		if ramp.Adjustment.Minimum.IsNegative() || ramp.Adjustment.Discount.IsNegative() {
			return fmt.Errorf("ramp %d has a negative adjustment", i)
		}
	}
	return nil
}

// Equal compares ramps by value.
func (r Ramps) Equal(o Ramps) bool {
	if len(r.Ramps) != len(o.Ramps) {
		return false
	}
	for i := range r.Ramps {
		a, b := r.Ramps[i], o.Ramps[i]
		if a.Index != b.Index {
			return false
		}
		if (a.DurationInMonths == nil) != (b.DurationInMonths == nil) {
			return false
		}
		if a.DurationInMonths != nil && *a.DurationInMonths != *b.DurationInMonths {
			return false
		}
		if !a.Adjustment.Minimum.Equal(b.Adjustment.Minimum) || !a.Adjustment.Discount.Equal(b.Adjustment.Discount) {
			return false
		}
	}
	return true
}

// EncodeRamps validates r and renders its stored document.
func EncodeRamps(r Ramps) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("encoding schedule ramps: %w: %w", store.ErrEncoding, err)
	}
	if r.Ramps == nil {
		r.Ramps = []Ramp{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding schedule ramps: %w: %w", store.ErrEncoding, err)
	}
	if r.raw != nil {
		data = overlay(r.raw, data)
	}
	return data, nil
}

// DecodeRamps parses and validates a stored ramps document.
func DecodeRamps(data []byte) (Ramps, error) {
	var doc rampsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Ramps{}, decodeErr(err)
	}
	if doc.Ramps == nil {
		return Ramps{}, decodeErr(errors.New("ramps is missing"))
	}

	out := Ramps{Ramps: make([]Ramp, 0, len(*doc.Ramps))}
	for i, rd := range *doc.Ramps {
		if rd.Index == nil {
			return Ramps{}, decodeErr(fmt.Errorf("ramp %d: index is missing", i))
		}
		if rd.Adjustment == nil || rd.Adjustment.Minimum == nil || rd.Adjustment.Discount == nil {
			return Ramps{}, decodeErr(fmt.Errorf("ramp %d: ramp_adjustment is incomplete", i))
		}
		out.Ramps = append(out.Ramps, Ramp{
			Index:            *rd.Index,
			DurationInMonths: rd.DurationInMonths,
			Adjustment: RampAdjustment{
				Minimum:  *rd.Adjustment.Minimum,
				Discount: *rd.Adjustment.Discount,
			},
		})
	}

	if err := out.Validate(); err != nil {
		return Ramps{}, decodeErr(err)
	}
	out.raw = bytes.Clone(data)
	return out, nil
}

func decodeErr(err error) error {
	return fmt.Errorf("decoding schedule ramps: %w: %w", store.ErrDecoding, err)
}

// overlay merges doc into base: objects merge key by key, arrays element by
// element with doc's length, and a scalar keeps base's text when both hold
// the same number.
func overlay(base, doc json.RawMessage) json.RawMessage {
	var baseObj, docObj map[string]json.RawMessage
	if json.Unmarshal(base, &baseObj) == nil && json.Unmarshal(doc, &docObj) == nil && baseObj != nil && docObj != nil {
		for k, v := range docObj {
			if b, ok := baseObj[k]; ok {
				v = overlay(b, v)
			}
			baseObj[k] = v
		}
		if out, err := json.Marshal(baseObj); err == nil {
			return out
		}
		return doc
	}

	var baseArr, docArr []json.RawMessage
	if json.Unmarshal(base, &baseArr) == nil && json.Unmarshal(doc, &docArr) == nil && baseArr != nil && docArr != nil {
		for i := range docArr {
			if i < len(baseArr) {
				docArr[i] = overlay(baseArr[i], docArr[i])
			}
		}
		if out, err := json.Marshal(docArr); err == nil {
			return out
		}
		return doc
	}

	if sameNumber(base, doc) {
		return base
	}
	return doc
}

func sameNumber(a, b json.RawMessage) bool {
	x, ok := numberText(a)
	if !ok {
		return false
	}
	y, ok := numberText(b)
	if !ok {
		return false
	}
	dx, err := decimal.NewFromString(x)
	if err != nil {
		return false
	}
	dy, err := decimal.NewFromString(y)
	if err != nil {
		return false
	}
	return dx.Equal(dy)
}

// numberText returns the text of a JSON number or of a string holding one.
func numberText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw), true
	default:
		return "", false
	}
}
