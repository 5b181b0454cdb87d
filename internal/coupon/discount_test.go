package coupon

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/billstore/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEncodeDiscount(t *testing.T) {
	tests := []struct {
		name     string
		discount Discount
		want     string
	}{
		{name: "percentage", discount: Percentage{Rate: dec("0.15")}, want: `{"Percentage":"0.15"}`},
		{name: "percentage integer", discount: Percentage{Rate: dec("1")}, want: `{"Percentage":"1"}`},
		{name: "fixed keeps scale", discount: Fixed{Currency: "USD", Amount: dec("10.00")}, want: `{"Fixed":{"currency":"USD","amount":"10.00"}}`},
		{name: "fixed high precision", discount: Fixed{Currency: "BTC", Amount: dec("0.00012345")}, want: `{"Fixed":{"currency":"BTC","amount":"0.00012345"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeDiscount(tt.discount)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEncodeDiscount_Nil(t *testing.T) {
	_, err := EncodeDiscount(nil)
	assert.ErrorIs(t, err, store.ErrEncoding)
}

func TestDiscount_RoundTrip(t *testing.T) {
	for _, d := range []Discount{
		Percentage{Rate: dec("0.15")},
		Percentage{Rate: dec("0.100")},
		Fixed{Currency: "USD", Amount: dec("10.00")},
		Fixed{Currency: "EUR", Amount: dec("199.9")},
		Fixed{Currency: "", Amount: dec("0")},
	} {
		data, err := EncodeDiscount(d)
		require.NoError(t, err)

		got, err := DecodeDiscount(data)
		require.NoError(t, err)
		assert.True(t, DiscountEqual(d, got), "round trip of %s changed %#v into %#v", data, d, got)
	}
}

func TestDecodeDiscount_NormalizedDocument(t *testing.T) {
	// jsonb reorders keys and adds spaces.
	got, err := DecodeDiscount([]byte(`{"Fixed": {"amount": "10.00", "currency": "USD"}}`))
	require.NoError(t, err)

	fixed, ok := got.(Fixed)
	require.True(t, ok)
	assert.Equal(t, "USD", fixed.Currency)
	assert.Equal(t, "10.00", fixed.Amount.StringFixed(2))
	assert.True(t, DiscountEqual(Fixed{Currency: "USD", Amount: dec("10.00")}, got))
}

func TestDecodeDiscount_IgnoresUnknownFixedFields(t *testing.T) {
	got, err := DecodeDiscount([]byte(`{"Fixed":{"currency":"USD","amount":"5","note":"x"}}`))
	require.NoError(t, err)
	assert.True(t, DiscountEqual(Fixed{Currency: "USD", Amount: dec("5")}, got))
}

func TestDecodeDiscount_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown tag", doc: `{"Unknown":"0.15"}`},
		{name: "lowercase tag", doc: `{"percentage":"0.15"}`},
		{name: "no tag", doc: `{}`},
		{name: "two tags", doc: `{"Percentage":"0.1","Fixed":{"currency":"USD","amount":"1"}}`},
		{name: "json null", doc: `null`},
		{name: "array", doc: `[]`},
		{name: "bare string", doc: `"Percentage"`},
		{name: "not json", doc: `Percentage(0.15)`},
		{name: "empty", doc: ``},
		{name: "percentage number", doc: `{"Percentage":0.15}`},
		{name: "percentage null", doc: `{"Percentage":null}`},
		{name: "percentage malformed", doc: `{"Percentage":"fifteen"}`},
		{name: "percentage object", doc: `{"Percentage":{"rate":"0.15"}}`},
		{name: "fixed null", doc: `{"Fixed":null}`},
		{name: "fixed not an object", doc: `{"Fixed":"USD 10"}`},
		{name: "fixed missing amount", doc: `{"Fixed":{"currency":"USD"}}`},
		{name: "fixed missing currency", doc: `{"Fixed":{"amount":"10.00"}}`},
		{name: "fixed null amount", doc: `{"Fixed":{"currency":"USD","amount":null}}`},
		{name: "fixed numeric amount", doc: `{"Fixed":{"currency":"USD","amount":10}}`},
		{name: "fixed numeric currency", doc: `{"Fixed":{"currency":840,"amount":"10"}}`},
		{name: "fixed uppercase keys", doc: `{"Fixed":{"CURRENCY":"USD","AMOUNT":"10"}}`},
		{name: "fixed capitalized amount", doc: `{"Fixed":{"currency":"USD","Amount":"10"}}`},
		{name: "fixed array", doc: `{"Fixed":["USD","10"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDiscount([]byte(tt.doc))
			assert.ErrorIs(t, err, store.ErrDecoding)
			assert.Nil(t, got)
		})
	}
}

func TestDiscountEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Discount
		want bool
	}{
		{name: "same percentage", a: Percentage{Rate: dec("0.15")}, b: Percentage{Rate: dec("0.15")}, want: true},
		{name: "percentage scale differs", a: Percentage{Rate: dec("0.15")}, b: Percentage{Rate: dec("0.150")}, want: false},
		{name: "fixed currency differs", a: Fixed{Currency: "USD", Amount: dec("1")}, b: Fixed{Currency: "EUR", Amount: dec("1")}, want: false},
		{name: "variant differs", a: Percentage{Rate: dec("1")}, b: Fixed{Currency: "USD", Amount: dec("1")}, want: false},
		{name: "nil", a: nil, b: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscountEqual(tt.a, tt.b))
		})
	}
}

func TestCouponRow_ToDomainReportsCorruptDiscount(t *testing.T) {
	row := couponRow{ID: uuid.New(), Discount: []byte(`{"Unknown":"0.15"}`)}

	_, err := row.toDomain()
	require.ErrorIs(t, err, store.ErrDecoding)
	assert.Contains(t, err.Error(), row.ID.String())
}

func TestCouponNew_ToRow(t *testing.T) {
	row, err := CouponNew{
		Code:     "SAVE10",
		TenantID: uuid.New(),
		Discount: Fixed{Currency: "USD", Amount: dec("10.00")},
	}.toRow()
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(7), row.ID.Version())
	assert.Equal(t, `{"Fixed":{"currency":"USD","amount":"10.00"}}`, string(row.Discount))
}

func TestCouponNew_ToRowRequiresDiscount(t *testing.T) {
	_, err := CouponNew{Code: "NONE", TenantID: uuid.New()}.toRow()
	assert.ErrorIs(t, err, store.ErrEncoding)
}

func TestCouponPatch_ToRow(t *testing.T) {
	desc := "updated"

	t.Run("absent discount stays absent", func(t *testing.T) {
		row, err := CouponPatch{ID: uuid.New(), Description: &desc}.toRow()
		require.NoError(t, err)
		assert.Nil(t, row.Discount)
		assert.Equal(t, &desc, row.Description)
	})

	t.Run("present discount is encoded", func(t *testing.T) {
		row, err := CouponPatch{ID: uuid.New(), Discount: Percentage{Rate: dec("0.2")}}.toRow()
		require.NoError(t, err)
		assert.Equal(t, `{"Percentage":"0.2"}`, string(row.Discount))
		assert.Nil(t, row.Description)
	})
}
