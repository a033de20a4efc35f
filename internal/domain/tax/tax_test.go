package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Configuration
		base    string
		wantTax string
		wantNet string
	}{
		{name: "no configuration", cfg: nil, base: "810", wantTax: "0", wantNet: "810"},
		{name: "exclusive", cfg: &Configuration{Rate: d("11")}, base: "100", wantTax: "11", wantNet: "111"},
		{name: "exclusive rounds tax", cfg: &Configuration{Rate: d("7.5")}, base: "9.99", wantTax: "0.75", wantNet: "10.74"},
		{name: "inclusive extracts tax", cfg: &Configuration{Rate: d("10"), IsInclusive: true}, base: "110", wantTax: "10", wantNet: "110"},
		{name: "inclusive rounds tax", cfg: &Configuration{Rate: d("11"), IsInclusive: true}, base: "100", wantTax: "9.91", wantNet: "100"},
		{name: "zero rate", cfg: &Configuration{Rate: decimal.Zero}, base: "50", wantTax: "0", wantNet: "50"},
		{name: "negative base clamps to zero", cfg: &Configuration{Rate: d("10")}, base: "-5", wantTax: "0", wantNet: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.cfg, d(tt.base))
			assert.True(t, d(tt.wantTax).Equal(got.Tax), "tax %s, want %s", got.Tax, tt.wantTax)
			assert.True(t, d(tt.wantNet).Equal(got.Net), "net %s, want %s", got.Net, tt.wantNet)
		})
	}
}

func TestAmountConversionRoundTrip(t *testing.T) {
	configs := []*Configuration{
		nil,
		{Rate: d("11")},
		{Rate: d("7.5"), IsInclusive: true},
		{Rate: d("0")},
		{Rate: d("12.345")},
	}
	amounts := []string{"0", "0.01", "1", "99.99", "1234.56", "100000"}
	tolerance := d("0.000000001")

	for _, cfg := range configs {
		for _, a := range amounts {
			x := d(a)

			back := AmountWithoutTax(cfg, AmountWithTax(cfg, x))
			assert.True(t, back.Sub(x).Abs().LessThanOrEqual(tolerance), "without(with(%s)) = %s", x, back)

			forth := AmountWithTax(cfg, AmountWithoutTax(cfg, x))
			assert.True(t, forth.Sub(x).Abs().LessThanOrEqual(tolerance), "with(without(%s)) = %s", x, forth)
		}
	}
}

func TestAmountWithTax(t *testing.T) {
	cfg := &Configuration{Rate: d("10")}
	assert.True(t, d("110").Equal(AmountWithTax(cfg, d("100"))))
	assert.True(t, d("100").Equal(AmountWithoutTax(cfg, d("110"))))
}

func TestPriceWithoutTax(t *testing.T) {
	assert.True(t, d("11").Equal(PriceWithoutTax(nil, d("11"))))
	assert.True(t, d("11").Equal(PriceWithoutTax(&Configuration{Rate: d("10")}, d("11"))))
	assert.True(t, d("10").Equal(PriceWithoutTax(&Configuration{Rate: d("10"), IsInclusive: true}, d("11"))))
	assert.True(t, d("9.01").Equal(PriceWithoutTax(&Configuration{Rate: d("11"), IsInclusive: true}, d("10"))))
}
