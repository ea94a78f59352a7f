package pricing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/seenimoa/marketdesk/pkg/utils"
)

// reference contract: S=K=100, T=1, r=5%, sigma=20%
func atm(kind Kind) Params {
	return Params{Spot: 100, Strike: 100, Years: 1, Rate: 0.05, Vol: 0.2, Kind: kind}
}

// ── Normal distribution ──

func TestNormCDFMatchesReference(t *testing.T) {
	for x := -8.0; x <= 8.0; x += 0.01 {
		want := distuv.UnitNormal.CDF(x)
		got := NormCDF(x)
		if math.Abs(got-want) > 1e-7 {
			t.Fatalf("NormCDF(%.2f): got %.10f, want %.10f", x, got, want)
		}
	}
}

func TestNormCDFSymmetry(t *testing.T) {
	for _, x := range []float64{0, 0.1, 0.35, 1, 1.645, 2.5, 6} {
		assert.InDelta(t, 1.0, NormCDF(x)+NormCDF(-x), 1e-15, "x=%v", x)
	}
	assert.Equal(t, 0.5, NormCDF(0))
}

func TestNormPDF(t *testing.T) {
	for _, x := range []float64{-3, -1, 0, 0.35, 2} {
		assert.InDelta(t, distuv.UnitNormal.Prob(x), NormPDF(x), 1e-14, "x=%v", x)
	}
}

// ── Price ──

func TestPriceReferenceValues(t *testing.T) {
	call, err := Price(atm(Call))
	require.NoError(t, err)
	assert.InDelta(t, 10.4506, call, 1e-3)

	put, err := Price(atm(Put))
	require.NoError(t, err)
	assert.InDelta(t, 5.5735, put, 1e-3)
}

func TestPriceAtExpiryIsIntrinsic(t *testing.T) {
	tests := []struct {
		kind   Kind
		spot   float64
		strike float64
		want   float64
	}{
		{Call, 110, 100, 10},
		{Call, 90, 100, 0},
		{Call, 100, 100, 0},
		{Put, 90, 100, 10},
		{Put, 110, 100, 0},
	}
	for _, tc := range tests {
		p := Params{Spot: tc.spot, Strike: tc.strike, Years: 0, Rate: 0.05, Vol: 0.3, Kind: tc.kind}
		got, err := Price(p)
		require.NoError(t, err)
		if got != tc.want {
			t.Errorf("Price(%s S=%v K=%v T=0): got %v, want %v", tc.kind, tc.spot, tc.strike, got, tc.want)
		}
	}
}

func TestPriceRejectsInvalidInput(t *testing.T) {
	base := atm(Call)
	tests := []struct {
		name  string
		mut   func(*Params)
		field string
	}{
		{"zero spot", func(p *Params) { p.Spot = 0 }, "spot"},
		{"negative strike", func(p *Params) { p.Strike = -5 }, "strike"},
		{"negative time", func(p *Params) { p.Years = -0.1 }, "years"},
		{"zero vol", func(p *Params) { p.Vol = 0 }, "volatility"},
		{"NaN spot", func(p *Params) { p.Spot = math.NaN() }, "spot"},
		{"infinite rate", func(p *Params) { p.Rate = math.Inf(1) }, "rate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mut(&p)
			_, err := Price(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tc.field, ie.Field)
		})
	}

	p := base
	p.Kind = "straddle"
	_, err := Price(p)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPutCallParity(t *testing.T) {
	cases := []Params{
		{Spot: 100, Strike: 100, Years: 1, Rate: 0.05, Vol: 0.2},
		{Spot: 42, Strike: 50, Years: 0.25, Rate: 0.01, Vol: 0.6},
		{Spot: 250, Strike: 180, Years: 2, Rate: -0.01, Vol: 0.15},
		{Spot: 10, Strike: 12, Years: 0.01, Rate: 0.08, Vol: 1.2},
	}
	for _, p := range cases {
		p.Kind = Call
		c, err := Price(p)
		require.NoError(t, err)
		p.Kind = Put
		put, err := Price(p)
		require.NoError(t, err)

		want := p.Spot - p.Strike*math.Exp(-p.Rate*p.Years)
		assert.InDelta(t, want, c-put, 1e-6, "params %+v", p)
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"call", "CALL", "c", "CE"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Call, k)
	}
	for _, s := range []string{"put", "P", "pe"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Put, k)
	}
	_, err := ParseKind("future")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// ── Greeks ──

func TestGreeksReferenceValues(t *testing.T) {
	g, err := ComputeGreeks(atm(Call))
	require.NoError(t, err)
	assert.InDelta(t, 0.6368, g.Delta, 1e-3)
	assert.InDelta(t, 0.018762, g.Gamma, 1e-5)
	assert.InDelta(t, 0.37524, g.Vega, 1e-4)
	assert.InDelta(t, -0.017572, g.Theta, 1e-5)
	assert.InDelta(t, 0.53232, g.Rho, 1e-4)

	pg, err := ComputeGreeks(atm(Put))
	require.NoError(t, err)
	assert.InDelta(t, -0.3632, pg.Delta, 1e-3)
	assert.InDelta(t, -0.004542, pg.Theta, 1e-5)
	assert.InDelta(t, -0.41890, pg.Rho, 1e-4)
	assert.Equal(t, g.Gamma, pg.Gamma)
	assert.Equal(t, g.Vega, pg.Vega)
}

func TestGreeksMatchFiniteDifferences(t *testing.T) {
	cases := []Params{
		atm(Call),
		atm(Put),
		{Spot: 95, Strike: 105, Years: 0.5, Rate: 0.03, Vol: 0.35, Kind: Call},
		{Spot: 120, Strike: 100, Years: 0.75, Rate: 0.02, Vol: 0.25, Kind: Put},
	}

	at := func(p Params) float64 {
		v, err := Price(p)
		require.NoError(t, err)
		return v
	}

	for _, p := range cases {
		g, err := ComputeGreeks(p)
		require.NoError(t, err)

		const hS = 0.01
		up, dn := p, p
		up.Spot += hS
		dn.Spot -= hS
		assert.InDelta(t, (at(up)-at(dn))/(2*hS), g.Delta, 1e-4, "delta %+v", p)

		const hG = 1.0
		up, dn = p, p
		up.Spot += hG
		dn.Spot -= hG
		assert.InDelta(t, (at(up)-2*at(p)+at(dn))/(hG*hG), g.Gamma, 1e-4, "gamma %+v", p)

		const hV = 1e-3
		up, dn = p, p
		up.Vol += hV
		dn.Vol -= hV
		assert.InDelta(t, (at(up)-at(dn))/(2*hV)/100, g.Vega, 1e-4, "vega %+v", p)

		const hT = 1e-4
		up, dn = p, p
		up.Years += hT
		dn.Years -= hT
		assert.InDelta(t, -(at(up)-at(dn))/(2*hT)/DaysPerYear, g.Theta, 1e-5, "theta %+v", p)

		const hR = 1e-4
		up, dn = p, p
		up.Rate += hR
		dn.Rate -= hR
		assert.InDelta(t, (at(up)-at(dn))/(2*hR)/100, g.Rho, 1e-4, "rho %+v", p)
	}
}

func TestGreeksAtExpiry(t *testing.T) {
	tests := []struct {
		kind  Kind
		spot  float64
		delta float64
	}{
		{Call, 110, 1},
		{Call, 100, 0.5},
		{Call, 90, 0},
		{Put, 110, 0},
		{Put, 100, -0.5},
		{Put, 90, -1},
	}
	for _, tc := range tests {
		p := Params{Spot: tc.spot, Strike: 100, Years: 0, Rate: 0.05, Vol: 0.2, Kind: tc.kind}
		g, err := ComputeGreeks(p)
		require.NoError(t, err)
		assert.Equal(t, Greeks{Delta: tc.delta}, g, "%s S=%v", tc.kind, tc.spot)
	}
}

func TestGreeksRejectInvalidInput(t *testing.T) {
	p := atm(Call)
	p.Vol = -0.2
	_, err := ComputeGreeks(p)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// ── Expiry ──

func TestYearsToExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 16, 0, 0, 0, utils.Eastern)
	assert.InDelta(t, 1.0, YearsToExpiry(now, now.AddDate(0, 0, 365)), 1e-3)
	assert.InDelta(t, 30.0/365, YearsToExpiry(now, now.Add(30*24*time.Hour)), 1e-12)
	assert.Equal(t, 0.0, YearsToExpiry(now, now.Add(-time.Hour)))
	assert.Equal(t, 0.0, YearsToExpiry(now, now))
}

func TestParseExpiry(t *testing.T) {
	exp, err := ParseExpiry("2026-11-20")
	require.NoError(t, err)
	assert.Equal(t, 16, exp.Hour())
	assert.Equal(t, "2026-11-20", utils.FormatDateET(exp))

	_, err = ParseExpiry("Nov 20")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
