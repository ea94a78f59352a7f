package simulation

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Run ──

func TestZeroVolatilityIsExact(t *testing.T) {
	out, err := Simulate(10000, 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, out, DefaultIterations)
	for i, v := range out {
		if v != 10000 {
			t.Fatalf("outcome %d: got %v, want 10000", i, v)
		}
	}
}

func TestRunIsSortedAndDeterministic(t *testing.T) {
	p := Params{InitialAmount: 10000, ExpectedReturn: 0.07, Volatility: 0.15, Iterations: 20000, Seed: 42}

	a, err := NewSimulator(1).Run(context.Background(), p)
	require.NoError(t, err)
	b, err := NewSimulator(8).Run(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, sort.Float64sAreSorted(a))
	assert.Equal(t, a, b, "same seed must give the same outcomes regardless of workers")

	p.Seed = 43
	c, err := NewSimulator(4).Run(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestRunMoments(t *testing.T) {
	const amount, ret, vol = 10000.0, 0.08, 0.2
	p := Params{InitialAmount: amount, ExpectedReturn: ret, Volatility: vol, Iterations: 100000, Seed: 7}
	out, err := NewSimulator(4).Run(context.Background(), p)
	require.NoError(t, err)

	s, err := Summarize(out, amount)
	require.NoError(t, err)

	// five standard errors
	se := amount * vol / math.Sqrt(float64(p.Iterations))
	assert.InDelta(t, amount*(1+ret), s.Mean, 5*se)
	assert.InDelta(t, amount*vol, s.StdDev, 0.02*amount*vol)
	assert.InDelta(t, amount*(1+ret), s.Median, 10*se)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulator(2).Run(ctx, Params{InitialAmount: 100, Volatility: 0.1, Iterations: 10000, Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	bad := []Params{
		{InitialAmount: 0, Volatility: 0.1},
		{InitialAmount: -100, Volatility: 0.1},
		{InitialAmount: 100, Volatility: -0.1},
		{InitialAmount: math.NaN(), Volatility: 0.1},
		{InitialAmount: 100, ExpectedReturn: math.Inf(1)},
		{InitialAmount: 100, Iterations: -1},
		{InitialAmount: 100, Iterations: MaxIterations + 1},
	}
	for i, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("case %d: got %v, want ErrInvalidParams", i, err)
		}
	}

	p := Params{InitialAmount: 100}
	require.NoError(t, p.Validate())
	assert.Equal(t, DefaultIterations, p.Iterations)
	assert.NotZero(t, p.Seed)
}

// ── Risk ──

func TestParametricVaR(t *testing.T) {
	got := ParametricVaR95(10000, 0.08, 0.20)
	if math.Abs(got-(-2490)) > 1e-6 {
		t.Errorf("VaR95: got %v, want -2490", got)
	}
	assert.InDelta(t, -3324, ParametricCVaR95(10000, 0.08, 0.20), 1e-6)
	assert.Less(t, ParametricCVaR95(10000, 0.08, 0.20), ParametricVaR95(10000, 0.08, 0.20))
	assert.Equal(t, 0.0, ParametricVaR95(10000, 0, 0))
}

func ascending(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestConfidenceInterval(t *testing.T) {
	data := ascending(1000)
	tests := []struct {
		level      float64
		lowerIndex int
		upperIndex int
	}{
		{0.95, 25, 975},
		{0.99, 5, 995},
		{0.5, 250, 750},
	}
	for _, tc := range tests {
		ci, err := ConfidenceInterval(data, tc.level)
		require.NoError(t, err)
		if ci.Lower != data[tc.lowerIndex] || ci.Upper != data[tc.upperIndex] {
			t.Errorf("CI(%v): got [%v, %v], want [%v, %v]", tc.level, ci.Lower, ci.Upper,
				data[tc.lowerIndex], data[tc.upperIndex])
		}
	}

	small := ascending(10)
	ci, err := ConfidenceInterval(small, 0.9999999999999999)
	require.NoError(t, err)
	assert.Equal(t, 10.0, ci.Upper)

	_, err = ConfidenceInterval(nil, 0.95)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = ConfidenceInterval(data, 1)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestEmpiricalTail(t *testing.T) {
	data := ascending(1000)

	v, err := EmpiricalVaR(data, 500, 0.95)
	require.NoError(t, err)
	assert.Equal(t, -449.0, v)

	cv, err := EmpiricalCVaR(data, 500, 0.95)
	require.NoError(t, err)
	assert.Equal(t, -474.0, cv)

	_, err = EmpiricalVaR(nil, 500, 0.95)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

// ── Summary ──

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.Mean)
	assert.Equal(t, 3.0, s.Median)
	assert.InDelta(t, math.Sqrt2, s.StdDev, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.Equal(t, 0.4, s.ProbabilityOfLoss)
	assert.LessOrEqual(t, s.P5, s.P25)
	assert.LessOrEqual(t, s.P75, s.P95)

	_, err = Summarize(nil, 3)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestReport(t *testing.T) {
	p := Params{InitialAmount: 10000, ExpectedReturn: 0.08, Volatility: 0.2, Seed: 99}
	r, err := NewSimulator(2).Report(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, DefaultIterations, r.Params.Iterations)
	assert.InDelta(t, -2490, r.ParametricVaR95, 1e-6)
	require.Len(t, r.Intervals, len(ReportLevels))
	for _, ci := range r.Intervals {
		assert.Less(t, ci.Lower, ci.Upper)
	}
	// normal draws: the empirical 5% quantile lands near the parametric one
	assert.InDelta(t, r.ParametricVaR95, r.EmpiricalVaR95, 250)
	assert.Less(t, r.EmpiricalCVaR95, r.EmpiricalVaR95)

	_, err = NewSimulator(2).Report(context.Background(), Params{})
	assert.ErrorIs(t, err, ErrInvalidParams)
}
