package simulation

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary describes the distribution of simulated terminal values.
type Summary struct {
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	StdDev            float64 `json:"std_dev"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	P5                float64 `json:"p5"`
	P25               float64 `json:"p25"`
	P75               float64 `json:"p75"`
	P95               float64 `json:"p95"`
	ProbabilityOfLoss float64 `json:"probability_of_loss"`
}

// Summarize computes descriptive statistics of sorted outcomes against the
// initial amount.
func Summarize(sorted []float64, amount float64) (Summary, error) {
	if len(sorted) == 0 {
		return Summary{}, fmt.Errorf("%w: no outcomes", ErrInvalidParams)
	}
	data := stats.Float64Data(sorted)

	var (
		s   Summary
		err error
	)
	if s.Mean, err = stats.Mean(data); err != nil {
		return Summary{}, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return Summary{}, err
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return Summary{}, err
	}
	for _, q := range []struct {
		pct float64
		dst *float64
	}{{5, &s.P5}, {25, &s.P25}, {75, &s.P75}, {95, &s.P95}} {
		if *q.dst, err = stats.PercentileNearestRank(data, q.pct); err != nil {
			return Summary{}, err
		}
	}
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]

	losses := 0
	for _, v := range sorted {
		if v >= amount {
			break
		}
		losses++
	}
	s.ProbabilityOfLoss = float64(losses) / float64(len(sorted))
	return s, nil
}

// Report bundles a run's statistics and risk figures.
type Report struct {
	Params           Params     `json:"params"`
	Summary          Summary    `json:"summary"`
	Intervals        []Interval `json:"confidence_intervals"`
	ParametricVaR95  float64    `json:"parametric_var_95"`
	ParametricCVaR95 float64    `json:"parametric_cvar_95"`
	EmpiricalVaR95   float64    `json:"empirical_var_95"`
	EmpiricalCVaR95  float64    `json:"empirical_cvar_95"`
}

// ReportLevels are the confidence intervals included in a Report.
var ReportLevels = []float64{0.90, 0.95, 0.99}

// Report runs a simulation and summarises it.
func (s *Simulator) Report(ctx context.Context, p Params) (Report, error) {
	if err := p.Validate(); err != nil {
		return Report{}, err
	}
	outcomes, err := s.Run(ctx, p)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Params:           p,
		ParametricVaR95:  ParametricVaR95(p.InitialAmount, p.ExpectedReturn, p.Volatility),
		ParametricCVaR95: ParametricCVaR95(p.InitialAmount, p.ExpectedReturn, p.Volatility),
	}
	if r.Summary, err = Summarize(outcomes, p.InitialAmount); err != nil {
		return Report{}, err
	}
	for _, lvl := range ReportLevels {
		ci, err := ConfidenceInterval(outcomes, lvl)
		if err != nil {
			return Report{}, err
		}
		r.Intervals = append(r.Intervals, ci)
	}
	if r.EmpiricalVaR95, err = EmpiricalVaR(outcomes, p.InitialAmount, 0.95); err != nil {
		return Report{}, err
	}
	if r.EmpiricalCVaR95, err = EmpiricalCVaR(outcomes, p.InitialAmount, 0.95); err != nil {
		return Report{}, err
	}
	return r, nil
}
