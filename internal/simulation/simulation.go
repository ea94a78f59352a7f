// Package simulation projects the terminal value of an investment with a
// Monte Carlo run over normally distributed returns and derives confidence
// intervals and tail-risk figures from the outcomes.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultIterations is used when Params.Iterations is zero.
	DefaultIterations = 10_000
	// MaxIterations bounds memory for a single run.
	MaxIterations = 5_000_000

	chunkSize = 2048
)

// ErrInvalidParams is returned for simulation inputs outside the model's domain.
var ErrInvalidParams = errors.New("simulation: invalid parameters")

// Params describe one simulation.
type Params struct {
	InitialAmount  float64 `json:"initial_amount"`
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	Iterations     int     `json:"iterations,omitempty"`
	// Seed makes a run reproducible. Zero draws a random seed.
	Seed uint64 `json:"seed,omitempty"`
}

// Validate applies defaults and checks the inputs.
func (p *Params) Validate() error {
	switch {
	case math.IsNaN(p.InitialAmount) || math.IsInf(p.InitialAmount, 0) || p.InitialAmount <= 0:
		return fmt.Errorf("%w: initial amount must be positive, got %g", ErrInvalidParams, p.InitialAmount)
	case math.IsNaN(p.ExpectedReturn) || math.IsInf(p.ExpectedReturn, 0):
		return fmt.Errorf("%w: expected return must be finite, got %g", ErrInvalidParams, p.ExpectedReturn)
	case math.IsNaN(p.Volatility) || math.IsInf(p.Volatility, 0) || p.Volatility < 0:
		return fmt.Errorf("%w: volatility must be non-negative, got %g", ErrInvalidParams, p.Volatility)
	case p.Iterations < 0 || p.Iterations > MaxIterations:
		return fmt.Errorf("%w: iterations must be in [0, %d], got %d", ErrInvalidParams, MaxIterations, p.Iterations)
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultIterations
	}
	if p.Seed == 0 {
		p.Seed = rand.Uint64()
	}
	return nil
}

// Simulator runs trials across a fixed number of workers.
type Simulator struct {
	Workers int
}

// NewSimulator returns a simulator with the given parallelism; workers <= 0
// uses GOMAXPROCS.
func NewSimulator(workers int) *Simulator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Simulator{Workers: workers}
}

// Run draws p.Iterations terminal values amount·(1 + mean + z·stdDev) with
// z from a Box-Muller transform and returns them sorted ascending.
//
// Trials are split into chunks, each with its own PCG stream keyed by
// (seed, chunk), so the output depends only on the seed and not on the
// number of workers.
func (s *Simulator) Run(ctx context.Context, p Params) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := make([]float64, p.Iterations)
	nChunks := (p.Iterations + chunkSize - 1) / chunkSize

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Workers))
	for c := 0; c < nChunks; c++ {
		lo := c * chunkSize
		hi := min(lo+chunkSize, p.Iterations)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(c)))
			for i := lo; i < hi; i++ {
				z := boxMuller(rng)
				out[i] = p.InitialAmount * (1 + p.ExpectedReturn + z*p.Volatility)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}

	sort.Float64s(out)
	return out, nil
}

// Simulate is Run with a random seed on all cores.
func Simulate(amount, expectedReturn, volatility float64, iterations int) ([]float64, error) {
	return NewSimulator(0).Run(context.Background(), Params{
		InitialAmount:  amount,
		ExpectedReturn: expectedReturn,
		Volatility:     volatility,
		Iterations:     iterations,
	})
}

// boxMuller returns a standard normal draw. u is taken from (0, 1] so the
// logarithm stays finite.
func boxMuller(rng *rand.Rand) float64 {
	u := 1 - rng.Float64()
	v := rng.Float64()
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}
