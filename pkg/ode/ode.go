// Package ode solves initial-value problems on a fixed output grid. It is
// the numeric boundary of the engine: callers hand it a right-hand side and
// an initial state and get back sampled trajectories. Integration is
// cancellable through the context, bounded by wall-clock time, and aborts on
// numeric divergence instead of returning garbage.
package ode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Sentinel errors surfaced by Solve.
var (
	ErrDiverged = errors.New("ode: solution diverged")
	ErrTimeout  = errors.New("ode: integration exceeded time budget")
)

const (
	defaultSubSteps    = 20
	defaultMaxDuration = 30 * time.Second
)

// Problem is one initial-value problem: dy/dt = RHS(t, y), y(T0) = Y0,
// sampled at Samples evenly spaced points over [T0, T1].
type Problem struct {
	RHS     func(t float64, y, dydt []float64)
	Y0      []float64
	T0, T1  float64
	Samples int

	// SubSteps is the number of fixed Runge-Kutta steps taken between two
	// consecutive output samples. Zero means a default of 20.
	SubSteps int
	// MaxDuration bounds wall-clock integration time. Zero means 30s.
	MaxDuration time.Duration
}

// Solution holds the sampled trajectories: T is the time grid, Y[i] is the
// series for state variable i (len(Y[i]) == len(T)).
type Solution struct {
	T []float64
	Y [][]float64
}

// Final returns the last sample of variable i.
func (s *Solution) Final(i int) float64 {
	return s.Y[i][len(s.T)-1]
}

// Solve integrates the problem with the classic fourth-order Runge-Kutta
// method on a fixed grid. It checks the context between output samples and
// fails fast on NaN or Inf anywhere in the state.
func Solve(ctx context.Context, p Problem) (*Solution, error) {
	if p.RHS == nil {
		return nil, errors.New("ode: nil RHS")
	}
	if len(p.Y0) == 0 {
		return nil, errors.New("ode: empty initial state")
	}
	if p.Samples < 2 {
		return nil, fmt.Errorf("ode: need at least 2 samples, got %d", p.Samples)
	}
	if p.T1 <= p.T0 {
		return nil, fmt.Errorf("ode: bad horizon [%g, %g]", p.T0, p.T1)
	}
	subSteps := p.SubSteps
	if subSteps <= 0 {
		subSteps = defaultSubSteps
	}
	maxDur := p.MaxDuration
	if maxDur <= 0 {
		maxDur = defaultMaxDuration
	}

	dim := len(p.Y0)
	grid := floats.Span(make([]float64, p.Samples), p.T0, p.T1)

	sol := &Solution{
		T: grid,
		Y: make([][]float64, dim),
	}
	for i := range sol.Y {
		sol.Y[i] = make([]float64, p.Samples)
	}

	y := make([]float64, dim)
	copy(y, p.Y0)
	record(sol, 0, y)

	// Scratch buffers reused across every step.
	k1 := make([]float64, dim)
	k2 := make([]float64, dim)
	k3 := make([]float64, dim)
	k4 := make([]float64, dim)
	tmp := make([]float64, dim)

	deadline := time.Now().Add(maxDur)

	for s := 1; s < p.Samples; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		t := grid[s-1]
		h := (grid[s] - grid[s-1]) / float64(subSteps)
		for step := 0; step < subSteps; step++ {
			rk4Step(p.RHS, t, h, y, k1, k2, k3, k4, tmp)
			t += h
		}

		for _, v := range y {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w at t=%g", ErrDiverged, grid[s])
			}
		}
		record(sol, s, y)
	}

	return sol, nil
}

func record(sol *Solution, sample int, y []float64) {
	for i, v := range y {
		sol.Y[i][sample] = v
	}
}

// rk4Step advances y in place by one step of size h.
func rk4Step(rhs func(float64, []float64, []float64), t, h float64, y, k1, k2, k3, k4, tmp []float64) {
	rhs(t, y, k1)

	for i := range y {
		tmp[i] = y[i] + h/2*k1[i]
	}
	rhs(t+h/2, tmp, k2)

	for i := range y {
		tmp[i] = y[i] + h/2*k2[i]
	}
	rhs(t+h/2, tmp, k3)

	for i := range y {
		tmp[i] = y[i] + h*k3[i]
	}
	rhs(t+h, tmp, k4)

	for i := range y {
		y[i] += h / 6 * (k1[i] + 2*k2[i] + 2*k3[i] + k4[i])
	}
}
