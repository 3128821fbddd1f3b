// Package sim orchestrates a full board run: parse, assemble, resolve,
// backfill, build and integrate, composed as traced pipeline stages. It owns
// the display-name mapping and the status/message envelope; the stage
// packages stay free of presentation concerns.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GeneBoardAI/geneboard-mvp/engine/board"
	"github.com/GeneBoardAI/geneboard-mvp/engine/circuit"
	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
	"github.com/GeneBoardAI/geneboard-mvp/engine/kinetics"
	"github.com/GeneBoardAI/geneboard-mvp/engine/regulation"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/fn"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/ode"
)

// DefaultMaxDuration bounds one integration in wall-clock time.
const DefaultMaxDuration = 30 * time.Second

// Config carries the service's tunables. Zero values select the defaults.
type Config struct {
	Constants   domain.Constants // nil selects domain.DefaultConstants
	Logger      *slog.Logger
	Horizon     float64
	Samples     int
	MaxDuration time.Duration
}

// Service runs simulation jobs. One Service is safe for concurrent use;
// each Run works on its own pipeline state.
type Service struct {
	constants domain.Constants
	log       *slog.Logger
	horizon   float64
	samples   int
	maxDur    time.Duration
}

// New builds a Service from cfg, filling defaults for zero values.
func New(cfg Config) *Service {
	s := &Service{
		constants: cfg.Constants,
		log:       cfg.Logger,
		horizon:   cfg.Horizon,
		samples:   cfg.Samples,
		maxDur:    cfg.MaxDuration,
	}
	if s.constants == nil {
		s.constants = domain.DefaultConstants()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.horizon <= 0 {
		s.horizon = kinetics.DefaultHorizon
	}
	if s.samples <= 0 {
		s.samples = kinetics.DefaultSamples
	}
	if s.maxDur <= 0 {
		s.maxDur = DefaultMaxDuration
	}
	return s
}

// state is the value threaded through the pipeline stages.
type state struct {
	req       Request
	constants domain.Constants

	stream   *board.Stream
	circuits []*domain.Circuit
	outside  []domain.Flagged
	outcome  regulation.Outcome
	regs     []domain.Regulation
	system   *kinetics.System
	names    []string
	mapping  map[string]string
	solution *ode.Solution
}

// Run executes one job and always returns a well-formed Result; panics in
// any stage become an error result instead of escaping to the caller.
func (s *Service) Run(ctx context.Context, req Request) (res *Result) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("simulation panic", "request_id", req.RequestID, "panic", r)
			res = errorResult(fmt.Sprintf("Simulation failed: %v", r), fmt.Sprintf("panic: %v", r))
		}
	}()

	pipeline := fn.Pipeline(
		fn.TracedStage("sim.parse", fn.Stage[*state, *state](s.parse)),
		fn.TracedStage("sim.assemble", fn.Stage[*state, *state](s.assemble)),
		fn.TracedStage("sim.resolve", fn.Stage[*state, *state](s.resolve)),
		fn.TracedStage("sim.build", fn.Stage[*state, *state](s.build)),
		fn.TracedStage("sim.integrate", fn.Stage[*state, *state](s.integrate)),
	)

	// Stages mutate the shared state in place, so diagnostics gathered
	// before a failing stage survive for the error envelope.
	st := &state{req: req, constants: s.constants.WithDial(req.Dial)}
	if _, err := pipeline(ctx, st).Unwrap(); err != nil {
		s.log.Warn("simulation failed",
			"request_id", req.RequestID,
			"error", err,
			"elapsed", time.Since(started))
		return failure(st, err)
	}

	res = success(st)
	s.log.Info("simulation complete",
		"request_id", req.RequestID,
		"circuits", len(st.circuits),
		"regulations", len(st.regs),
		"proteins", len(st.names),
		"elapsed", time.Since(started))
	return res
}

func (s *Service) parse(_ context.Context, st *state) fn.Result[*state] {
	st.stream = board.Parse(st.req.Lines)
	if len(st.stream.Components()) == 0 {
		return fn.Err[*state](domain.ErrEmptyBoard)
	}
	return fn.Ok(st)
}

func (s *Service) assemble(_ context.Context, st *state) fn.Result[*state] {
	st.circuits, st.outside = circuit.Assemble(st.stream, st.constants)
	if len(st.circuits) == 0 {
		return fn.Err[*state](domain.ErrNoCircuits)
	}
	return fn.Ok(st)
}

func (s *Service) resolve(_ context.Context, st *state) fn.Result[*state] {
	st.outcome = regulation.Resolve(st.stream, st.circuits, st.constants)
	st.regs = append(st.outcome.Regulations,
		regulation.Backfill(st.circuits, st.outcome.Regulations)...)
	return fn.Ok(st)
}

func (s *Service) build(_ context.Context, st *state) fn.Result[*state] {
	system, err := kinetics.Build(st.circuits, st.regs)
	if err != nil {
		return fn.Err[*state](err)
	}
	st.system = system
	st.names, st.mapping = displayNames(system.Proteins)
	return fn.Ok(st)
}

func (s *Service) integrate(ctx context.Context, st *state) fn.Result[*state] {
	sol, err := st.system.Simulate(ctx, s.horizon, s.samples, s.maxDur)
	if err != nil {
		return fn.Err[*state](err)
	}
	st.solution = sol
	return fn.Ok(st)
}

// displayNames assigns "Protein <letter>, Gene Circuit <gene>" per protein.
// When several proteins collide on the same name, every colliding instance
// gets a ".seq<k>" suffix in instance order.
func displayNames(proteins []*kinetics.Protein) ([]string, map[string]string) {
	base := make([]string, len(proteins))
	seen := make(map[string]int, len(proteins))
	for i, p := range proteins {
		base[i] = fmt.Sprintf("Protein %c, Gene Circuit %d", p.Letter, p.Gene)
		seen[base[i]]++
	}

	names := make([]string, len(proteins))
	mapping := make(map[string]string, len(proteins))
	counter := make(map[string]int, len(proteins))
	for i, p := range proteins {
		name := base[i]
		if seen[name] > 1 {
			counter[name]++
			name = fmt.Sprintf("Protein %c.seq%d, Gene Circuit %d", p.Letter, counter[base[i]], p.Gene)
		}
		names[i] = name
		mapping[name] = p.Label
	}
	return names, mapping
}

func success(st *state) *Result {
	series := &TimeSeries{
		Time:     st.solution.T,
		Proteins: make(map[string][]float64, len(st.names)),
	}
	finals := make(map[string]float64, len(st.names))
	for i, name := range st.names {
		series.Proteins[name] = st.solution.Y[i]
		finals[name] = st.solution.Final(i)
	}

	res := &Result{
		Status:              StatusSuccess,
		Circuits:            st.circuits,
		Regulations:         st.regs,
		RegulatorIssues:     st.outcome.Issues,
		UnpairedRegulators:  st.outcome.Unpaired,
		ExtraComponents:     extras(st),
		ProteinMapping:      st.mapping,
		TimeSeries:          series,
		FinalConcentrations: finals,
		Equations:           kinetics.Equations(st.circuits, st.regs, st.mapping),
		Errors:              []string{},
		Warnings:            []string{},
	}
	for _, issue := range st.outcome.Issues {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Regulator issue: %s: %s", issue.Label, issue.Issue))
	}
	for _, u := range st.outcome.Unpaired {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Unpaired regulator: %s: %s", u.Key, u.Issue))
	}
	return res
}

// failure maps a stage error to the user-facing error result. The no-circuit
// case keeps the structural diagnostics gathered before the pipeline stopped
// so the caller can still show what was on the board.
func failure(st *state, err error) *Result {
	switch {
	case errors.Is(err, domain.ErrEmptyBoard):
		return errorResult(
			"No components placed on the board. Place some components first.",
			err.Error())
	case errors.Is(err, domain.ErrNoCircuits):
		res := errorResult(
			"No valid circuits found. Make sure each circuit has a promoter, RBS, and CDS.",
			"No valid circuits detected")
		res.ExtraComponents = extras(st)
		return res
	default:
		return errorResult(fmt.Sprintf("Simulation failed: %v", err), err.Error())
	}
}

func errorResult(message, detail string) *Result {
	return &Result{
		Status:      StatusError,
		Message:     message,
		Circuits:    []*domain.Circuit{},
		Regulations: []domain.Regulation{},
		Errors:      []string{detail},
		Warnings:    []string{},
	}
}

func extras(st *state) domain.ExtraComponents {
	ec := domain.ExtraComponents{
		Within:    []domain.Flagged{},
		Outside:   st.outside,
		Misplaced: []domain.Flagged{},
	}
	if ec.Outside == nil {
		ec.Outside = []domain.Flagged{}
	}
	for _, circ := range st.circuits {
		ec.Within = append(ec.Within, circ.Extras...)
		ec.Misplaced = append(ec.Misplaced, circ.Misplaced...)
	}
	return ec
}
