// Package kinetics turns assembled circuits and their regulation list into
// an evaluable system of differential equations: one state variable per
// coding-sequence instance, with Hill-function production terms and
// first-order degradation.
package kinetics

import (
	"context"
	"fmt"
	"time"

	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/ode"
)

// Default simulation window: 24 hours sampled 200 times.
const (
	DefaultHorizon = 24.0
	DefaultSamples = 200
)

const (
	basalRate      = 0.01
	lowSubstitute  = 0.01
	defaultKa      = 0.2
	defaultKr      = 0.35
	defaultInit    = 0.01
)

// Protein is one simulated state variable: a single CDS instance with its
// effective kinetic parameters resolved.
type Protein struct {
	Index    int
	Label    string
	Circuit  string
	Gene     int // gene ordinal parsed from the label's trailing token
	Letter   byte
	K0       float64
	KProd    float64
	Degrade  float64
	InitConc float64

	terms []hillTerm
}

// hillTerm is one precomputed regulation factor in a protein's production
// product. Exactly one of srcIndex >= 0 or fixed applies.
type hillTerm struct {
	activation bool
	k          float64 // Ka or Kr
	n          float64
	srcIndex   int     // protein index of the live source, -1 for fixed
	fixed      float64 // environmental concentration for floating sources
}

// System is the assembled initial-value problem.
type System struct {
	Proteins    []*Protein
	hasFeedback bool
}

// Build derives one protein per CDS instance across all circuits and
// resolves every regulation that affects it into an evaluable term. A
// regulation whose source is neither a simulated protein nor an
// environmental concentration marks a resolver defect and fails the build.
func Build(circuits []*domain.Circuit, regs []domain.Regulation) (*System, error) {
	sys := &System{}

	for _, circ := range circuits {
		basePromoter := basePromoterStrength(circ)
		for _, comp := range circ.Components {
			if comp.Role != domain.RoleCDS {
				continue
			}
			p := &Protein{
				Index:   len(sys.Proteins),
				Label:   comp.Label,
				Circuit: circ.Name,
			}
			p.Letter, p.Gene = geneTag(comp.Label)

			promStrength := basePromoter
			rbsEff := feedingRBSEfficiency(circ, comp.Label)
			degrade := comp.Param("degradation_rate", 0.1)
			if fb, ok := circ.Fallbacks[comp.Label]; ok {
				if fb.MissingPromoter {
					promStrength = fb.PromStrength
				}
				if fb.MissingRBS {
					rbsEff = fb.RBSEfficiency
				}
				if fb.MissingTerminator {
					degrade = fb.DegradationRate
				}
			}
			p.KProd = promStrength * rbsEff
			p.Degrade = degrade
			p.InitConc = comp.Param("init_conc", defaultInit)

			sys.Proteins = append(sys.Proteins, p)
		}
	}

	firstByLabel := make(map[string]int)
	for _, p := range sys.Proteins {
		if _, ok := firstByLabel[p.Label]; !ok {
			firstByLabel[p.Label] = p.Index
		}
	}

	// A regulation naming a label applies to every instance of that label.
	for _, p := range sys.Proteins {
		var constitutive *domain.Regulation
		nonConst := 0
		for i := range regs {
			reg := &regs[i]
			if !affects(reg, p.Label) {
				continue
			}
			if reg.Kind == domain.RegConstitutive {
				constitutive = reg
				continue
			}
			nonConst++
			term, err := resolveTerm(reg, firstByLabel)
			if err != nil {
				return nil, err
			}
			p.terms = append(p.terms, term)
			if _, ok := firstByLabel[reg.Source]; ok {
				sys.hasFeedback = true
			}
		}

		switch {
		case nonConst > 0:
			p.K0 = basalRate
		case constitutive != nil:
			p.K0 = constitutive.Params.BasalRate
		default:
			p.K0 = basalRate
		}
	}

	return sys, nil
}

func affects(reg *domain.Regulation, label string) bool {
	for _, n := range reg.AffectedCDSs {
		if n == label {
			return true
		}
	}
	return false
}

func resolveTerm(reg *domain.Regulation, firstByLabel map[string]int) (hillTerm, error) {
	term := hillTerm{
		activation: reg.Kind.IsActivation(),
		srcIndex:   -1,
	}

	term.n = reg.Params.N
	if term.n == 0 {
		if reg.Kind.IsSelf() {
			term.n = 4
		} else {
			term.n = 2
		}
	}
	if term.activation {
		term.k = reg.Params.Ka
		if term.k == 0 {
			term.k = defaultKa
		}
	} else {
		term.k = reg.Params.Kr
		if term.k == 0 {
			term.k = defaultKr
		}
	}

	if idx, ok := firstByLabel[reg.Source]; ok {
		term.srcIndex = idx
		return term, nil
	}
	if reg.Kind == domain.RegInducedActivation || reg.Kind == domain.RegEnvironmentalRepression {
		term.fixed = reg.Params.Concentration
		if term.fixed == 0 {
			term.fixed = 1.0
		}
		return term, nil
	}
	return term, fmt.Errorf("%w: %q for %s regulation",
		domain.ErrUnresolvedSource, reg.Source, reg.Kind)
}

// basePromoterStrength is the strength of the last promoter placed before
// the circuit's first CDS, or a low substitute when none precedes it.
func basePromoterStrength(circ *domain.Circuit) float64 {
	strength := lowSubstitute
	for _, comp := range circ.Components {
		switch comp.Role {
		case domain.RoleCDS:
			return strength
		case domain.RolePromoter:
			strength = comp.Param("strength", 0)
		}
	}
	return strength
}

func feedingRBSEfficiency(circ *domain.Circuit, cdsLabel string) float64 {
	rbsLabel, ok := circ.CDSToRBS[cdsLabel]
	if !ok {
		return lowSubstitute
	}
	for _, comp := range circ.Components {
		if comp.Role == domain.RoleRBS && comp.Label == rbsLabel {
			return comp.Param("efficiency", lowSubstitute)
		}
	}
	return lowSubstitute
}

// RHS evaluates the derivative of every protein concentration:
// dP_i/dt = k0 + kProd * Π_j f_j - degradation * P_i.
func (sys *System) RHS(_ float64, p, dpdt []float64) {
	for i, pr := range sys.Proteins {
		f := 1.0
		for _, term := range pr.terms {
			f *= term.eval(p)
		}
		dpdt[i] = pr.K0 + pr.KProd*f - pr.Degrade*p[i]
	}
}

func (t hillTerm) eval(p []float64) float64 {
	v := t.fixed
	if t.srcIndex >= 0 {
		v = p[t.srcIndex]
	}
	vn := pow(v, t.n)
	kn := pow(t.k, t.n)
	if t.activation {
		return vn / (kn + vn)
	}
	return kn / (kn + vn)
}

// pow avoids math.Pow for the small integer exponents Hill coefficients
// take in practice.
func pow(v, n float64) float64 {
	switch n {
	case 1:
		return v
	case 2:
		return v * v
	case 3:
		return v * v * v
	case 4:
		vv := v * v
		return vv * vv
	}
	out := 1.0
	for i := 0; i < int(n); i++ {
		out *= v
	}
	return out
}

// InitialState builds the starting concentrations. An all-zero state with
// three or more proteins and live regulatory feedback gets a symmetry-
// breaking seed so oscillator rings do not sit motionless at their unstable
// fixed point; an all-zero state without feedback starts uniformly small.
func (sys *System) InitialState() []float64 {
	p0 := make([]float64, len(sys.Proteins))
	allZero := true
	for i, pr := range sys.Proteins {
		p0[i] = pr.InitConc
		if pr.InitConc != 0 {
			allZero = false
		}
	}
	if !allZero {
		return p0
	}

	if len(p0) >= 3 && sys.hasFeedback {
		seeds := []float64{1.0, 0.1, 0.05}
		for i := range p0 {
			if i < len(seeds) {
				p0[i] = seeds[i]
			} else {
				p0[i] = defaultInit
			}
		}
		return p0
	}
	for i := range p0 {
		p0[i] = defaultInit
	}
	return p0
}

// Simulate integrates the system over [0, horizon] with the given sample
// count. The context cancels a long-running integration; maxDur bounds it
// in wall-clock time.
func (sys *System) Simulate(ctx context.Context, horizon float64, samples int, maxDur time.Duration) (*ode.Solution, error) {
	if len(sys.Proteins) == 0 {
		return nil, fmt.Errorf("kinetics: %w", domain.ErrNoCircuits)
	}
	sol, err := ode.Solve(ctx, ode.Problem{
		RHS:         sys.RHS,
		Y0:          sys.InitialState(),
		T0:          0,
		T1:          horizon,
		Samples:     samples,
		MaxDuration: maxDur,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIntegration, err)
	}
	return sol, nil
}

// geneTag reads the display letter and gene ordinal from a CDS label's
// trailing token: cds_1 -> (A, 1), cds_b -> (B, 2). Unrecognised labels
// default to gene 1.
func geneTag(label string) (byte, int) {
	tail := label
	for i := len(label) - 1; i >= 0; i-- {
		if label[i] == '_' {
			tail = label[i+1:]
			break
		}
	}
	if tail == label {
		// cds2 spelling without an underscore
		for len(tail) > 0 && (tail[0] < '0' || tail[0] > '9') {
			tail = tail[1:]
		}
	}
	if len(tail) == 0 {
		return 'A', 1
	}
	c := tail[0]
	switch {
	case c >= '1' && c <= '9':
		return 'A' + (c - '1'), int(c - '0')
	case c >= 'a' && c <= 'z':
		return 'A' + (c - 'a'), int(c-'a') + 1
	case c >= 'A' && c <= 'Z':
		return c, int(c-'A') + 1
	}
	return 'A', 1
}
