// Package analysis provides standalone parameter studies that run outside
// the board pipeline. The promoter-strength sweep integrates a two-state
// transcription/translation model per strength and reports steady-state and
// response-time metrics.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/GeneBoardAI/geneboard-mvp/pkg/ode"
)

// DefaultStrengths is the standard sweep grid.
var DefaultStrengths = []float64{0.5, 1, 2, 3, 5}

// Params are the fixed kinetic parameters of the two-state model. Zero
// values select the defaults.
type Params struct {
	TranscriptionRate  float64 `json:"transcription_rate"`  // per strength unit
	MRNADegradation    float64 `json:"mrna_degradation"`    //
	TranslationRate    float64 `json:"translation_rate"`    //
	RBSEfficiency      float64 `json:"rbs_efficiency"`      //
	ProteinDegradation float64 `json:"protein_degradation"` //
	Horizon            float64 `json:"horizon"`
	Samples            int     `json:"samples"`
}

func (p Params) withDefaults() Params {
	if p.TranscriptionRate <= 0 {
		p.TranscriptionRate = 5.0
	}
	if p.MRNADegradation <= 0 {
		p.MRNADegradation = 1.0
	}
	if p.TranslationRate <= 0 {
		p.TranslationRate = 7.0
	}
	if p.RBSEfficiency <= 0 {
		p.RBSEfficiency = 1.0
	}
	if p.ProteinDegradation <= 0 {
		p.ProteinDegradation = 1.0
	}
	if p.Horizon <= 0 {
		p.Horizon = 10.0
	}
	if p.Samples <= 0 {
		p.Samples = 100
	}
	return p
}

// Point is the outcome for one promoter strength.
type Point struct {
	Strength     float64   `json:"strength"`
	Time         []float64 `json:"time"`
	MRNA         []float64 `json:"mrna"`
	Protein      []float64 `json:"protein"`
	FinalMRNA    float64   `json:"final_mrna"`
	FinalProtein float64   `json:"final_protein"`
	SteadyState  float64   `json:"steady_state"` // analytical protein steady state
	TimeTo90     float64   `json:"time_to_90"`   // time to 90% of the final protein level
	FoldChange   float64   `json:"fold_change"`  // vs the first strength in the sweep
}

// Report is the full sweep outcome in strength order.
type Report struct {
	Params  Params  `json:"params"`
	Points  []Point `json:"points"`
	Elapsed string  `json:"elapsed"`
}

// Sweep integrates the two-state model once per strength:
//
//	dm/dt = s*k_tx - delta_m*m
//	dp/dt = k_tl*e_rbs*m - delta_p*p
//
// starting from (0, 0). Strengths defaults to DefaultStrengths when empty.
func Sweep(ctx context.Context, strengths []float64, params Params) (*Report, error) {
	if len(strengths) == 0 {
		strengths = DefaultStrengths
	}
	p := params.withDefaults()
	started := time.Now()

	report := &Report{Params: p, Points: make([]Point, 0, len(strengths))}
	for _, s := range strengths {
		point, err := run(ctx, s, p)
		if err != nil {
			return nil, fmt.Errorf("sweep strength %g: %w", s, err)
		}
		report.Points = append(report.Points, point)
	}

	base := report.Points[0].FinalProtein
	for i := range report.Points {
		if base > 0 {
			report.Points[i].FoldChange = report.Points[i].FinalProtein / base
		}
	}
	report.Elapsed = time.Since(started).String()
	return report, nil
}

func run(ctx context.Context, strength float64, p Params) (Point, error) {
	rhs := func(_ float64, y, dydt []float64) {
		dydt[0] = strength*p.TranscriptionRate - p.MRNADegradation*y[0]
		dydt[1] = p.TranslationRate*p.RBSEfficiency*y[0] - p.ProteinDegradation*y[1]
	}
	sol, err := ode.Solve(ctx, ode.Problem{
		RHS:     rhs,
		Y0:      []float64{0, 0},
		T0:      0,
		T1:      p.Horizon,
		Samples: p.Samples,
	})
	if err != nil {
		return Point{}, err
	}

	mRNA, protein := sol.Y[0], sol.Y[1]
	point := Point{
		Strength:     strength,
		Time:         sol.T,
		MRNA:         mRNA,
		Protein:      protein,
		FinalMRNA:    sol.Final(0),
		FinalProtein: sol.Final(1),
		SteadyState: strength * p.TranscriptionRate / p.MRNADegradation *
			p.TranslationRate * p.RBSEfficiency / p.ProteinDegradation,
	}

	target := 0.9 * point.FinalProtein
	point.TimeTo90 = sol.T[len(sol.T)-1]
	for i, v := range protein {
		if v >= target {
			point.TimeTo90 = sol.T[i]
			break
		}
	}
	return point, nil
}
