package sim

import (
	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
	"github.com/GeneBoardAI/geneboard-mvp/engine/kinetics"
)

// Request is one simulation job: the raw board lines plus optional tuning.
type Request struct {
	RequestID string      `json:"request_id,omitempty"`
	Lines     []string    `json:"lines"`
	Dial      domain.Dial `json:"dial,omitempty"`
}

// TimeSeries carries the sampled trajectories, one series per display name
// over a shared time grid.
type TimeSeries struct {
	Time     []float64            `json:"time"`
	Proteins map[string][]float64 `json:"proteins"`
}

// Result is the engine's sole contract with downstream consumers. Structural
// diagnostics ride along as warnings and never empty the payload; only a
// board with no viable circuit or an internal failure produces status
// "error".
type Result struct {
	Status              string                       `json:"status"`
	Message             string                       `json:"message,omitempty"`
	Circuits            []*domain.Circuit            `json:"circuits"`
	Regulations         []domain.Regulation          `json:"regulations"`
	RegulatorIssues     []domain.RegulatorIssue      `json:"regulator_issues,omitempty"`
	UnpairedRegulators  []domain.UnpairedRegulator   `json:"unpaired_regulators,omitempty"`
	ExtraComponents     domain.ExtraComponents       `json:"extra_components"`
	ProteinMapping      map[string]string            `json:"protein_mapping,omitempty"`
	TimeSeries          *TimeSeries                  `json:"time_series,omitempty"`
	FinalConcentrations map[string]float64           `json:"final_concentrations,omitempty"`
	Equations           map[string]kinetics.Equation `json:"equations,omitempty"`
	Errors              []string                     `json:"errors"`
	Warnings            []string                     `json:"warnings"`
}

// IsError reports whether the run produced a terminal error result.
func (r *Result) IsError() bool { return r.Status == StatusError }

const (
	StatusSuccess = "success"
	StatusError   = "error"
)
