package trajectory

import (
	"math"

	"github.com/GeneBoardAI/geneboard-mvp/engine/sim"
)

// VectorDims is the archived vector length. Every trajectory is resampled
// to this many points so runs with different sampling remain comparable.
const VectorDims = 64

// Trajectory is one protein's simulated series prepared for archival.
type Trajectory struct {
	Protein string    `json:"protein"`
	CDS     string    `json:"cds"`
	Circuit string    `json:"circuit"`
	Series  []float64 `json:"series"`
	Final   float64   `json:"final"`
}

// Match is a similarity-search hit.
type Match struct {
	ID        string            `json:"id"`
	Score     float32           `json:"score"`
	RequestID string            `json:"request_id"`
	Protein   string            `json:"protein"`
	CDS       string            `json:"cds"`
	Circuit   string            `json:"circuit"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// FromResult extracts one trajectory per protein from a successful run.
func FromResult(res *sim.Result) []Trajectory {
	if res == nil || res.TimeSeries == nil {
		return nil
	}
	circuitOf := make(map[string]string)
	for _, circ := range res.Circuits {
		for _, label := range circ.CDSLabels() {
			if _, ok := circuitOf[label]; !ok {
				circuitOf[label] = circ.Name
			}
		}
	}

	out := make([]Trajectory, 0, len(res.TimeSeries.Proteins))
	for protein, series := range res.TimeSeries.Proteins {
		cds := res.ProteinMapping[protein]
		out = append(out, Trajectory{
			Protein: protein,
			CDS:     cds,
			Circuit: circuitOf[cds],
			Series:  series,
			Final:   res.FinalConcentrations[protein],
		})
	}
	return out
}

// Embed turns a series into the archived vector: linear resampling to
// VectorDims followed by max-normalization. A flat-zero series embeds as
// the zero vector.
func Embed(series []float64) []float32 {
	resampled := resample(series, VectorDims)
	peak := 0.0
	for _, v := range resampled {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	out := make([]float32, len(resampled))
	if peak == 0 {
		return out
	}
	for i, v := range resampled {
		out[i] = float32(v / peak)
	}
	return out
}

// resample maps a series onto n points by linear interpolation over the
// index range.
func resample(series []float64, n int) []float64 {
	out := make([]float64, n)
	switch len(series) {
	case 0:
		return out
	case 1:
		for i := range out {
			out[i] = series[0]
		}
		return out
	}
	scale := float64(len(series)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * scale
		lo := int(pos)
		if lo >= len(series)-1 {
			out[i] = series[len(series)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = series[lo]*(1-frac) + series[lo+1]*frac
	}
	return out
}
