// Command sweep runs the standalone promoter-strength study and writes the
// report as JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/GeneBoardAI/geneboard-mvp/engine/analysis"
)

func main() {
	var (
		strengthsArg = flag.String("strengths", "", "comma-separated promoter strengths (default 0.5,1,2,3,5)")
		transcription = flag.Float64("transcription", 0, "transcription rate per strength unit")
		mrnaDeg      = flag.Float64("mrna-degradation", 0, "mRNA degradation rate")
		translation  = flag.Float64("translation", 0, "translation rate")
		rbs          = flag.Float64("rbs", 0, "RBS efficiency")
		proteinDeg   = flag.Float64("protein-degradation", 0, "protein degradation rate")
		horizon      = flag.Float64("horizon", 0, "integration horizon")
		samples      = flag.Int("samples", 0, "samples per strength")
		pretty       = flag.Bool("pretty", false, "indent output JSON")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	strengths, err := parseStrengths(*strengthsArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse strengths: %v\n", err)
		os.Exit(1)
	}

	report, err := analysis.Sweep(ctx, strengths, analysis.Params{
		TranscriptionRate:  *transcription,
		MRNADegradation:    *mrnaDeg,
		TranslationRate:    *translation,
		RBSEfficiency:      *rbs,
		ProteinDegradation: *proteinDeg,
		Horizon:            *horizon,
		Samples:            *samples,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
}

func parseStrengths(arg string) ([]float64, error) {
	if strings.TrimSpace(arg) == "" {
		return nil, nil // Sweep falls back to DefaultStrengths
	}
	var out []float64
	for _, part := range strings.Split(arg, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}
