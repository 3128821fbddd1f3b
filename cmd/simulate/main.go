// Command simulate reads a board description, runs the circuit assembly and
// expression pipeline, and writes the result as JSON to stdout. With -nats
// it submits the request to a running worker instead of simulating locally.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
	"github.com/GeneBoardAI/geneboard-mvp/engine/sim"
	"github.com/GeneBoardAI/geneboard-mvp/engine/worker"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/natsutil"
)

func main() {
	var (
		input     = flag.String("input", "-", "board file (one placement line per row), - for stdin")
		dialFile  = flag.String("dial", "", "JSON file of dial adjustments")
		constFile = flag.String("constants", "", "JSON file of kinetic constants (replaces the built-in table)")
		natsURL   = flag.String("nats", "", "submit over NATS to a worker instead of running locally")
		horizon   = flag.Float64("horizon", 0, "integration horizon override")
		samples   = flag.Int("samples", 0, "time-series sample count override")
		pretty    = flag.Bool("pretty", false, "indent output JSON")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lines, err := readLines(*input)
	if err != nil {
		fatalf("read input: %v", err)
	}

	req := sim.Request{RequestID: uuid.NewString(), Lines: lines}
	if *dialFile != "" {
		if err := readJSON(*dialFile, &req.Dial); err != nil {
			fatalf("read dial: %v", err)
		}
	}

	var res *sim.Result
	if *natsURL != "" {
		res, err = runRemote(ctx, *natsURL, req)
		if err != nil {
			fatalf("remote simulate: %v", err)
		}
	} else {
		var constants domain.Constants
		if *constFile != "" {
			if err := readJSON(*constFile, &constants); err != nil {
				fatalf("read constants: %v", err)
			}
			if err := constants.Validate(); err != nil {
				fatalf("constants: %v", err)
			}
		}
		svc := sim.New(sim.Config{
			Constants: constants,
			Logger:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
			Horizon:   *horizon,
			Samples:   *samples,
		})
		res = svc.Run(ctx, req)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		fatalf("encode result: %v", err)
	}
	if res.IsError() {
		os.Exit(1)
	}
}

func runRemote(ctx context.Context, url string, req sim.Request) (*sim.Result, error) {
	nc, err := nats.Connect(url, nats.Name("geneboard-simulate"))
	if err != nil {
		return nil, err
	}
	defer nc.Close()
	res, err := natsutil.Request[sim.Request, sim.Result](ctx, nc, worker.SimulateSubject, req)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func readLines(path string) ([]string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	// Blank lines separate circuits, so keep them; only strip the trailing
	// empty tail left by a final newline.
	lines := strings.Split(string(data), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
