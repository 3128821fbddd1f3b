// Command worker consumes simulation requests from NATS, runs the circuit
// assembly and expression pipeline, and exports assembled networks to Neo4j
// and expression trajectories to Qdrant.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/GeneBoardAI/geneboard-mvp/engine/graph"
	"github.com/GeneBoardAI/geneboard-mvp/engine/sim"
	"github.com/GeneBoardAI/geneboard-mvp/engine/trajectory"
	"github.com/GeneBoardAI/geneboard-mvp/engine/worker"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/metrics"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/mid"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/resilience"
)

var met = metrics.New()

var (
	mRequestsTotal = func(status string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("geneboard_sim_requests_total", "status", status), "Simulation requests handled")
	}
	mSimDuration  = met.Histogram("geneboard_sim_duration_seconds", "End-to-end simulation time", nil)
	mCircuitCount = met.Histogram("geneboard_sim_circuits", "Circuits assembled per request", []float64{0, 1, 2, 3, 5, 8})
)

func main() {
	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		neo4jURL    = flag.String("neo4j", "", "Neo4j bolt URL (empty disables graph export)")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "geneboard123", "Neo4j password")
		qdrantAddr  = flag.String("qdrant", "", "Qdrant gRPC address (empty disables trajectory archive)")
		collection  = flag.String("collection", "geneboard", "Qdrant collection name")
		metricsPort = flag.Int("metrics-port", 9091, "Prometheus metrics port")
		rateLimit   = flag.Float64("rate", 0, "max simulations per second (0 = unlimited)")
		horizon     = flag.Float64("horizon", 0, "integration horizon override")
	)
	flag.Parse()

	log := slog.Default()

	met.CollectRuntime("geneboard_worker", 15*time.Second)
	go serveHTTP(*metricsPort, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nc, err := nats.Connect(*natsURL, nats.Name("geneboard-worker"))
	if err != nil {
		log.Error("nats connect failed", "url", *natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Drain()
	log.Info("connected to NATS", "url", *natsURL)

	deps := worker.Deps{
		Sim: sim.New(sim.Config{Logger: log, Horizon: *horizon}),
		Breaker: resilience.NewBreaker(resilience.BreakerOpts{
			FailThreshold: 5,
			Timeout:       30 * time.Second,
		}),
		Logger: log,
		OnProcessed: func(res *sim.Result, elapsed time.Duration) {
			mRequestsTotal(res.Status).Inc()
			mSimDuration.Observe(elapsed.Seconds())
			mCircuitCount.Observe(float64(len(res.Circuits)))
		},
	}

	if *rateLimit > 0 {
		deps.Limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: *rateLimit, Burst: 1})
	}

	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			log.Error("neo4j connect failed", "error", err)
			os.Exit(1)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Error("neo4j verify failed", "error", err)
			os.Exit(1)
		}
		deps.Graph = graph.New(driver)
		log.Info("connected to Neo4j", "url", *neo4jURL)
	}

	if *qdrantAddr != "" {
		store, err := trajectory.New(*qdrantAddr, *collection)
		if err != nil {
			log.Error("qdrant connect failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		if err := store.EnsureCollection(ctx); err != nil {
			log.Error("qdrant ensure collection failed", "error", err)
			os.Exit(1)
		}
		deps.Trajectories = store
		log.Info("connected to Qdrant", "addr", *qdrantAddr, "collection", *collection)
	}

	sub, err := worker.StartConsumer(nc, deps)
	if err != nil {
		log.Error("start consumer failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Info("worker ready", "subject", worker.SimulateSubject)
	<-ctx.Done()
	log.Info("shutting down")
}

// serveHTTP exposes /metrics and /healthz.
func serveHTTP(port int, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	h := mid.Chain(mux,
		mid.Recover(log),
		mid.Logger(log),
		mid.OTel("geneboard-worker"),
	)
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, h); err != nil {
		log.Error("metrics server failed", "addr", addr, "error", err)
	}
}
