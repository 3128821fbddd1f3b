// Package worker consumes simulation requests from NATS, runs them through
// the sim service, and publishes the result to the requester. Successful
// runs are optionally exported to the graph and trajectory stores; the
// exports sit behind a circuit breaker so a down sink never wedges replies.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/GeneBoardAI/geneboard-mvp/engine/graph"
	"github.com/GeneBoardAI/geneboard-mvp/engine/sim"
	"github.com/GeneBoardAI/geneboard-mvp/engine/trajectory"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/resilience"
)

const (
	// SimulateSubject is the NATS subject for incoming simulation requests.
	SimulateSubject = "geneboard.simulate"
	// ResultSubject receives results for requests without a reply subject.
	ResultSubject = "geneboard.simulate.result"
	// DLQSubject is the dead letter queue for messages that keep failing.
	DLQSubject = "geneboard.simulate.dlq"
	// MaxRetries before a message is routed to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Deps holds the worker's dependencies. Graph and Trajectories are optional
// export sinks; Breaker guards them together. A nil Limiter runs unpaced.
type Deps struct {
	Sim          *sim.Service
	Graph        *graph.GraphStore
	Trajectories *trajectory.Store
	Breaker      *resilience.Breaker
	Limiter      *resilience.Limiter
	Logger       *slog.Logger
	// OnProcessed is called after every handled request, for metrics.
	OnProcessed func(res *sim.Result, elapsed time.Duration)
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request sim.Request `json:"request"`
	Raw     string      `json:"raw,omitempty"`
	Error   string      `json:"error"`
	Retries int         `json:"retries"`
}

// StartConsumer subscribes to the simulate subject with retry and DLQ
// support. Messages are handled one at a time per subscription.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	if deps.Sim == nil {
		return nil, fmt.Errorf("worker: sim service is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	breaker := deps.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}

	return nc.Subscribe(SimulateSubject, func(msg *nats.Msg) {
		ctx := context.Background()

		var req sim.Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			// A payload that does not parse will never parse; straight to
			// the DLQ.
			log.Error("worker: bad request payload", "error", err)
			publishDLQ(nc, log, dlqMessage{Raw: string(msg.Data), Error: err.Error()})
			return
		}
		if req.RequestID == "" {
			req.RequestID = uuid.NewString()
		}

		if deps.Limiter != nil {
			if err := deps.Limiter.Wait(ctx); err != nil {
				log.Warn("worker: limiter interrupted", "error", err)
				return
			}
		}

		started := time.Now()
		res := deps.Sim.Run(ctx, req)
		if deps.OnProcessed != nil {
			deps.OnProcessed(res, time.Since(started))
		}

		if err := publishResult(nc, msg, res); err != nil {
			retries := retryCount(msg) + 1
			log.Error("worker: result publish failed",
				"request_id", req.RequestID, "retry", retries, "error", err)
			if retries >= MaxRetries {
				publishDLQ(nc, log, dlqMessage{Request: req, Error: err.Error(), Retries: retries})
			} else {
				requeue(nc, log, msg, retries)
			}
			return
		}

		if !res.IsError() {
			export(ctx, deps, breaker, log, req.RequestID, res)
		}
	})
}

func publishResult(nc *nats.Conn, msg *nats.Msg, res *sim.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	subject := msg.Reply
	if subject == "" {
		subject = ResultSubject
	}
	return nc.Publish(subject, data)
}

func retryCount(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	n := 0
	fmt.Sscanf(msg.Header.Get(retryHeader), "%d", &n)
	return n
}

func requeue(nc *nats.Conn, log *slog.Logger, msg *nats.Msg, retries int) {
	retry := nats.NewMsg(SimulateSubject)
	retry.Data = msg.Data
	retry.Reply = msg.Reply
	retry.Header = nats.Header{}
	retry.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
	if err := nc.PublishMsg(retry); err != nil {
		log.Error("worker: retry publish failed", "error", err)
	}
}

func publishDLQ(nc *nats.Conn, log *slog.Logger, dlq dlqMessage) {
	data, _ := json.Marshal(dlq)
	if err := nc.Publish(DLQSubject, data); err != nil {
		log.Error("worker: DLQ publish failed", "error", err)
	}
}

// export writes the run to the configured sinks through the shared breaker.
// Export failures are logged and swallowed; the requester already has their
// result.
func export(ctx context.Context, deps Deps, breaker *resilience.Breaker, log *slog.Logger, requestID string, res *sim.Result) {
	if deps.Graph != nil {
		err := breaker.Call(ctx, func(ctx context.Context) error {
			return deps.Graph.SaveNetwork(ctx, requestID, res.Circuits, res.Regulations)
		})
		if err != nil {
			log.Warn("worker: graph export failed", "request_id", requestID, "error", err)
		}
	}
	if deps.Trajectories != nil {
		err := breaker.Call(ctx, func(ctx context.Context) error {
			return deps.Trajectories.Archive(ctx, requestID, trajectory.FromResult(res))
		})
		if err != nil {
			log.Warn("worker: trajectory export failed", "request_id", requestID, "error", err)
		}
	}
}
