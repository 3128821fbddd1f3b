package worker

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/GeneBoardAI/geneboard-mvp/engine/sim"
)

func startNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	ns.Start()
	if !ns.ReadyForConnections(2 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	return ns, nc
}

func testDeps() Deps {
	return Deps{
		Sim:    sim.New(sim.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestConsumerRepliesWithResult(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	sub, err := StartConsumer(nc, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	req := sim.Request{
		RequestID: "run-1",
		Lines:     []string{"['promoter_1']", "['rbs_1']", "['cds_1']"},
	}
	data, _ := json.Marshal(req)

	msg, err := nc.Request(SimulateSubject, data, 5*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	var res sim.Result
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.Status != sim.StatusSuccess {
		t.Errorf("status = %q (%q)", res.Status, res.Message)
	}
	if len(res.Circuits) != 1 {
		t.Errorf("circuits = %d", len(res.Circuits))
	}
}

func TestConsumerPublishesToResultSubject(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	resultSub, err := nc.SubscribeSync(ResultSubject)
	if err != nil {
		t.Fatal(err)
	}

	sub, err := StartConsumer(nc, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	req := sim.Request{Lines: []string{"['promoter_1']", "['rbs_1']", "['cds_1']"}}
	data, _ := json.Marshal(req)
	nc.Publish(SimulateSubject, data)
	nc.Flush()

	msg, err := resultSub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no result on %s: %v", ResultSubject, err)
	}
	var res sim.Result
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Status != sim.StatusSuccess {
		t.Errorf("status = %q (%q)", res.Status, res.Message)
	}
}

func TestConsumerErrorResultStillReplies(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	sub, err := StartConsumer(nc, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	// A board with no CDS is a user error, not a retry case: the requester
	// gets the error result directly.
	req := sim.Request{Lines: []string{"['promoter_1']", "['rbs_1']"}}
	data, _ := json.Marshal(req)
	msg, err := nc.Request(SimulateSubject, data, 5*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var res sim.Result
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Status != sim.StatusError {
		t.Errorf("status = %q, want error", res.Status)
	}
}

func TestConsumerBadPayloadGoesToDLQ(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	dlqSub, err := nc.SubscribeSync(DLQSubject)
	if err != nil {
		t.Fatal(err)
	}

	sub, err := StartConsumer(nc, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	nc.Publish(SimulateSubject, []byte("{not json"))
	nc.Flush()

	msg, err := dlqSub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("expected DLQ message: %v", err)
	}
	var dlq dlqMessage
	if err := json.Unmarshal(msg.Data, &dlq); err != nil {
		t.Fatalf("unmarshal DLQ: %v", err)
	}
	if dlq.Error == "" || dlq.Raw == "" {
		t.Errorf("dlq = %+v, want error and raw payload", dlq)
	}
}

func TestConsumerRequiresSimService(t *testing.T) {
	if _, err := StartConsumer(nil, Deps{}); err == nil {
		t.Fatal("expected error for missing sim service")
	}
}

func TestConsumerOnProcessedHook(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	deps := testDeps()
	processed := make(chan string, 1)
	deps.OnProcessed = func(res *sim.Result, _ time.Duration) {
		processed <- res.Status
	}

	sub, err := StartConsumer(nc, deps)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	req := sim.Request{Lines: []string{"['promoter_1']", "['rbs_1']", "['cds_1']"}}
	data, _ := json.Marshal(req)
	nc.Publish(SimulateSubject, data)
	nc.Flush()

	select {
	case status := <-processed:
		if status != sim.StatusSuccess {
			t.Errorf("processed status = %q", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnProcessed never called")
	}
}
