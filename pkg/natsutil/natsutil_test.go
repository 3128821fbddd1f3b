package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type payload struct {
	RequestID string `json:"request_id"`
	Count     int    `json:"count"`
}

func TestHeaderCarrier(t *testing.T) {
	msg := &headerCarrier{}
	if got := msg.Get("missing"); got != "" {
		t.Fatalf("expected empty from nil header, got %q", got)
	}
	if keys := msg.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	msg.Set("traceparent", "00-abc-def-01")
	msg.Set("traceparent", "00-abc-def-02")
	if got := msg.Get("traceparent"); got != "00-abc-def-02" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	if keys := msg.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan payload, 1)
	sub, err := Subscribe(nc, "t.sub", func(ctx context.Context, p payload) {
		ch <- p
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "t.sub", payload{RequestID: "run-1", Count: 3}); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-ch:
		if p.RequestID != "run-1" || p.Count != 3 {
			t.Fatalf("unexpected: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	nc := startTestNATS(t)

	called := make(chan struct{}, 1)
	sub, err := Subscribe(nc, "t.malformed", func(ctx context.Context, p payload) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	nc.Publish("t.malformed", []byte("{bad"))
	nc.Flush()

	select {
	case <-called:
		t.Fatal("handler should not be called for malformed data")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRequest(t *testing.T) {
	nc := startTestNATS(t)

	sub, err := nc.Subscribe("t.req", func(msg *nats.Msg) {
		var req payload
		json.Unmarshal(msg.Data, &req)
		data, _ := json.Marshal(payload{RequestID: req.RequestID, Count: req.Count * 2})
		msg.Respond(data)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	resp, err := Request[payload, payload](context.Background(), nc, "t.req", payload{RequestID: "r", Count: 5})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RequestID != "r" || resp.Count != 10 {
		t.Fatalf("unexpected resp: %+v", resp)
	}
}

func TestRequestContextDeadline(t *testing.T) {
	nc := startTestNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Request[payload, payload](ctx, nc, "t.noreply", payload{RequestID: "x"})
	if err == nil {
		t.Fatal("expected deadline error with no responder")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("context deadline was not honored")
	}
}

func TestPublishMarshalError(t *testing.T) {
	nc := startTestNATS(t)
	if err := Publish(context.Background(), nc, "t.err", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestRequestUnmarshalError(t *testing.T) {
	nc := startTestNATS(t)

	sub, err := nc.Subscribe("t.badjson", func(msg *nats.Msg) {
		msg.Respond([]byte("{invalid"))
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if _, err := Request[payload, payload](context.Background(), nc, "t.badjson", payload{RequestID: "x"}); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
