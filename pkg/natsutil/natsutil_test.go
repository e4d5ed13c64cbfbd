package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
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

type echoReq struct {
	Name string `json:"name"`
}

type echoResp struct {
	Greeting string `json:"greeting"`
	TraceID  string `json:"trace_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)
	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func serveEcho(t *testing.T, nc *nats.Conn) {
	t.Helper()
	sub, err := Serve(nc, "test.echo", "echo", func(ctx context.Context, req echoReq) echoResp {
		resp := echoResp{Greeting: "hello " + req.Name}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			resp.TraceID = sc.TraceID().String()
		}
		return resp
	}, func(err error) echoResp {
		return echoResp{Error: err.Error()}
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })
}

func TestRequestReply(t *testing.T) {
	nc := startTestNATS(t)
	serveEcho(t, nc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := Request[echoReq, echoResp](ctx, nc, "test.echo", echoReq{Name: "alt"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Greeting != "hello alt" {
		t.Fatalf("unexpected reply %+v", resp)
	}
}

func TestRequestPropagatesTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	nc := startTestNATS(t)
	serveEcho(t, nc)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "client")
	defer span.End()

	resp, err := Request[echoReq, echoResp](ctx, nc, "test.echo", echoReq{Name: "bury"})
	if err != nil {
		t.Fatal(err)
	}
	if want := span.SpanContext().TraceID().String(); resp.TraceID != want {
		t.Fatalf("expected trace %s, got %q", want, resp.TraceID)
	}
}

func TestServeMalformed(t *testing.T) {
	nc := startTestNATS(t)
	serveEcho(t, nc)

	msg, err := nc.Request("test.echo", []byte("{not json"), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	var resp echoResp
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" || resp.Greeting != "" {
		t.Fatalf("expected a decode error reply, got %+v", resp)
	}
}

func TestRequestNoResponders(t *testing.T) {
	nc := startTestNATS(t)
	_, err := Request[echoReq, echoResp](context.Background(), nc, "test.nobody", echoReq{})
	if !errors.Is(err, nats.ErrNoResponders) {
		t.Fatalf("expected no responders, got %v", err)
	}
}
