// Package natsutil provides typed NATS request/reply helpers with
// OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Handler answers one decoded request.
type Handler[Req, Resp any] func(ctx context.Context, req Req) Resp

// Serve answers JSON requests on subject within queue group queue, so that
// several replicas share the load. Requests that do not decode are answered
// with malformed(err). Messages without a reply subject are dropped.
func Serve[Req, Resp any](nc *nats.Conn, subject, queue string, handler Handler[Req, Resp], malformed func(error) Resp) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if msg.Reply == "" {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		var req Req
		var resp Resp
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			resp = malformed(fmt.Errorf("decode %s: %w", subject, err))
		} else {
			resp = handler(ctx, req)
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return
		}
		reply := &nats.Msg{Subject: msg.Reply, Data: data}
		otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(reply))
		_ = msg.RespondMsg(reply)
	})
}

// Request sends a JSON-encoded request and decodes the response. The
// context deadline bounds the wait; without one nats.DefaultTimeout applies.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	data, err := json.Marshal(req)
	if err != nil {
		return zero, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, fmt.Errorf("request %s: %w", subject, err)
	}
	var result Resp
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return zero, fmt.Errorf("decode %s reply: %w", subject, err)
	}
	return result, nil
}
