package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// Message attributes set on every publish.
const (
	AttrContentType  = "content_type"
	AttrDeliveryMode = "delivery_mode"
	AttrRoutingKey   = "routing_key"
	AttrRejectReason = "x-reject-reason"
	AttrRejectSource = "x-reject-source"

	contentTypeJSON    = "application/json"
	deliveryPersistent = "persistent"
)

// Target names where a message goes: a queue, or an exchange plus routing key.
type Target struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

func ToQueue(name string) Target { return Target{Queue: name} }

func ToExchange(name, routingKey string) Target {
	return Target{Exchange: name, RoutingKey: routingKey}
}

func (t Target) String() string {
	if t.Queue != "" {
		return t.Queue
	}
	return t.Exchange + "/" + t.RoutingKey
}

type PublishOptions struct {
	// Headers are copied onto the message attributes.
	Headers map[string]string
}

// Delivery is one received message.
type Delivery struct {
	ID          string
	Body        []byte
	RoutingKey  string
	Attributes  map[string]string
	PublishTime time.Time
	Attempt     int
}

// Decode unmarshals the body into v, keeping JSON numbers as json.Number when
// v holds interface values so they survive a re-encode unchanged.
func (d Delivery) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(d.Body))
	dec.UseNumber()
	return dec.Decode(v)
}

// Handler processes one delivery. A nil return acknowledges the message, an
// error rejects it without requeue.
type Handler func(ctx context.Context, d Delivery) error
