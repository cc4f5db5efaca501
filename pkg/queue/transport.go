// Package queue is the durable messaging layer of the relay. Queues and
// exchanges are mapped onto Google Cloud Pub/Sub: a queue is a topic with one
// shared subscription of the same name, an exchange is a topic whose messages
// carry a routing_key attribute that subscribers filter on.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/option"
)

// ClientFactory opens a new Pub/Sub client. It is called on first use and
// again after a connection-level failure.
type ClientFactory func(ctx context.Context) (*pubsub.Client, error)

// NewClientFactory returns a factory for projectID. PUBSUB_EMULATOR_HOST is
// honoured by the client library.
func NewClientFactory(projectID string, opts ...option.ClientOption) ClientFactory {
	return func(ctx context.Context) (*pubsub.Client, error) {
		return pubsub.NewClient(ctx, projectID, opts...)
	}
}

type Config struct {
	// Prefetch bounds the unacknowledged messages held by one consumer.
	Prefetch          int
	AckDeadline       time.Duration
	PublishRetries    int
	RetryBaseDelay    time.Duration
	BufferedByteLimit int
	// DeadLetterTopic receives rejected messages. Empty drops them.
	DeadLetterTopic string
}

func (c Config) withDefaults() Config {
	if c.Prefetch < 1 {
		c.Prefetch = 1
	}
	if c.AckDeadline <= 0 {
		c.AckDeadline = 60 * time.Second
	}
	if c.PublishRetries < 0 {
		c.PublishRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	return c
}

const maxReconnectDelay = 30 * time.Second

type Transport struct {
	factory ClientFactory
	cfg     Config
	log     zerolog.Logger

	mu        sync.Mutex
	client    *pubsub.Client
	topics    map[string]*pubsub.Topic
	queues    map[string]bool
	exchanges map[string]ExchangeKind
	closed    bool
}

// New creates a Transport. No connection is made until first use.
func New(factory ClientFactory, cfg Config, log zerolog.Logger) *Transport {
	return &Transport{
		factory:   factory,
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("component", "QueueTransport").Logger(),
		topics:    make(map[string]*pubsub.Topic),
		queues:    make(map[string]bool),
		exchanges: make(map[string]ExchangeKind),
	}
}

// Connect returns the shared client, creating it on first use. Concurrent
// callers wait for and share the same client.
func (t *Transport) Connect(ctx context.Context) (*pubsub.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if t.client != nil {
		return t.client, nil
	}

	client, err := t.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	t.client = client
	t.log.Info().Msg("Connected to Pub/Sub")
	return client, nil
}

// invalidate drops client and every handle derived from it, if it is still
// the cached one. The next operation reconnects.
func (t *Transport) invalidate(client *pubsub.Client, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil || t.client != client {
		return
	}
	t.log.Warn().Err(cause).Msg("Dropping Pub/Sub connection after error")
	t.resetLocked()
}

func (t *Transport) resetLocked() error {
	for _, topic := range t.topics {
		topic.Stop()
	}
	var err error
	if t.client != nil {
		err = t.client.Close()
	}
	t.client = nil
	t.topics = make(map[string]*pubsub.Topic)
	t.queues = make(map[string]bool)
	return err
}

func (t *Transport) isCurrent(client *pubsub.Client) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client == client
}

// DeclareQueue ensures a durable queue exists. It is idempotent.
func (t *Transport) DeclareQueue(ctx context.Context, name string) error {
	client, err := t.Connect(ctx)
	if err != nil {
		return &TransportError{Op: "declare queue", Target: name, Err: err}
	}
	if err := t.declareQueue(ctx, client, name); err != nil {
		if isConnectionError(err) {
			t.invalidate(client, err)
		}
		return &TransportError{Op: "declare queue", Target: name, Err: err}
	}
	return nil
}

func (t *Transport) declareQueue(ctx context.Context, client *pubsub.Client, name string) error {
	t.mu.Lock()
	declared := t.queues[name]
	t.mu.Unlock()
	if declared {
		return nil
	}

	topic, err := t.ensureTopic(ctx, client, name, nil)
	if err != nil {
		return err
	}
	if err := t.ensureSubscription(ctx, client, name, topic); err != nil {
		return err
	}

	t.mu.Lock()
	if t.client == client {
		t.queues[name] = true
	}
	t.mu.Unlock()
	return nil
}

// DeclareExchange ensures a durable exchange exists. Redeclaring with another
// kind fails.
func (t *Transport) DeclareExchange(ctx context.Context, name string, kind ExchangeKind) error {
	if !kind.valid() {
		return fmt.Errorf("queue: unsupported exchange kind %q", kind)
	}

	t.mu.Lock()
	existing, ok := t.exchanges[name]
	t.mu.Unlock()
	if ok && existing != kind {
		return fmt.Errorf("queue: exchange %s already declared as %s", name, existing)
	}

	client, err := t.Connect(ctx)
	if err != nil {
		return &TransportError{Op: "declare exchange", Target: name, Err: err}
	}
	labels := map[string]string{"exchange_kind": string(kind)}
	if _, err := t.ensureTopic(ctx, client, name, labels); err != nil {
		if isConnectionError(err) {
			t.invalidate(client, err)
		}
		return &TransportError{Op: "declare exchange", Target: name, Err: err}
	}

	t.mu.Lock()
	t.exchanges[name] = kind
	t.mu.Unlock()
	return nil
}

func (t *Transport) exchangeKind(name string) ExchangeKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	if kind, ok := t.exchanges[name]; ok {
		return kind
	}
	return ExchangeTopic
}

func (t *Transport) ensureTopic(ctx context.Context, client *pubsub.Client, name string, labels map[string]string) (*pubsub.Topic, error) {
	t.mu.Lock()
	if t.client != client {
		t.mu.Unlock()
		return nil, errStaleClient
	}
	if topic, ok := t.topics[name]; ok {
		t.mu.Unlock()
		return topic, nil
	}
	t.mu.Unlock()

	topic := client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", name, err)
	}
	if !exists {
		_, err := client.CreateTopicWithConfig(ctx, name, &pubsub.TopicConfig{Labels: labels})
		if err != nil && !isAlreadyExists(err) {
			return nil, fmt.Errorf("create topic %s: %w", name, err)
		}
		t.log.Info().Str("topic", name).Msg("Created topic")
	}

	if t.cfg.BufferedByteLimit > 0 {
		topic.PublishSettings.FlowControlSettings = pubsub.FlowControlSettings{
			MaxOutstandingBytes:   t.cfg.BufferedByteLimit,
			LimitExceededBehavior: pubsub.FlowControlSignalError,
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != client {
		topic.Stop()
		return nil, errStaleClient
	}
	if cached, ok := t.topics[name]; ok {
		topic.Stop()
		return cached, nil
	}
	t.topics[name] = topic
	return topic, nil
}

func (t *Transport) ensureSubscription(ctx context.Context, client *pubsub.Client, name string, topic *pubsub.Topic) error {
	sub := client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", name, err)
	}
	if exists {
		return nil
	}

	_, err = client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: t.cfg.AckDeadline,
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create subscription %s: %w", name, err)
	}
	t.log.Info().Str("subscription", name).Str("topic", topic.ID()).Msg("Created subscription")
	return nil
}

// Publish serializes message as JSON and sends it to target as a persistent
// message. It returns false when the publisher refused the message because
// its local buffer is full; callers treat that as a delivery failure.
// Connection failures are retried with a fresh client before a
// *TransportError is returned.
func (t *Transport) Publish(ctx context.Context, target Target, message any, opts PublishOptions) (bool, error) {
	if (target.Queue == "") == (target.Exchange == "") {
		return false, fmt.Errorf("queue: target must name exactly one of queue or exchange")
	}

	body, err := json.Marshal(message)
	if err != nil {
		return false, fmt.Errorf("queue: encode message: %w", err)
	}

	attrs := make(map[string]string, len(opts.Headers)+3)
	for k, v := range opts.Headers {
		attrs[k] = v
	}
	attrs[AttrContentType] = contentTypeJSON
	attrs[AttrDeliveryMode] = deliveryPersistent
	if target.Exchange != "" {
		attrs[AttrRoutingKey] = target.RoutingKey
	}

	return t.publishRaw(ctx, target, body, attrs)
}

func (t *Transport) publishRaw(ctx context.Context, target Target, body []byte, attrs map[string]string) (bool, error) {
	accepted := true
	backoff := retry.WithMaxRetries(uint64(t.cfg.PublishRetries), retry.NewExponential(t.cfg.RetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		client, err := t.Connect(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			return retry.RetryableError(err)
		}

		topic, err := t.publishTopic(ctx, client, target)
		if err == nil {
			_, err = topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs}).Get(ctx)
		}

		switch {
		case err == nil:
			return nil
		case isBackpressure(err):
			accepted = false
			return nil
		case isConnectionError(err):
			t.invalidate(client, err)
			return retry.RetryableError(err)
		default:
			return err
		}
	})
	if err != nil {
		return false, &TransportError{Op: "publish", Target: target.String(), Err: err}
	}
	if !accepted {
		t.log.Warn().Str("target", target.String()).Msg("Publish buffer full, message not accepted")
	}
	return accepted, nil
}

func (t *Transport) publishTopic(ctx context.Context, client *pubsub.Client, target Target) (*pubsub.Topic, error) {
	if target.Queue != "" {
		if err := t.declareQueue(ctx, client, target.Queue); err != nil {
			return nil, err
		}
		return t.ensureTopic(ctx, client, target.Queue, nil)
	}
	return t.ensureTopic(ctx, client, target.Exchange, nil)
}

// Consume delivers messages from queue to handler until ctx is cancelled. At
// most Prefetch messages are in flight. It returns once the in-flight handlers
// have finished.
func (t *Transport) Consume(ctx context.Context, queue string, handler Handler) error {
	if err := t.DeclareQueue(ctx, queue); err != nil {
		return err
	}
	return t.receive(ctx, queue, queue, nil, handler)
}

// Subscribe binds subscriber to exchange with bindingKey and delivers matching
// messages to handler until ctx is cancelled. Each subscriber name gets its
// own copy of every message.
func (t *Transport) Subscribe(ctx context.Context, exchange, bindingKey, subscriber string, handler Handler) error {
	subName := exchange + "." + subscriber
	kind := t.exchangeKind(exchange)

	client, err := t.Connect(ctx)
	if err != nil {
		return &TransportError{Op: "subscribe", Target: subName, Err: err}
	}
	topic, err := t.ensureTopic(ctx, client, exchange, nil)
	if err == nil {
		err = t.ensureSubscription(ctx, client, subName, topic)
	}
	if err != nil {
		if isConnectionError(err) {
			t.invalidate(client, err)
		}
		return &TransportError{Op: "subscribe", Target: subName, Err: err}
	}

	match := func(d Delivery) bool { return kind.Matches(bindingKey, d.RoutingKey) }
	return t.receive(ctx, subName, subName, match, handler)
}

func (t *Transport) receive(ctx context.Context, subName, source string, match func(Delivery) bool, handler Handler) error {
	backoff := retry.WithCappedDuration(maxReconnectDelay, retry.NewExponential(t.cfg.RetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		client, err := t.Connect(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			return retry.RetryableError(err)
		}

		sub := client.Subscription(subName)
		sub.ReceiveSettings.MaxOutstandingMessages = t.cfg.Prefetch
		sub.ReceiveSettings.NumGoroutines = 1

		t.log.Info().Str("subscription", subName).Int("prefetch", t.cfg.Prefetch).Msg("Listening for messages")
		err = sub.Receive(ctx, func(rctx context.Context, m *pubsub.Message) {
			// Shutdown stops new deliveries; the one in hand runs to completion.
			t.dispatch(context.WithoutCancel(rctx), source, m, match, handler)
		})

		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil || !t.isCurrent(client) || isConnectionError(err):
			if err == nil {
				err = errStaleClient
			}
			t.invalidate(client, err)
			return retry.RetryableError(err)
		default:
			return err
		}
	})
	if err != nil && !isContextDone(ctx, err) {
		return &TransportError{Op: "consume", Target: subName, Err: err}
	}
	return nil
}

func (t *Transport) dispatch(ctx context.Context, source string, m *pubsub.Message, match func(Delivery) bool, handler Handler) {
	d := Delivery{
		ID:          m.ID,
		Body:        m.Data,
		RoutingKey:  m.Attributes[AttrRoutingKey],
		Attributes:  m.Attributes,
		PublishTime: m.PublishTime,
		Attempt:     1,
	}
	if m.DeliveryAttempt != nil {
		d.Attempt = *m.DeliveryAttempt
	}

	if match != nil && !match(d) {
		m.Ack()
		return
	}

	if !json.Valid(m.Data) {
		t.reject(ctx, source, m, errors.New("payload is not valid JSON"))
		return
	}

	if err := safeHandle(ctx, handler, d); err != nil {
		t.reject(ctx, source, m, err)
		return
	}
	m.Ack()
}

func safeHandle(ctx context.Context, handler Handler, d Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, d)
}

// reject removes m from its subscription without redelivery. When a dead-letter
// topic is configured the message is forwarded there first.
func (t *Transport) reject(ctx context.Context, source string, m *pubsub.Message, cause error) {
	log := t.log.With().Str("message_id", m.ID).Str("source", source).Logger()

	if t.cfg.DeadLetterTopic == "" {
		log.Warn().Err(cause).Msg("Message rejected and dropped")
		m.Ack()
		return
	}

	attrs := make(map[string]string, len(m.Attributes)+2)
	for k, v := range m.Attributes {
		attrs[k] = v
	}
	attrs[AttrRejectReason] = cause.Error()
	attrs[AttrRejectSource] = source

	if _, err := t.publishRaw(ctx, ToQueue(t.cfg.DeadLetterTopic), m.Data, attrs); err != nil {
		log.Error().Err(err).AnErr("reject_cause", cause).Msg("Failed to dead-letter message, dropping it")
	} else {
		log.Warn().Err(cause).Str("dead_letter", t.cfg.DeadLetterTopic).Msg("Message rejected to dead-letter queue")
	}
	m.Ack()
}

// Close releases cached topics and the client. It is safe to call more than
// once and before any connection was made.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.resetLocked()
}
