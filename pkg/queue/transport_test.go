package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/support/bundler"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const testProject = "test-project"

type harness struct {
	srv   *pstest.Server
	dials atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{srv: pstest.NewServer()}
	t.Cleanup(func() { _ = h.srv.Close() })
	return h
}

// factory dials a fresh connection per client since closing a client closes its conn.
func (h *harness) factory(ctx context.Context) (*pubsub.Client, error) {
	h.dials.Add(1)
	conn, err := grpc.NewClient(h.srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return pubsub.NewClient(ctx, testProject, option.WithGRPCConn(conn))
}

func (h *harness) transport(t *testing.T, cfg Config) *Transport {
	t.Helper()
	cfg.RetryBaseDelay = 10 * time.Millisecond
	tr := New(h.factory, cfg, zerolog.Nop())
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// consumeN drives run until n deliveries were handled.
func consumeN(t *testing.T, n int, run func(ctx context.Context, h Handler) error, handle Handler) []Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		mu  sync.Mutex
		got []Delivery
	)
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, func(hctx context.Context, d Delivery) error {
			defer func() {
				mu.Lock()
				got = append(got, d)
				if len(got) == n {
					cancel()
				}
				mu.Unlock()
			}()
			return handle(hctx, d)
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("consumer did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, n)
	return got
}

func ack(context.Context, Delivery) error { return nil }

func TestPublishConsume_RoundTrip(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{})
	ctx := context.Background()

	msg := map[string]any{
		"deviceId":    5,
		"deviceToken": "tok-5",
		"title":       "Hi",
		"body":        "There",
		"data":        map[string]any{"orderId": 1234567890123, "ratio": 0.25, "urgent": true, "tags": []any{"a", "b"}},
		"priority":    "high",
	}
	want, err := json.Marshal(msg)
	require.NoError(t, err)

	ok, err := tr.Publish(ctx, ToQueue("notification.fcm"), msg, PublishOptions{Headers: map[string]string{"x-trace": "abc"}})
	require.NoError(t, err)
	require.True(t, ok)

	got := consumeN(t, 1, func(ctx context.Context, hd Handler) error {
		return tr.Consume(ctx, "notification.fcm", hd)
	}, ack)

	d := got[0]
	assert.Equal(t, "application/json", d.Attributes[AttrContentType])
	assert.Equal(t, "persistent", d.Attributes[AttrDeliveryMode])
	assert.Equal(t, "abc", d.Attributes["x-trace"])

	var decoded map[string]any
	require.NoError(t, d.Decode(&decoded))
	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(again))
}

func TestConsume_ProcessesOneMessageAtATime(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{Prefetch: 1})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		ok, err := tr.Publish(ctx, ToQueue("serial"), map[string]int{"n": i}, PublishOptions{})
		require.NoError(t, err)
		require.True(t, ok)
	}

	var inFlight, maxInFlight atomic.Int32
	consumeN(t, 4, func(ctx context.Context, hd Handler) error {
		return tr.Consume(ctx, "serial", hd)
	}, func(context.Context, Delivery) error {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestConsume_RejectedMessageGoesToDeadLetter(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{DeadLetterTopic: "notification.fcm.dead"})
	ctx := context.Background()

	_, err := tr.Publish(ctx, ToQueue("work"), map[string]string{"title": "x"}, PublishOptions{})
	require.NoError(t, err)

	consumeN(t, 1, func(ctx context.Context, hd Handler) error {
		return tr.Consume(ctx, "work", hd)
	}, func(context.Context, Delivery) error {
		return errors.New("missing deviceToken")
	})

	dead := consumeN(t, 1, func(ctx context.Context, hd Handler) error {
		return tr.Consume(ctx, "notification.fcm.dead", hd)
	}, ack)

	assert.Equal(t, "missing deviceToken", dead[0].Attributes[AttrRejectReason])
	assert.Equal(t, "work", dead[0].Attributes[AttrRejectSource])
	assert.JSONEq(t, `{"title":"x"}`, string(dead[0].Body))
}

func TestConsume_PanickingHandlerIsRejectedNotFatal(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{})
	ctx := context.Background()

	for _, title := range []string{"boom", "fine"} {
		_, err := tr.Publish(ctx, ToQueue("panics"), map[string]string{"title": title}, PublishOptions{})
		require.NoError(t, err)
	}

	got := consumeN(t, 2, func(ctx context.Context, hd Handler) error {
		return tr.Consume(ctx, "panics", hd)
	}, func(_ context.Context, d Delivery) error {
		var m map[string]string
		_ = d.Decode(&m)
		if m["title"] == "boom" {
			panic("handler bug")
		}
		return nil
	})
	assert.Len(t, got, 2)
}

func TestSubscribe_FiltersByBindingKey(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, tr.DeclareExchange(ctx, "notification.events", ExchangeTopic))

	received := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- tr.Subscribe(ctx, "notification.events", "notification.done.#", "audit", func(_ context.Context, d Delivery) error {
			received <- d.RoutingKey
			return nil
		})
	}()

	// Publishing before the subscription exists would lose the messages.
	require.Eventually(t, func() bool {
		client, err := tr.Connect(ctx)
		if err != nil {
			return false
		}
		ok, err := client.Subscription("notification.events.audit").Exists(ctx)
		return err == nil && ok
	}, 5*time.Second, 20*time.Millisecond)

	for _, key := range []string{"user.created", "notification.done.sent", "notification.done.invalid_token"} {
		ok, err := tr.Publish(ctx, ToExchange("notification.events", key), map[string]string{"key": key}, PublishOptions{})
		require.NoError(t, err)
		require.True(t, ok)
	}

	var keys []string
	for len(keys) < 2 {
		select {
		case k := <-received:
			keys = append(keys, k)
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}
	}
	cancel()
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []string{"notification.done.sent", "notification.done.invalid_token"}, keys)
	assert.Empty(t, received)
}

func TestConnect_SharedAcrossConcurrentCallers(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{})

	var wg sync.WaitGroup
	clients := make([]*pubsub.Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := tr.Connect(context.Background())
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), h.dials.Load())
	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
}

func TestPublish_ReconnectsAfterTornDownTopic(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{PublishRetries: 2})
	ctx := context.Background()

	_, err := tr.Publish(ctx, ToQueue("recover"), map[string]int{"n": 1}, PublishOptions{})
	require.NoError(t, err)

	tr.mu.Lock()
	tr.topics["recover"].Stop()
	tr.mu.Unlock()

	ok, err := tr.Publish(ctx, ToQueue("recover"), map[string]int{"n": 2}, PublishOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), h.dials.Load())

	consumeN(t, 2, func(ctx context.Context, hd Handler) error {
		return tr.Consume(ctx, "recover", hd)
	}, ack)
}

func TestPublish_ConnectFailureIsTransportError(t *testing.T) {
	calls := 0
	tr := New(func(context.Context) (*pubsub.Client, error) {
		calls++
		return nil, errors.New("dial tcp: connection refused")
	}, Config{PublishRetries: 2, RetryBaseDelay: time.Millisecond}, zerolog.Nop())

	ok, err := tr.Publish(context.Background(), ToQueue("q"), map[string]int{}, PublishOptions{})
	assert.False(t, ok)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "publish", terr.Op)
	assert.Equal(t, 3, calls)
}

func TestPublish_RequiresSingleTarget(t *testing.T) {
	tr := New(nil, Config{}, zerolog.Nop())
	_, err := tr.Publish(context.Background(), Target{Queue: "q", Exchange: "e"}, nil, PublishOptions{})
	assert.Error(t, err)
	_, err = tr.Publish(context.Background(), Target{}, nil, PublishOptions{})
	assert.Error(t, err)
}

func TestDeclareExchange_KindMismatch(t *testing.T) {
	h := newHarness(t)
	tr := h.transport(t, Config{})
	ctx := context.Background()

	require.NoError(t, tr.DeclareExchange(ctx, "events", ExchangeDirect))
	require.NoError(t, tr.DeclareExchange(ctx, "events", ExchangeDirect))
	assert.Error(t, tr.DeclareExchange(ctx, "events", ExchangeTopic))
	assert.Error(t, tr.DeclareExchange(ctx, "other", ExchangeKind("fanout")))
}

func TestClose(t *testing.T) {
	tr := New(nil, Config{}, zerolog.Nop())
	require.NoError(t, tr.Close(), "closing a never-connected transport")
	require.NoError(t, tr.Close())

	_, err := tr.Publish(context.Background(), ToQueue("q"), map[string]int{}, PublishOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIsBackpressure(t *testing.T) {
	assert.True(t, isBackpressure(pubsub.ErrFlowControllerMaxOutstandingBytes))
	assert.True(t, isBackpressure(pubsub.ErrFlowControllerMaxOutstandingMessages))
	assert.True(t, isBackpressure(fmt.Errorf("publish: %w", pubsub.ErrFlowControllerMaxOutstandingBytes)))
	assert.True(t, isBackpressure(bundler.ErrOverflow))
	assert.False(t, isBackpressure(pubsub.ErrOversizedMessage))
	assert.False(t, isBackpressure(errors.New("other")))
	assert.True(t, isConnectionError(pubsub.ErrTopicStopped))
}
