package queue

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/support/bundler"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("queue: transport closed")

	// ErrBufferFull describes a publish that returned false.
	ErrBufferFull = errors.New("queue: publish buffer full")

	errStaleClient = errors.New("queue: client was invalidated")
)

// TransportError reports a queue operation that could not be completed,
// after reconnect-and-retry where that applies.
type TransportError struct {
	Op     string
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("queue %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// isConnectionError reports errors after which the cached client must be dropped.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pubsub.ErrTopicStopped) || errors.Is(err, errStaleClient) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.Aborted:
		return true
	}
	return false
}

// isBackpressure reports the publisher refusing a message because its local
// flow control limits are reached.
func isBackpressure(err error) bool {
	return errors.Is(err, pubsub.ErrFlowControllerMaxOutstandingBytes) ||
		errors.Is(err, pubsub.ErrFlowControllerMaxOutstandingMessages) ||
		errors.Is(err, bundler.ErrOverflow)
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

func isContextDone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.Canceled)
}
