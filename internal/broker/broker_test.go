package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"furniture-store/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHandleMessage(t *testing.T) {
	var placed []models.BaseEvent
	h := NewEventHandler()
	h.On(models.EventTypeOrderPlaced, func(ctx context.Context, base models.BaseEvent, payload []byte) error {
		placed = append(placed, base)
		return nil
	})

	ctx := context.Background()
	err := h.HandleMessage(ctx, kafka.Message{Value: []byte(`{"event_id":"e1","event_type":"ORDER_PLACED","order_id":3}`)})
	assert.NoError(t, err)

	err = h.HandleMessage(ctx, kafka.Message{Value: []byte(`{"event_id":"e2","event_type":"ORDER_SHREDDED","order_id":3}`)})
	assert.NoError(t, err)

	err = h.HandleMessage(ctx, kafka.Message{Value: []byte(`not json`)})
	assert.ErrorIs(t, err, ErrSkipMessage)

	if assert.Len(t, placed, 1) {
		assert.Equal(t, "e1", placed[0].EventID)
		assert.Equal(t, int64(3), placed[0].OrderID)
	}
}

func TestConsumerHandleRetries(t *testing.T) {
	c := &Consumer{logger: zap.NewNop()}
	ctx := context.Background()

	calls := 0
	err := c.handle(ctx, func(context.Context, kafka.Message) error {
		calls++
		if calls < 2 {
			return errors.New("db timeout")
		}
		return nil
	}, kafka.Message{})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = c.handle(ctx, func(context.Context, kafka.Message) error {
		calls++
		return ErrSkipMessage
	}, kafka.Message{})
	assert.ErrorIs(t, err, ErrSkipMessage)
	assert.Equal(t, 1, calls)
}

func TestConsumerHandleStopsOnCancel(t *testing.T) {
	c := &Consumer{logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := c.handle(ctx, func(context.Context, kafka.Message) error {
		calls++
		cancel()
		return errors.New("broker unavailable")
	}, kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// fakeReader hands out messages in offset order and records commits
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	next      int
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.next < len(r.messages) {
		msg := r.messages[r.next]
		r.next++
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func newTestConsumer(offsets ...int64) (*Consumer, *fakeReader) {
	reader := &fakeReader{}
	for _, o := range offsets {
		reader.messages = append(reader.messages, kafka.Message{Offset: o})
	}
	return &Consumer{reader: reader, topic: "order-events", retryDelay: time.Millisecond, logger: zap.NewNop()}, reader
}

func TestStartConsumingRetriesBeforeMovingOn(t *testing.T) {
	c, reader := newTestConsumer(0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []int64
	failures := 0
	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		seen = append(seen, msg.Offset)
		if msg.Offset == 0 && failures < handleAttempts+2 {
			failures++
			return errors.New("db unavailable")
		}
		if msg.Offset == 1 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0, 1}, seen)
	assert.Equal(t, []int64{0, 1}, reader.committed)
}

func TestStartConsumingNeverCommitsPastFailure(t *testing.T) {
	c, reader := newTestConsumer(0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls == 5 {
			cancel()
		}
		return errors.New("db unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 5, calls)
	assert.Equal(t, 1, reader.next)
	assert.Empty(t, reader.committed)
}

func TestStartConsumingCommitsSkippedMessages(t *testing.T) {
	c, reader := newTestConsumer(0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		if msg.Offset == 1 {
			cancel()
			return nil
		}
		return ErrSkipMessage
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{0, 1}, reader.committed)
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "order-42", orderKey(42))
}
