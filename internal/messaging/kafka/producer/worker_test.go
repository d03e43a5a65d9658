package producer

import (
	"context"
	"errors"
	"testing"

	"go-ems/internal/events"
	"go-ems/internal/messaging/kafka"
	kafkaMock "go-ems/internal/messaging/kafka/mock"
	"go-ems/internal/shared/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type fakeWriter struct {
	written []kafkago.Message
	failFor map[string]error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, msg := range msgs {
		if err, ok := w.failFor[string(msg.Key)]; ok {
			return err
		}
		w.written = append(w.written, msg)
	}
	return nil
}

func header(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProcessPendingEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks sent", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		writer := &fakeWriter{}
		m := metrics.New()

		pending := []kafka.OutboxEvent{
			{ID: "o-1", RequestID: "rid-1", AggregateType: "leave", AggregateID: "l-1",
				EventType: events.LeaveApprovedType, Topic: events.LeaveLifecycleTopic, Payload: []byte(`{}`)},
			{ID: "o-2", AggregateType: "employee", AggregateID: "e-1",
				EventType: events.EmployeeCreatedType, Topic: events.EmployeeLifecycleTopic, Payload: []byte(`{}`)},
		}
		repo.EXPECT().ListPending(ctx, batchSize).Return(pending, nil)
		repo.EXPECT().MarkSent(ctx, "o-1").Return(nil)
		repo.EXPECT().MarkSent(ctx, "o-2").Return(nil)

		sent, err := processPendingEvents(ctx, repo, writer, m, zap.NewNop())

		require.NoError(t, err)
		assert.Equal(t, 2, sent)
		require.Len(t, writer.written, 2)
		assert.Equal(t, events.LeaveLifecycleTopic, writer.written[0].Topic)
		assert.Equal(t, "l-1", string(writer.written[0].Key))
		assert.Equal(t, events.LeaveApprovedType, header(writer.written[0], "event_type"))
		assert.Equal(t, "rid-1", header(writer.written[0], "request_id"))
		assert.Empty(t, header(writer.written[1], "request_id"))
		series, err := testutil.GatherAndCount(m.Registry(), "outbox_events_published_total")
		require.NoError(t, err)
		assert.Equal(t, 1, series)
	})

	t.Run("write failure marks failed and continues", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		writer := &fakeWriter{failFor: map[string]error{"e-1": errors.New("broker unavailable")}}

		repo.EXPECT().ListPending(ctx, batchSize).Return([]kafka.OutboxEvent{
			{ID: "o-1", AggregateID: "e-1", Topic: events.EmployeeLifecycleTopic},
			{ID: "o-2", AggregateID: "e-2", Topic: events.EmployeeLifecycleTopic},
		}, nil)
		repo.EXPECT().MarkFailed(ctx, "o-1", "broker unavailable").Return(nil)
		repo.EXPECT().MarkSent(ctx, "o-2").Return(nil)

		sent, err := processPendingEvents(ctx, repo, writer, nil, zap.NewNop())

		require.NoError(t, err)
		assert.Equal(t, 1, sent)
	})

	t.Run("list error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		repo.EXPECT().ListPending(ctx, batchSize).Return(nil, errors.New("db down"))

		_, err := processPendingEvents(ctx, repo, &fakeWriter{}, nil, zap.NewNop())

		assert.EqualError(t, err, "db down")
	})

	t.Run("empty batch", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		repo.EXPECT().ListPending(ctx, batchSize).Return(nil, nil)

		sent, err := processPendingEvents(ctx, repo, &fakeWriter{}, nil, zap.NewNop())

		require.NoError(t, err)
		assert.Zero(t, sent)
	})
}

func TestProcessOutboxEvents_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := kafkaMock.NewMockOutboxRepository(ctrl)
	repo.EXPECT().ListPending(gomock.Any(), batchSize).Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ProcessOutboxEvents(ctx, repo, &fakeWriter{}, nil, zap.NewNop(), 0)
		close(done)
	}()
	cancel()
	<-done
}
