package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"statshub/internal/model"
	"statshub/internal/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStats struct {
	role    model.Role
	subject string
	calls   int
	err     error
}

func (r *recordingStats) GetSummary(context.Context, model.Session) (model.StatsSummary, error) {
	return model.EmptySummary(), nil
}

func (r *recordingStats) Invalidate(_ context.Context, role model.Role, subject string) error {
	r.calls++
	r.role, r.subject = role, subject
	return r.err
}

func (r *recordingStats) Export(context.Context, model.Session) (string, error) {
	return "", ErrExportsDisabled
}

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(bool) error {
	a.acked = true
	return nil
}

func (a *fakeAck) Nack(_ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func TestHandleInvalidation(t *testing.T) {
	sc := &recordingStats{}

	err := HandleInvalidation(context.Background(), sc, []byte(`{"role":"inspector","user_id":"u9"}`))
	require.NoError(t, err)
	assert.Equal(t, model.RoleInspector, sc.role)
	assert.Equal(t, "u9", sc.subject)

	err = HandleInvalidation(context.Background(), sc, []byte(`{"user_id":"u9"}`))
	require.NoError(t, err)
	assert.Equal(t, model.Role(""), sc.role)
}

func TestHandleInvalidationMalformed(t *testing.T) {
	sc := &recordingStats{}

	err := HandleInvalidation(context.Background(), sc, []byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	err = HandleInvalidation(context.Background(), sc, []byte(`{"role":"admin"}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.Zero(t, sc.calls)
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		redelivered bool
		invalidErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{name: "applied", body: `{"role":"client","user_id":"u1"}`, wantAck: true},
		{name: "malformed is dropped", body: `{`},
		{name: "failure requeued once", body: `{"role":"client"}`, invalidErr: errors.New("redis down"), wantRequeue: true},
		{name: "redelivered failure dropped", body: `{"role":"client"}`, redelivered: true, invalidErr: errors.New("redis down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &recordingStats{err: tt.invalidErr}
			ack := &fakeAck{}

			settle(context.Background(), sc, []byte(tt.body), tt.redelivered, ack)

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestNewStatsEvent(t *testing.T) {
	summary := availableSummary()
	before := time.Now().UTC()

	event := NewStatsEvent(clientSession, summary)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, model.RoleClient, event.Role)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, summary.Total, event.Summary.Total)
	assert.False(t, event.OccurredAt.Before(before))
	assert.NotEqual(t, event.ID, NewStatsEvent(clientSession, summary).ID)
}

type amqpAck struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *amqpAck) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *amqpAck) Nack(tag uint64, _ bool, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *amqpAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *amqpAck) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked), len(a.nacked)
}

// fakeBroker hands out a new delivery channel per Consume call
type fakeBroker struct {
	rabbitmq.Client
	mu       sync.Mutex
	channels []chan amqp.Delivery
}

func (b *fakeBroker) Consume(string, string) (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan amqp.Delivery, 4)
	b.channels = append(b.channels, ch)
	return ch, nil
}

func (b *fakeBroker) channel(i int) chan amqp.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.channels) {
		return nil
	}
	return b.channels[i]
}

func TestConsumeInvalidationsResubscribes(t *testing.T) {
	consumeRetryDelay = time.Millisecond
	t.Cleanup(func() { consumeRetryDelay = 5 * time.Second })

	broker := &fakeBroker{}
	ack := &amqpAck{}
	sc := &lockedStats{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ConsumeInvalidations(ctx, broker, "q", sc)
	}()

	require.Eventually(t, func() bool { return broker.channel(0) != nil }, time.Second, time.Millisecond)
	first := broker.channel(0)
	first <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"role":"client","user_id":"u1"}`)}
	first <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`garbage`)}
	close(first)

	require.Eventually(t, func() bool { return broker.channel(1) != nil }, time.Second, time.Millisecond)
	broker.channel(1) <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"role":"inspector","user_id":"u2"}`)}

	require.Eventually(t, func() bool {
		acked, nacked := ack.counts()
		return acked == 2 && nacked == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, 2, sc.count())
}

type lockedStats struct {
	recordingStats
	mu sync.Mutex
}

func (l *lockedStats) Invalidate(ctx context.Context, role model.Role, subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordingStats.Invalidate(ctx, role, subject)
}

func (l *lockedStats) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
