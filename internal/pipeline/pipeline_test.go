package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	first := Job{AlertID: uuid.New(), ExternalMessageID: "msg-1"}
	second := Job{AlertID: uuid.New(), ExternalMessageID: "msg-2"}
	q.Enqueue(first)
	q.Enqueue(second)
	assert.Equal(t, 2, q.Len())

	ctx := context.Background()
	got, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, first, got)

	got, ok = q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue()
	job := Job{AlertID: uuid.New(), ExternalMessageID: "late"}

	done := make(chan Job, 1)
	go func() {
		got, ok := q.Dequeue(context.Background())
		if ok {
			done <- got
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue(job)

	select {
	case got := <-done:
		assert.Equal(t, job, got)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up after enqueue")
	}
}

func TestQueueDequeueRespectsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Dequeue(ctx)
	assert.False(t, ok)
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Job{ExternalMessageID: "a"})
	q.Close()
	q.Enqueue(Job{ExternalMessageID: "dropped"})

	job, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	assert.Equal(t, "a", job.ExternalMessageID)

	_, ok = q.Dequeue(context.Background())
	assert.False(t, ok)
}

func TestConsumerProcessesSequentially(t *testing.T) {
	q := NewQueue()

	var mu sync.Mutex
	var seen []string
	inFlight := 0
	consumer := NewConsumer(q, func(ctx context.Context, job Job) error {
		mu.Lock()
		inFlight++
		assert.Equal(t, 1, inFlight)
		seen = append(seen, job.ExternalMessageID)
		inFlight--
		mu.Unlock()
		return nil
	})

	for _, id := range []string{"m1", "m2", "m3"} {
		q.Enqueue(Job{AlertID: uuid.New(), ExternalMessageID: id})
	}
	q.Close()

	err := consumer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, seen)
}

func TestConsumerSurvivesFailuresAndPanics(t *testing.T) {
	q := NewQueue()

	var processed []string
	consumer := NewConsumer(q, func(ctx context.Context, job Job) error {
		processed = append(processed, job.ExternalMessageID)
		switch job.ExternalMessageID {
		case "boom":
			panic("handler exploded")
		case "fail":
			return errors.New("handler failed")
		}
		return nil
	})

	for _, id := range []string{"boom", "fail", "ok"} {
		q.Enqueue(Job{AlertID: uuid.New(), ExternalMessageID: id})
	}
	q.Close()

	err := consumer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"boom", "fail", "ok"}, processed)
}
