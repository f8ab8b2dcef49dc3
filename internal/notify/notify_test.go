package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEmitterHandlesAreSequential(t *testing.T) {
	emitter := NewLogEmitter()

	first, err := emitter.Send(context.Background(), Event{Topic: TopicGeneral, Text: "first"})
	require.NoError(t, err)
	second, err := emitter.Send(context.Background(), Event{Topic: TopicIssues, Text: "second"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.NoError(t, emitter.Edit(context.Background(), first, "rewritten"))
}

func TestLogEmitterConcurrentSendsGetUniqueHandles(t *testing.T) {
	emitter := NewLogEmitter()

	const senders = 100
	handles := make([]int64, senders)
	errs := make([]error, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = emitter.Send(context.Background(), Event{Topic: TopicEmails, Text: "alert"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[int64]bool, senders)
	for _, handle := range handles {
		assert.False(t, seen[handle], "handle %d issued twice", handle)
		seen[handle] = true
	}
	assert.Len(t, seen, senders)
}
