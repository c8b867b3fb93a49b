package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

type recordingTimeline struct {
	mu      sync.Mutex
	entries []*domain.TimelineEntry
}

func (r *recordingTimeline) DistributePost(_ context.Context, e *domain.TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func TestHandlePostCreated(t *testing.T) {
	rec := &recordingTimeline{}
	h := NewEventHandler(rec)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(map[string]any{"id": "p1", "author_id": "u1", "created_at": created})
	require.NoError(t, err)

	h.HandlePostCreated(&nats.Msg{Subject: "post.created", Data: data, Header: nats.Header{}})
	h.Wait()

	require.Len(t, rec.entries, 1)
	assert.Equal(t, &domain.TimelineEntry{PostID: "p1", AuthorID: "u1", CreatedAt: created}, rec.entries[0])
}

func TestHandlePostCreated_IgnoresGarbage(t *testing.T) {
	rec := &recordingTimeline{}
	h := NewEventHandler(rec)

	h.HandlePostCreated(&nats.Msg{Subject: "post.created", Data: []byte("{not json")})
	h.HandlePostCreated(&nats.Msg{Subject: "post.created", Data: []byte(`{"id":""}`)})
	h.Wait()

	assert.Empty(t, rec.entries)
}

// blockingTimeline retient chaque fan-out jusqu'à release et mesure le pic de concurrence.
type blockingTimeline struct {
	release chan struct{}

	mu      sync.Mutex
	running int
	peak    int
	done    int
}

func (b *blockingTimeline) DistributePost(_ context.Context, _ *domain.TimelineEntry) error {
	b.mu.Lock()
	b.running++
	b.peak = max(b.peak, b.running)
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.running--
	b.done++
	b.mu.Unlock()
	return nil
}

func (b *blockingTimeline) stats() (running, peak, done int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running, b.peak, b.done
}

func TestHandlePostCreated_FanoutIsBounded(t *testing.T) {
	tl := &blockingTimeline{release: make(chan struct{})}
	h := NewEventHandler(tl, WithMaxConcurrent(2))

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 5; i++ {
			data, _ := json.Marshal(map[string]any{"id": "p" + string(rune('a'+i)), "author_id": "u1", "created_at": time.Now()})
			h.HandlePostCreated(&nats.Msg{Subject: "post.created", Data: data, Header: nats.Header{}})
		}
	}()

	require.Eventually(t, func() bool { running, _, _ := tl.stats(); return running == 2 }, time.Second, time.Millisecond)
	select {
	case <-sent:
		t.Fatal("handler accepted more fan-outs than the limit")
	case <-time.After(20 * time.Millisecond):
	}

	for i := 0; i < 5; i++ {
		tl.release <- struct{}{}
	}
	<-sent
	h.Wait()

	_, peak, done := tl.stats()
	assert.Equal(t, 2, peak)
	assert.Equal(t, 5, done)
}
