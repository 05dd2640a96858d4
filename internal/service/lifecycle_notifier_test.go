package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biodata-api/pkg/jobs"
)

type invalidatorStub struct {
	mu       sync.Mutex
	patterns []string
	done     chan struct{}
}

func (s *invalidatorStub) Invalidate(ctx context.Context, pattern string) error {
	s.mu.Lock()
	s.patterns = append(s.patterns, pattern)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return nil
}

// publisherStub records notices synchronously for service tests.
type publisherStub struct {
	mu      sync.Mutex
	notices []LifecycleNotice
}

func (p *publisherStub) Publish(notice LifecycleNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice)
}

func (p *publisherStub) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.notices))
	for i, n := range p.notices {
		out[i] = n.Event
	}
	return out
}

func TestLifecycleNotifierInvalidatesPublicCache(t *testing.T) {
	cache := &invalidatorStub{done: make(chan struct{}, 1)}
	notifier := NewLifecycleNotifier(cache, NewMetricsService(), nil, jobs.QueueConfig{Workers: 1})
	notifier.Start(context.Background())
	defer notifier.Stop()

	notifier.Publish(LifecycleNotice{Event: "approve", ProfileID: "BD-000001"})

	select {
	case <-cache.done:
	case <-time.After(2 * time.Second):
		t.Fatal("cache was not invalidated")
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.Equal(t, []string{publicProfilesCachePattern}, cache.patterns)
}

func TestLifecycleNotifierDropsWhenStopped(t *testing.T) {
	cache := &invalidatorStub{}
	notifier := NewLifecycleNotifier(cache, NewMetricsService(), nil, jobs.QueueConfig{})

	require.NotPanics(t, func() {
		notifier.Publish(LifecycleNotice{Event: "submit"})
	})
	assert.Empty(t, cache.patterns)
}
