// Package feed replays historical market events in time order.
package feed

import (
	"context"
	"slices"
	"sync"

	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/timeframe"
)

// Feed replays market events.
type Feed interface {
	// Play streams the events inside tf in time order. The channel is
	// closed when the data is exhausted or ctx is cancelled.
	Play(ctx context.Context, tf timeframe.Timeframe) (<-chan market.Event, error)

	// Timeframe is the inclusive span of the available data.
	Timeframe() timeframe.Timeframe
}

// MemoryFeed serves events held in memory. Events with the same time are
// merged into one.
type MemoryFeed struct {
	mu     sync.RWMutex
	events []market.Event
}

// NewMemoryFeed creates a feed from events in any order.
func NewMemoryFeed(events ...market.Event) *MemoryFeed {
	f := &MemoryFeed{}
	f.Add(events...)
	return f
}

// Add inserts events, keeping the feed sorted by time.
func (f *MemoryFeed) Add(events ...market.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range events {
		i, found := slices.BinarySearchFunc(f.events, e, func(a, b market.Event) int {
			return a.Time.Compare(b.Time)
		})
		if found {
			merged := f.events[i]
			merged.Actions = append(slices.Clone(merged.Actions), e.Actions...)
			f.events[i] = merged
			continue
		}
		f.events = slices.Insert(f.events, i, market.NewEvent(e.Time, slices.Clone(e.Actions)...))
	}
}

// Len returns the number of distinct event times.
func (f *MemoryFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}

// Timeframe implements Feed. An empty feed spans nothing but reports
// timeframe.Infinite so that any requested range is accepted.
func (f *MemoryFeed) Timeframe() timeframe.Timeframe {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.events) == 0 {
		return timeframe.Infinite
	}
	return timeframe.MustNew(f.events[0].Time, f.events[len(f.events)-1].Time).Inclusive()
}

// Play implements Feed.
func (f *MemoryFeed) Play(ctx context.Context, tf timeframe.Timeframe) (<-chan market.Event, error) {
	f.mu.RLock()
	events := make([]market.Event, 0, len(f.events))
	for _, e := range f.events {
		if tf.Contains(e.Time) {
			events = append(events, e)
		}
	}
	f.mu.RUnlock()

	ch := make(chan market.Event, 100)
	go func() {
		defer close(ch)
		for _, e := range events {
			select {
			case <-ctx.Done():
				return
			case ch <- e:
			}
		}
	}()
	return ch, nil
}
