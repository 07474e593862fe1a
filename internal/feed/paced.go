package feed

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/timeframe"
)

// PacedFeed replays another feed at no more than a fixed number of events
// per second, so a run can be followed live on the metrics endpoint.
type PacedFeed struct {
	Feed
	limiter *rate.Limiter
}

// NewPacedFeed wraps f. A non-positive perSecond disables pacing.
func NewPacedFeed(f Feed, perSecond float64) *PacedFeed {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &PacedFeed{Feed: f, limiter: rate.NewLimiter(limit, 1)}
}

// Play implements Feed. Concurrent plays share the same budget.
func (p *PacedFeed) Play(ctx context.Context, tf timeframe.Timeframe) (<-chan market.Event, error) {
	src, err := p.Feed.Play(ctx, tf)
	if err != nil {
		return nil, err
	}

	ch := make(chan market.Event)
	go func() {
		defer close(ch)
		for e := range src {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case ch <- e:
			}
		}
	}()
	return ch, nil
}
