// Package stream reveals a finished reply word by word.
package stream

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMinDelay = 30 * time.Millisecond
	DefaultMaxDelay = 70 * time.Millisecond
)

// Streamer emits progressively longer prefixes of a text with a random
// pause between words.
type Streamer struct {
	minDelay time.Duration
	maxDelay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a streamer. A nil rng is seeded from the clock.
func New(minDelay, maxDelay time.Duration, rng *rand.Rand) *Streamer {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>11))
	}
	return &Streamer{minDelay: minDelay, maxDelay: maxDelay, rng: rng}
}

// Deliver calls onChunk with the partial text after every word and returns
// the fully joined text. When ctx ends first it returns what was revealed
// so far together with ctx.Err(). No timer outlives the call.
func (s *Streamer) Deliver(ctx context.Context, fullText string, onChunk func(partial string)) (string, error) {
	tokens := strings.Fields(fullText)
	var b strings.Builder
	b.Grow(len(fullText))

	for i, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return b.String(), err
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
		if onChunk != nil {
			onChunk(b.String())
		}
		if i == len(tokens)-1 {
			break
		}
		if err := sleep(ctx, s.delay()); err != nil {
			return b.String(), err
		}
	}
	return b.String(), nil
}

func (s *Streamer) delay() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minDelay + time.Duration(s.rng.Int64N(int64(span)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
