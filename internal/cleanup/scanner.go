package cleanup

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
)

const scanDelay = 2 * time.Second

// countRange is a half-open [base, base+span) interval.
type countRange struct {
	base int
	span int
}

var scanRanges = map[domain.Category]countRange{
	domain.CategoryMessages:  {base: 50, span: 500},
	domain.CategoryPhotos:    {base: 20, span: 200},
	domain.CategorySocial:    {base: 10, span: 100},
	domain.CategoryFinancial: {base: 5, span: 50},
}

// Scanner produces simulated item counts per category.
type Scanner struct {
	scale float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewScanner creates a scanner. A nil rng is seeded from the clock.
func NewScanner(scale float64, rng *rand.Rand) *Scanner {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>7))
	}
	if scale < 0 {
		scale = 0
	}
	return &Scanner{scale: scale, rng: rng}
}

// Scan returns one target per category in domain.Categories order.
func (s *Scanner) Scan(ctx context.Context) ([]domain.CleanupTarget, error) {
	if d := time.Duration(float64(scanDelay) * s.scale); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	targets := make([]domain.CleanupTarget, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		r := scanRanges[c]
		targets = append(targets, domain.CleanupTarget{
			Category: c,
			Label:    c.Label(),
			Count:    r.base + s.rng.IntN(r.span),
		})
	}
	return targets, nil
}
