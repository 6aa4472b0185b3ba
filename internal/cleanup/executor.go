// Package cleanup simulates scanning for and removing content tied to an ex.
// Nothing is deleted; each category sleeps for a fixed time and reports a
// fixed item count.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
)

type plan struct {
	delay time.Duration
	items int
}

var plans = map[domain.Category]plan{
	domain.CategoryMessages:  {delay: 3 * time.Second, items: 127},
	domain.CategoryPhotos:    {delay: 5 * time.Second, items: 89},
	domain.CategorySocial:    {delay: 2500 * time.Millisecond, items: 43},
	domain.CategoryFinancial: {delay: 1500 * time.Millisecond, items: 12},
}

// ProgressFunc receives 0 when a category starts and 100 when it finishes.
type ProgressFunc func(category domain.Category, percent int)

// Executor runs the simulated cleanup.
type Executor struct {
	scale  float64
	logger *slog.Logger
}

// NewExecutor creates an executor. scale multiplies every delay; 0 makes the
// run instantaneous.
func NewExecutor(scale float64, logger *slog.Logger) *Executor {
	if scale < 0 {
		scale = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{scale: scale, logger: logger}
}

// Execute cleans categories in order without progress reporting.
func (e *Executor) Execute(ctx context.Context, categories []domain.Category) []domain.CleanupResult {
	return e.Run(ctx, categories, nil)
}

// Run cleans categories in order. Once ctx ends, the current and remaining
// categories are reported as failed.
func (e *Executor) Run(ctx context.Context, categories []domain.Category, progress ProgressFunc) []domain.CleanupResult {
	results := make([]domain.CleanupResult, 0, len(categories))
	for _, c := range categories {
		p, ok := plans[c]
		if !ok {
			results = append(results, failed(c, "unknown category"))
			continue
		}
		if progress != nil {
			progress(c, 0)
		}
		if err := e.wait(ctx, p.delay); err != nil {
			e.logger.Warn("Cleanup interrupted", "category", c, "error", err)
			results = append(results, failed(c, err.Error()))
			continue
		}
		results = append(results, domain.CleanupResult{
			Category:       c,
			Success:        true,
			ItemsProcessed: p.items,
			Errors:         []string{},
		})
		if progress != nil {
			progress(c, 100)
		}
		e.logger.Debug("Cleanup category finished", "category", c, "items", p.items)
	}
	return results
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * e.scale)
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

func failed(c domain.Category, reason string) domain.CleanupResult {
	return domain.CleanupResult{Category: c, Success: false, Errors: []string{reason}}
}
