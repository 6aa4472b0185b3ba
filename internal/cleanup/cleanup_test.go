package cleanup

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/lovecleanup/internal/domain"
)

func TestExecutorReportsFixedCounts(t *testing.T) {
	e := NewExecutor(0, nil)

	type event struct {
		c domain.Category
		p int
	}
	var events []event
	results := e.Run(context.Background(), domain.Categories, func(c domain.Category, p int) {
		events = append(events, event{c, p})
	})

	require.Len(t, results, 4)
	want := map[domain.Category]int{
		domain.CategoryMessages:  127,
		domain.CategoryPhotos:    89,
		domain.CategorySocial:    43,
		domain.CategoryFinancial: 12,
	}
	for i, r := range results {
		assert.Equal(t, domain.Categories[i], r.Category)
		assert.True(t, r.Success)
		assert.Equal(t, want[r.Category], r.ItemsProcessed)
		assert.Empty(t, r.Errors)
	}
	require.Len(t, events, 8)
	assert.Equal(t, event{domain.CategoryMessages, 0}, events[0])
	assert.Equal(t, event{domain.CategoryFinancial, 100}, events[7])

	run := domain.CleanupRun{Results: results}
	assert.Equal(t, 271, run.TotalProcessed())
}

func TestExecutorStopsOnCancel(t *testing.T) {
	e := NewExecutor(1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := e.Execute(ctx, []domain.Category{domain.CategoryMessages, domain.CategoryPhotos})
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Zero(t, r.ItemsProcessed)
		assert.NotEmpty(t, r.Errors)
	}
}

func TestExecutorUnknownCategory(t *testing.T) {
	results := NewExecutor(0, nil).Execute(context.Background(), []domain.Category{"pets"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestScannerRanges(t *testing.T) {
	s := NewScanner(0, rand.New(rand.NewPCG(7, 11)))
	bounds := map[domain.Category][2]int{
		domain.CategoryMessages:  {50, 549},
		domain.CategoryPhotos:    {20, 219},
		domain.CategorySocial:    {10, 109},
		domain.CategoryFinancial: {5, 54},
	}

	for range 100 {
		targets, err := s.Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, targets, 4)
		for _, tg := range targets {
			b := bounds[tg.Category]
			assert.GreaterOrEqual(t, tg.Count, b[0])
			assert.LessOrEqual(t, tg.Count, b[1])
			assert.Equal(t, tg.Category.Label(), tg.Label)
		}
	}
}

func TestScannerIsSeedable(t *testing.T) {
	a, err := NewScanner(0, rand.New(rand.NewPCG(1, 2))).Scan(context.Background())
	require.NoError(t, err)
	b, err := NewScanner(0, rand.New(rand.NewPCG(1, 2))).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScannerHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(1, nil).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
