package fundamentals

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// FetchSummary reports what happened to a batch fetch. Skips are observable
// to the caller instead of silently shrinking the candidate set.
type FetchSummary struct {
	Requested int
	Fetched   int
	Skipped   int
	Failed    int
}

// Fetcher pulls records for many symbols concurrently with a bounded worker
// count. Per-symbol failures are isolated: a bad symbol is logged and
// skipped, never fatal to the batch.
type Fetcher struct {
	provider Provider
	workers  int
	log      zerolog.Logger
}

// NewFetcher creates a fetcher with the given worker bound.
func NewFetcher(provider Provider, workers int, log zerolog.Logger) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		provider: provider,
		workers:  workers,
		log:      log.With().Str("component", "fundamentals_fetcher").Logger(),
	}
}

// FetchAll fetches records for all symbols and derives trend metrics from
// each symbol's statement history. Results preserve the input symbol order;
// symbols without data are omitted and counted in the summary.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []string) ([]Record, FetchSummary) {
	summary := FetchSummary{Requested: len(symbols)}
	if len(symbols) == 0 {
		return nil, summary
	}

	type result struct {
		index int
		rec   *Record
		err   error
	}

	jobs := make(chan int)
	results := make(chan result)

	var wg sync.WaitGroup
	for w := 0; w < f.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec, err := f.fetchOne(ctx, symbols[i])
				results <- result{index: i, rec: rec, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range symbols {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byIndex := make(map[int]*Record, len(symbols))
	for res := range results {
		switch {
		case res.err == nil:
			byIndex[res.index] = res.rec
		case errors.Is(res.err, ErrNotAvailable):
			summary.Skipped++
			f.log.Debug().Str("symbol", symbols[res.index]).Msg("No fundamentals available, skipping")
		default:
			summary.Failed++
			f.log.Warn().Err(res.err).Str("symbol", symbols[res.index]).Msg("Fundamentals fetch failed, skipping")
		}
	}

	records := make([]Record, 0, len(byIndex))
	for i := range symbols {
		if rec, ok := byIndex[i]; ok {
			records = append(records, *rec)
		}
	}
	summary.Fetched = len(records)

	f.log.Info().
		Int("requested", summary.Requested).
		Int("fetched", summary.Fetched).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Fundamentals batch fetch completed")

	return records, summary
}

// fetchOne retrieves the record and enriches it with trend metrics.
// Statement history is best-effort: trend metrics stay nil if it fails.
func (f *Fetcher) fetchOne(ctx context.Context, symbol string) (*Record, error) {
	rec, err := f.provider.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	stmts, err := f.provider.Statements(ctx, symbol)
	if err != nil && !errors.Is(err, ErrNotAvailable) {
		f.log.Debug().Err(err).Str("symbol", symbol).Msg("Statement history fetch failed, trend metrics unavailable")
	}
	if stmts != nil {
		DeriveTrendMetrics(rec, stmts)
	}

	return rec, nil
}
