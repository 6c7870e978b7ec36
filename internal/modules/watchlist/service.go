package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/modules/fundamentals"
	"github.com/steward-labs/steward/internal/modules/qualitative"
	"github.com/steward-labs/steward/internal/modules/regime"
	"github.com/steward-labs/steward/internal/modules/screening"
	"github.com/steward-labs/steward/internal/modules/tiering"
	"github.com/steward-labs/steward/internal/modules/universe"
	"github.com/steward-labs/steward/internal/modules/valuation"
)

// RunResult is everything one screening run produced.
type RunResult struct {
	Snapshot  *tiering.Snapshot         `json:"snapshot"`
	Movements []tiering.MovementEvent   `json:"movements"`
	Regime    regime.Classification     `json:"regime"`
	Meta      RunMeta                   `json:"meta"`
	Screened  []screening.ScreenedStock `json:"screened"`
}

// Service runs the full pipeline: universe, fundamentals, screening,
// regime, qualitative verdicts, valuation, tiering, movement diff, and
// persistence.
type Service struct {
	universe   *universe.Source
	provider   fundamentals.Provider
	fetcher    *fundamentals.Fetcher
	screener   *screening.Screener
	collector  *regime.Collector
	analyzer   *qualitative.Analyzer
	valuations *valuation.Aggregator
	engine     *tiering.Engine
	repo       *Repository
	log        zerolog.Logger

	// runGuard single-flights screening runs across every entry point:
	// scheduled, HTTP-triggered, and direct calls share the one slot.
	runGuard chan struct{}
}

// ErrRunInProgress reports that another screening run holds the run slot.
var ErrRunInProgress = errors.New("screening run already in progress")

// NewService wires the pipeline together.
func NewService(
	source *universe.Source,
	provider fundamentals.Provider,
	fetcher *fundamentals.Fetcher,
	screener *screening.Screener,
	collector *regime.Collector,
	analyzer *qualitative.Analyzer,
	valuations *valuation.Aggregator,
	engine *tiering.Engine,
	repo *Repository,
	log zerolog.Logger,
) *Service {
	return &Service{
		universe:   source,
		provider:   provider,
		fetcher:    fetcher,
		screener:   screener,
		collector:  collector,
		analyzer:   analyzer,
		valuations: valuations,
		engine:     engine,
		repo:       repo,
		log:        log.With().Str("component", "watchlist").Logger(),
		runGuard:   make(chan struct{}, 1),
	}
}

// Run executes one complete screening pass and persists the snapshot.
// Only one run executes at a time; an overlapping caller gets
// ErrRunInProgress instead of racing the repository.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	if !s.reserveRun() {
		return nil, ErrRunInProgress
	}
	defer s.releaseRun()
	return s.run(ctx)
}

// TriggerRun reserves the run slot and executes the run in the background,
// so callers learn about an overlap before any work starts.
func (s *Service) TriggerRun(timeout time.Duration) error {
	if !s.reserveRun() {
		return ErrRunInProgress
	}

	go func() {
		defer s.releaseRun()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if _, err := s.run(ctx); err != nil {
			s.log.Error().Err(err).Msg("Background screening run failed")
		}
	}()

	return nil
}

func (s *Service) reserveRun() bool {
	select {
	case s.runGuard <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Service) releaseRun() { <-s.runGuard }

func (s *Service) run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	symbols := s.universe.Symbols()
	s.log.Info().Int("symbols", len(symbols)).Msg("Screening run starting")

	records, fetchSummary := s.fetcher.FetchAll(ctx, symbols)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("run cancelled during fetch: %w", ctx.Err())
	}

	screened, screenSummary := s.screener.Screen(records)

	classification := regime.Classify(s.collector.Collect(ctx))

	previous, err := s.repo.LatestSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	inputs := s.buildInputs(ctx, screened)
	assignments, failures := s.engine.AssignAll(inputs)

	snapshot := &tiering.Snapshot{
		ID:          uuid.NewString(),
		TakenAt:     time.Now().UTC(),
		Assignments: assignments,
	}

	movements := tiering.Diff(previous, snapshot)

	meta := RunMeta{
		SnapshotID:       snapshot.ID,
		TakenAt:          snapshot.TakenAt,
		Regime:           string(classification.Regime),
		RegimeConfidence: string(classification.Confidence),
		Requested:        fetchSummary.Requested,
		Fetched:          fetchSummary.Fetched,
		Skipped:          fetchSummary.Skipped,
		Failed:           fetchSummary.Failed,
		Kept:             screenSummary.Kept,
		LowConfidence:    screenSummary.LowConfidence,
		Inconsistent:     len(failures),
	}

	if err := s.repo.SaveRun(snapshot, meta, movements); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}

	s.log.Info().
		Str("snapshot_id", snapshot.ID).
		Str("regime", meta.Regime).
		Int("kept", meta.Kept).
		Int("assigned", len(assignments)).
		Int("movements", len(movements)).
		Dur("elapsed", time.Since(started)).
		Msg("Screening run completed")

	return &RunResult{
		Snapshot:  snapshot,
		Movements: movements,
		Regime:    classification,
		Meta:      meta,
		Screened:  screened,
	}, nil
}

// buildInputs assembles one tiering input per screened stock. A stock
// without a qualitative verdict gets an empty moat and conviction, which
// the engine reports as an inconsistent input rather than failing the run.
func (s *Service) buildInputs(ctx context.Context, screened []screening.ScreenedStock) []tiering.Input {
	inputs := make([]tiering.Input, 0, len(screened))

	for i := range screened {
		stock := &screened[i]
		price := stock.Price

		in := tiering.Input{
			Symbol:       stock.Symbol,
			CurrentPrice: &price,
		}

		verdict, err := s.analyzer.Analyze(ctx, stock.Symbol, stock.Name, stock.Sector)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", stock.Symbol).Msg("No qualitative verdict")
		} else {
			ratings := verdict.Ratings()
			in.Moat = ratings.Moat
			in.Conviction = ratings.Conviction
			in.TargetEntryPrice = verdict.TargetEntryPrice
			in.FairValue = verdict.MidFairValue()
			in.ThesisBroken = verdict.ThesisBroken
		}

		if in.FairValue == nil {
			if val := s.valuations.ValuationFromRecord(ctx, &stock.Record); val != nil {
				in.FairValue = val.AverageFairValue()
			}
		}

		inputs = append(inputs, in)
	}

	return inputs
}

// ProximityAlert flags a watchlist entry whose current price sits inside
// the approaching-target window.
type ProximityAlert struct {
	Symbol       string  `json:"symbol"`
	TargetEntry  float64 `json:"target_entry_price"`
	CurrentPrice float64 `json:"current_price"`
	GapPct       float64 `json:"price_gap_pct"`
}

// CheckPrices re-prices the latest snapshot against current quotes without
// re-screening. Entries within the proximity window of their target entry
// price are returned as alerts; symbols without a fresh quote or without a
// target are skipped.
func (s *Service) CheckPrices(ctx context.Context) ([]ProximityAlert, error) {
	snapshot, err := s.repo.LatestSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if snapshot == nil {
		s.log.Info().Msg("No snapshot yet, skipping price check")
		return nil, nil
	}

	proximity := s.engine.Proximity()
	var alerts []ProximityAlert

	for i := range snapshot.Assignments {
		entry := &snapshot.Assignments[i]
		if entry.TargetEntryPrice == nil {
			continue
		}

		rec, err := s.provider.Lookup(ctx, entry.Symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", entry.Symbol).Msg("Price check lookup failed")
			continue
		}
		if rec.Price <= 0 {
			continue
		}

		target := *entry.TargetEntryPrice
		gap := (rec.Price - target) / target
		if gap > 0 && gap <= proximity {
			alerts = append(alerts, ProximityAlert{
				Symbol:       entry.Symbol,
				TargetEntry:  target,
				CurrentPrice: rec.Price,
				GapPct:       gap,
			})
		}
	}

	s.log.Info().
		Str("snapshot_id", snapshot.ID).
		Int("entries", len(snapshot.Assignments)).
		Int("alerts", len(alerts)).
		Msg("Price check completed")

	return alerts, nil
}

// Current returns the latest snapshot, or nil when no run has happened.
func (s *Service) Current() (*tiering.Snapshot, error) {
	return s.repo.LatestSnapshot()
}

// MovementsFor returns the movements recorded with a snapshot.
func (s *Service) MovementsFor(snapshotID string) ([]tiering.MovementEvent, error) {
	return s.repo.Movements(snapshotID)
}

// History lists recent run metadata, newest first.
func (s *Service) History(limit int) ([]RunMeta, error) {
	return s.repo.Runs(limit)
}

// SnapshotByID returns a historical snapshot, or nil when unknown.
func (s *Service) SnapshotByID(id string) (*tiering.Snapshot, error) {
	return s.repo.Snapshot(id)
}
