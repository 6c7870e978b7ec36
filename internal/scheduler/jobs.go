package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/modules/watchlist"
)

// Generous ceilings so a hung provider cannot wedge the scheduler.
const (
	fullScreenTimeout = 2 * time.Hour
	priceCheckTimeout = 30 * time.Minute
)

// FullScreenJob runs the complete screening pipeline on schedule: the
// whole universe is re-fetched, re-scored, re-tiered and persisted as a
// new snapshot.
type FullScreenJob struct {
	service *watchlist.Service
	log     zerolog.Logger
}

func NewFullScreenJob(service *watchlist.Service, log zerolog.Logger) *FullScreenJob {
	return &FullScreenJob{
		service: service,
		log:     log.With().Str("job", "full_screen").Logger(),
	}
}

func (j *FullScreenJob) Name() string { return "full_screen" }

func (j *FullScreenJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), fullScreenTimeout)
	defer cancel()

	result, err := j.service.Run(ctx)
	if errors.Is(err, watchlist.ErrRunInProgress) {
		j.log.Warn().Msg("Another screening run is in flight, skipping scheduled screen")
		return nil
	}
	if err != nil {
		return fmt.Errorf("full screen failed: %w", err)
	}

	j.log.Info().
		Str("snapshot_id", result.Snapshot.ID).
		Str("regime", result.Meta.Regime).
		Int("assignments", len(result.Snapshot.Assignments)).
		Int("movements", len(result.Movements)).
		Msg("Scheduled screen completed")

	return nil
}

// PriceCheckJob re-prices the standing watchlist between full screens and
// logs entries that have drifted into their approaching-target window.
type PriceCheckJob struct {
	service *watchlist.Service
	log     zerolog.Logger
}

func NewPriceCheckJob(service *watchlist.Service, log zerolog.Logger) *PriceCheckJob {
	return &PriceCheckJob{
		service: service,
		log:     log.With().Str("job", "price_check").Logger(),
	}
}

func (j *PriceCheckJob) Name() string { return "price_check" }

func (j *PriceCheckJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), priceCheckTimeout)
	defer cancel()

	alerts, err := j.service.CheckPrices(ctx)
	if err != nil {
		return fmt.Errorf("price check failed: %w", err)
	}

	for _, alert := range alerts {
		j.log.Info().
			Str("symbol", alert.Symbol).
			Float64("target", alert.TargetEntry).
			Float64("price", alert.CurrentPrice).
			Float64("gap_pct", alert.GapPct*100).
			Msg("Approaching target entry price")
	}

	return nil
}
