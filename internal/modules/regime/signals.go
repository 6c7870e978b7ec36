package regime

import (
	"context"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
)

// minHistory is the fewest daily closes we accept before computing
// technicals.
const minHistory = 50

const ma200Period = 200

// MarketData supplies the aggregate signals. Implementations fetch from a
// market data provider; errors mean "signal unavailable this run".
type MarketData interface {
	MarketPE(ctx context.Context) (float64, error)
	VolatilityIndex(ctx context.Context) (float64, error)
	IndexHistory(ctx context.Context) ([]float64, error)
}

// Collector gathers regime signals from a market data source. Each signal
// degrades independently: a failed fetch leaves that signal absent and the
// classifier votes with the rest.
type Collector struct {
	source MarketData
	log    zerolog.Logger
}

func NewCollector(source MarketData, log zerolog.Logger) *Collector {
	return &Collector{
		source: source,
		log:    log.With().Str("component", "regime_collector").Logger(),
	}
}

// Collect fetches all available signals.
func (c *Collector) Collect(ctx context.Context) Signals {
	var signals Signals

	if pe, err := c.source.MarketPE(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Market P/E unavailable")
	} else {
		signals.MarketPE = &pe
	}

	if vix, err := c.source.VolatilityIndex(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Volatility index unavailable")
	} else {
		signals.VolatilityIndex = &vix
	}

	closes, err := c.source.IndexHistory(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Index history unavailable")
		return signals
	}
	signals.Drawdown, signals.MA200Distance = Technicals(closes)
	if signals.Drawdown == nil {
		c.log.Warn().Int("closes", len(closes)).Msg("Too little index history for technicals")
	}

	return signals
}

// Technicals computes drawdown from the 52-week peak and distance from the
// 200-day moving average out of daily closes, oldest first. When fewer than
// 200 closes exist the average uses what is there.
func Technicals(closes []float64) (drawdown, ma200Distance *float64) {
	if len(closes) < minHistory {
		return nil, nil
	}

	current := closes[len(closes)-1]

	peak := closes[0]
	for _, c := range closes[1:] {
		if c > peak {
			peak = c
		}
	}
	if peak > 0 {
		dd := (current - peak) / peak
		drawdown = &dd
	}

	period := ma200Period
	if len(closes) < period {
		period = len(closes)
	}
	sma := talib.Sma(closes, period)
	ma := sma[len(sma)-1]
	if ma > 0 {
		dist := (current - ma) / ma
		ma200Distance = &dist
	}

	return drawdown, ma200Distance
}
