package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/steward-labs/steward/internal/clientdata"
)

// Market-signal symbols. VOO reports a cleaner trailing P/E than SPY, so it
// is tried first with SPY as the fallback.
var marketPESymbols = []string{"VOO", "SPY"}

const (
	vixSymbol   = "^VIX"
	indexSymbol = "SPY"
)

type cachedSignal struct {
	Value float64 `msgpack:"value"`
}

type cachedSeries struct {
	Closes []float64 `msgpack:"closes"`
}

// MarketPE returns the trailing P/E of a broad S&P 500 fund.
// Implements regime.MarketData.
func (c *Client) MarketPE(ctx context.Context) (float64, error) {
	if v, ok := c.freshSignal("market_pe"); ok {
		return v, nil
	}

	for _, symbol := range marketPESymbols {
		info, err := c.quote(ctx, symbol)
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Msg("Market P/E fetch failed")
			continue
		}
		if pe := getFloat(info, "trailingPE"); pe != nil && *pe > 0 {
			c.storeSignal("market_pe", *pe)
			return *pe, nil
		}
	}

	return 0, fmt.Errorf("market P/E unavailable from %v", marketPESymbols)
}

// VolatilityIndex returns the current VIX level.
// Implements regime.MarketData.
func (c *Client) VolatilityIndex(ctx context.Context) (float64, error) {
	if v, ok := c.freshSignal("vix"); ok {
		return v, nil
	}

	info, err := c.quote(ctx, vixSymbol)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch VIX: %w", err)
	}

	vix := getFloat(info, "regularMarketPrice")
	if vix == nil || *vix <= 0 {
		return 0, fmt.Errorf("VIX quote carried no price")
	}

	c.storeSignal("vix", *vix)
	return *vix, nil
}

// IndexHistory returns one year of daily index closes, oldest first.
// Implements regime.MarketData.
func (c *Client) IndexHistory(ctx context.Context) ([]float64, error) {
	if c.cacheRepo != nil {
		var cached cachedSeries
		found, err := c.cacheRepo.GetIfFresh("yahoo_series", "index_history", &cached)
		if err == nil && found {
			return cached.Closes, nil
		}
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1y",
		c.baseURL, url.PathEscape(indexSymbol))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index history: %w", err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart response carried no quotes for %s", indexSymbol)
	}

	// Holidays and halts produce null closes; skip them.
	var closes []float64
	for _, close := range chart.Chart.Result[0].Indicators.Quote[0].Close {
		if close != nil && *close > 0 {
			closes = append(closes, *close)
		}
	}

	if c.cacheRepo != nil && len(closes) > 0 {
		if err := c.cacheRepo.Store("yahoo_series", "index_history", cachedSeries{Closes: closes}, clientdata.TTLMarketHistory); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache index history")
		}
	}

	return closes, nil
}

func (c *Client) freshSignal(key string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}
	var cached cachedSignal
	found, err := c.cacheRepo.GetIfFresh("yahoo_series", key, &cached)
	if err != nil || !found {
		return 0, false
	}
	return cached.Value, true
}

func (c *Client) storeSignal(key string, value float64) {
	if c.cacheRepo == nil {
		return
	}
	if err := c.cacheRepo.Store("yahoo_series", key, cachedSignal{Value: value}, clientdata.TTLMarketQuote); err != nil {
		c.log.Warn().Err(err).Str("series", key).Msg("Failed to cache market signal")
	}
}

// quote fetches a single symbol from the v7 quote API.
func (c *Client) quote(ctx context.Context, symbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,regularMarketPrice,trailingPE,quoteType,shortName")

	body, err := c.get(ctx, c.baseURL+"/v7/finance/quote?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote API error: %s", result.QuoteResponse.Error.Description)
	}
	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data returned for %s", symbol)
	}

	return result.QuoteResponse.Result[0], nil
}

func getFloat(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}
