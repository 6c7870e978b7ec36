// Package finnhub provides a Finnhub API client for analyst price targets
// and insider transactions. The free tier allows 60 requests per minute.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/steward-labs/steward/internal/clientdata"
	"github.com/steward-labs/steward/internal/modules/bubble"
)

// recentTransactionWindow caps how many of the latest insider transactions
// count toward the buy/sell tally.
const recentTransactionWindow = 20

// Client is a Finnhub API client.
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	limiter   *rate.Limiter
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a new Finnhub client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://finnhub.io/api/v1",
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(1), 5), // 60/min
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "finnhub").Logger(),
	}
}

type priceTargetResponse struct {
	TargetMean   float64 `json:"targetMean"`
	TargetMedian float64 `json:"targetMedian"`
}

type cachedTarget struct {
	Target float64 `msgpack:"target"`
}

// PriceTarget returns the analyst consensus price target for a symbol,
// preferring the mean over the median. Implements valuation.TargetSource.
func (c *Client) PriceTarget(ctx context.Context, symbol string) (float64, error) {
	if c.apiKey == "" {
		return 0, fmt.Errorf("finnhub API key not configured")
	}

	if c.cacheRepo != nil {
		var cached cachedTarget
		found, err := c.cacheRepo.GetIfFresh("finnhub_target", symbol, &cached)
		if err == nil && found {
			return cached.Target, nil
		}
	}

	body, err := c.get(ctx, "/stock/price-target", symbol)
	if err != nil {
		return 0, err
	}

	var result priceTargetResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse price target for %s: %w", symbol, err)
	}

	target := result.TargetMean
	if target <= 0 {
		target = result.TargetMedian
	}
	if target <= 0 {
		return 0, fmt.Errorf("no price target available for %s", symbol)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("finnhub_target", symbol, cachedTarget{Target: target}, clientdata.TTLPriceTarget); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache price target")
		}
	}

	return target, nil
}

type insiderResponse struct {
	Data []struct {
		TransactionType string `json:"transactionType"`
	} `json:"data"`
}

// InsiderActivity tallies purchases against sales across the most recent
// insider transactions. Implements bubble.InsiderSource.
func (c *Client) InsiderActivity(ctx context.Context, symbol string) (*bubble.InsiderActivity, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("finnhub API key not configured")
	}

	if c.cacheRepo != nil {
		var cached bubble.InsiderActivity
		found, err := c.cacheRepo.GetIfFresh("finnhub_insider", symbol, &cached)
		if err == nil && found {
			return &cached, nil
		}
	}

	body, err := c.get(ctx, "/stock/insider-transactions", symbol)
	if err != nil {
		return nil, err
	}

	var result insiderResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse insider transactions for %s: %w", symbol, err)
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no insider transactions for %s", symbol)
	}

	transactions := result.Data
	if len(transactions) > recentTransactionWindow {
		transactions = transactions[:recentTransactionWindow]
	}

	activity := &bubble.InsiderActivity{}
	for _, t := range transactions {
		switch t.TransactionType {
		case "P":
			activity.Buys++
		case "S":
			activity.Sells++
		}
	}
	activity.Brief = fmt.Sprintf("%d sells, %d buys recently", activity.Sells, activity.Buys)

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("finnhub_insider", symbol, activity, clientdata.TTLInsider); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache insider activity")
		}
	}

	return activity, nil
}

func (c *Client) get(ctx context.Context, path, symbol string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
