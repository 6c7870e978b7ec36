// Package yahoo provides a Yahoo Finance API client with persistent caching
// and rate limiting. It is the primary source of per-symbol fundamentals and
// market-wide regime signals.
package yahoo

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
	"github.com/steward-labs/steward/internal/domain"
	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

const (
	summaryModules    = "price,assetProfile,summaryDetail,financialData,defaultKeyStatistics"
	statementsModules = "incomeStatementHistory,balanceSheetHistory,cashflowStatementHistory"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is a Yahoo Finance API client. All lookups are cache-first: fresh
// cache entries skip the network entirely, and stale entries serve as a
// fallback when the API fails.
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a new Yahoo Finance client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, requestsPerMinute float64, log zerolog.Logger) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &Client{
		baseURL:   "https://query1.finance.yahoo.com",
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(requestsPerMinute/60), 1),
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "yahoo").Logger(),
	}
}

// Lookup returns the point-in-time fundamentals record for a symbol.
// Implements fundamentals.Provider.
func (c *Client) Lookup(ctx context.Context, symbol string) (*fundamentals.Record, error) {
	if c.cacheRepo != nil {
		var cached fundamentals.Record
		found, err := c.cacheRepo.GetIfFresh("yahoo_summary", symbol, &cached)
		if err == nil && found {
			c.log.Debug().Str("symbol", symbol).Msg("Summary cache hit")
			return &cached, nil
		}
	}

	result, err := c.quoteSummary(ctx, symbol, summaryModules)
	if err != nil {
		if stale := c.staleRecord(symbol); stale != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale cached summary")
			return stale, nil
		}
		return nil, err
	}

	rec := recordFromSummary(symbol, result)
	if rec == nil {
		return nil, fmt.Errorf("%s: %w", symbol, fundamentals.ErrNotAvailable)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("yahoo_summary", symbol, rec, clientdata.TTLSummary); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache summary")
		}
	}

	return rec, nil
}

// Statements returns multi-year annual financials, newest year first.
// Implements fundamentals.Provider.
func (c *Client) Statements(ctx context.Context, symbol string) (*fundamentals.Statements, error) {
	if c.cacheRepo != nil {
		var cached fundamentals.Statements
		found, err := c.cacheRepo.GetIfFresh("yahoo_statements", symbol, &cached)
		if err == nil && found {
			c.log.Debug().Str("symbol", symbol).Msg("Statements cache hit")
			return &cached, nil
		}
	}

	result, err := c.quoteSummary(ctx, symbol, statementsModules)
	if err != nil {
		if c.cacheRepo != nil {
			var stale fundamentals.Statements
			if found, gerr := c.cacheRepo.Get("yahoo_statements", symbol, &stale); gerr == nil && found {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale cached statements")
				return &stale, nil
			}
		}
		return nil, err
	}

	stmts := statementsFromSummary(symbol, result)
	if len(stmts.Years) == 0 {
		return nil, fmt.Errorf("%s statements: %w", symbol, fundamentals.ErrNotAvailable)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("yahoo_statements", symbol, stmts, clientdata.TTLStatements); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache statements")
		}
	}

	return stmts, nil
}

func (c *Client) staleRecord(symbol string) *fundamentals.Record {
	if c.cacheRepo == nil {
		return nil
	}
	var stale fundamentals.Record
	found, err := c.cacheRepo.Get("yahoo_summary", symbol, &stale)
	if err != nil || !found {
		return nil
	}
	return &stale
}

// quoteSummary fetches the requested modules from the v10 quoteSummary API.
func (c *Client) quoteSummary(ctx context.Context, symbol, modules string) (*quoteSummaryResult, error) {
	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(modules))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result quoteSummaryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response for %s: %w", symbol, err)
	}

	if result.QuoteSummary.Error != nil {
		if result.QuoteSummary.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%s: %w", symbol, fundamentals.ErrNotAvailable)
		}
		return nil, fmt.Errorf("API error for %s: %s", symbol, result.QuoteSummary.Error.Description)
	}

	if len(result.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, fundamentals.ErrNotAvailable)
	}

	return &result.QuoteSummary.Result[0], nil
}

// get performs a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fundamentals.ErrNotAvailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// recordFromSummary maps a quoteSummary result onto a fundamentals record.
// Returns nil when the result carries no usable price data.
func recordFromSummary(symbol string, r *quoteSummaryResult) *fundamentals.Record {
	price := firstRaw(r.FinancialData.CurrentPrice, r.Price.RegularMarketPrice)
	if price == nil {
		return nil
	}

	name := r.Price.LongName
	if name == "" {
		name = r.Price.ShortName
	}

	rec := &fundamentals.Record{
		Symbol:    symbol,
		Name:      name,
		Sector:    r.AssetProfile.Sector,
		Industry:  r.AssetProfile.Industry,
		QuoteType: domain.QuoteType(r.Price.QuoteType),
		FetchedAt: time.Now().UTC(),
		Price:     *price,

		PERatio:            r.SummaryDetail.TrailingPE.Raw,
		ROE:                r.FinancialData.ReturnOnEquity.Raw,
		RevenueGrowth:      r.FinancialData.RevenueGrowth.Raw,
		CurrentRatio:       r.FinancialData.CurrentRatio.Raw,
		OperatingMargin:    r.FinancialData.OperatingMargins.Raw,
		PayoutRatio:        r.SummaryDetail.PayoutRatio.Raw,
		EPS:                r.DefaultKeyStatistics.TrailingEps.Raw,
		BookValue:          r.DefaultKeyStatistics.BookValue.Raw,
		PriceToSales:       r.SummaryDetail.PriceToSales.Raw,
		TargetMeanPrice:    r.FinancialData.TargetMeanPrice.Raw,
		FiftyTwoWeekChange: r.DefaultKeyStatistics.FiftyTwoWeekChange.Raw,
		DividendYield:      r.SummaryDetail.DividendYield.Raw,
	}

	if cap := firstRaw(r.Price.MarketCap, r.SummaryDetail.MarketCap); cap != nil {
		rec.MarketCap = *cap
	}

	// Yahoo reports debt/equity as a percentage; everything downstream
	// works in ratios.
	if de := r.FinancialData.DebtToEquity.Raw; de != nil {
		ratio := *de / 100
		rec.DebtEquity = &ratio
	}

	if fcf := r.FinancialData.FreeCashflow.Raw; fcf != nil && rec.MarketCap > 0 {
		yield := *fcf / rec.MarketCap
		rec.FCFYield = &yield
	}

	ocf := r.FinancialData.OperatingCashflow.Raw
	ni := r.DefaultKeyStatistics.NetIncomeToCommon.Raw
	if ocf != nil && ni != nil && *ni > 0 {
		quality := *ocf / *ni
		rec.EarningsQuality = &quality
	}

	return rec
}

// statementsFromSummary joins the three statement histories by fiscal year
// end date. Yahoo returns them newest first; that order is preserved.
func statementsFromSummary(symbol string, r *quoteSummaryResult) *fundamentals.Statements {
	type yearExtras struct {
		equity    *float64
		totalDebt *float64
		fcf       *float64
	}

	extras := make(map[int64]yearExtras)
	for _, bs := range r.BalanceSheetHistory.Statements {
		if bs.EndDate.Raw == nil {
			continue
		}
		e := extras[int64(*bs.EndDate.Raw)]
		e.equity = bs.TotalStockholderEquity.Raw
		e.totalDebt = sumRaw(bs.ShortLongTermDebt, bs.LongTermDebt)
		extras[int64(*bs.EndDate.Raw)] = e
	}
	for _, cf := range r.CashflowStatementHistory.Statements {
		if cf.EndDate.Raw == nil {
			continue
		}
		e := extras[int64(*cf.EndDate.Raw)]
		if cf.FreeCashFlowPrecomput.Raw != nil {
			e.fcf = cf.FreeCashFlowPrecomput.Raw
		} else {
			// Capital expenditures come in negative, so this is a sum.
			e.fcf = sumRaw(cf.OperatingActivities, cf.CapitalExpenditures)
		}
		extras[int64(*cf.EndDate.Raw)] = e
	}

	stmts := &fundamentals.Statements{Symbol: symbol}
	for _, is := range r.IncomeStatementHistory.Statements {
		if is.EndDate.Raw == nil {
			continue
		}
		year := fundamentals.AnnualReport{
			Revenue:         is.TotalRevenue.Raw,
			NetIncome:       is.NetIncome.Raw,
			OperatingIncome: is.OperatingIncome.Raw,
		}
		if e, ok := extras[int64(*is.EndDate.Raw)]; ok {
			year.Equity = e.equity
			year.TotalDebt = e.totalDebt
			year.FreeCashFlow = e.fcf
		}
		stmts.Years = append(stmts.Years, year)
	}

	return stmts
}

// firstRaw returns the first non-nil raw value.
func firstRaw(values ...rawValue) *float64 {
	for _, v := range values {
		if v.Raw != nil {
			return v.Raw
		}
	}
	return nil
}

// sumRaw adds the present values, returning nil when both are absent.
func sumRaw(a, b rawValue) *float64 {
	if a.Raw == nil && b.Raw == nil {
		return nil
	}
	var sum float64
	if a.Raw != nil {
		sum += *a.Raw
	}
	if b.Raw != nil {
		sum += *b.Raw
	}
	return &sum
}
