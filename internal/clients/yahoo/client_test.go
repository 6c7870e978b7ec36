package yahoo

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/steward-labs/steward/internal/clientdata"
	"github.com/steward-labs/steward/internal/domain"
	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

const summaryFixture = `{
	"quoteSummary": {
		"result": [{
			"price": {
				"longName": "Apple Inc.",
				"quoteType": "EQUITY",
				"regularMarketPrice": {"raw": 182.5},
				"marketCap": {"raw": 2800000000000}
			},
			"assetProfile": {
				"sector": "Technology",
				"industry": "Consumer Electronics"
			},
			"summaryDetail": {
				"trailingPE": {"raw": 29.5},
				"priceToSalesTrailing12Months": {"raw": 7.2},
				"dividendYield": {"raw": 0.0055},
				"payoutRatio": {"raw": 0.15}
			},
			"financialData": {
				"currentPrice": {"raw": 182.5},
				"returnOnEquity": {"raw": 1.45},
				"revenueGrowth": {"raw": 0.08},
				"currentRatio": {"raw": 1.05},
				"debtToEquity": {"raw": 145.0},
				"operatingMargins": {"raw": 0.30},
				"freeCashflow": {"raw": 100000000000},
				"operatingCashflow": {"raw": 110000000000},
				"targetMeanPrice": {"raw": 200.0}
			},
			"defaultKeyStatistics": {
				"trailingEps": {"raw": 6.15},
				"bookValue": {"raw": 4.25},
				"netIncomeToCommon": {"raw": 100000000000},
				"52WeekChange": {"raw": 0.25}
			}
		}],
		"error": null
	}
}`

const statementsFixture = `{
	"quoteSummary": {
		"result": [{
			"incomeStatementHistory": {
				"incomeStatementHistory": [
					{"endDate": {"raw": 1695513600}, "totalRevenue": {"raw": 1200}, "operatingIncome": {"raw": 300}, "netIncome": {"raw": 250}},
					{"endDate": {"raw": 1663977600}, "totalRevenue": {"raw": 1000}, "operatingIncome": {"raw": 280}, "netIncome": {"raw": 200}}
				]
			},
			"balanceSheetHistory": {
				"balanceSheetStatements": [
					{"endDate": {"raw": 1695513600}, "totalStockholderEquity": {"raw": 500}, "shortLongTermDebt": {"raw": 40}, "longTermDebt": {"raw": 60}},
					{"endDate": {"raw": 1663977600}, "totalStockholderEquity": {"raw": 450}, "longTermDebt": {"raw": 90}}
				]
			},
			"cashflowStatementHistory": {
				"cashflowStatements": [
					{"endDate": {"raw": 1695513600}, "totalCashFromOperatingActivities": {"raw": 320}, "capitalExpenditures": {"raw": -70}},
					{"endDate": {"raw": 1663977600}, "freeCashFlow": {"raw": 180}}
				]
			}
		}],
		"error": null
	}
}`

func testCacheRepo(t *testing.T) *clientdata.Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := clientdata.NewRepository(db)
	require.NoError(t, repo.InitSchema())
	return repo
}

func testClient(t *testing.T, handler http.Handler, repo *clientdata.Repository) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(repo, 6000, zerolog.Nop())
	c.baseURL = server.URL
	return c
}

func TestLookupMapsSummary(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(summaryFixture))
	}), nil)

	rec, err := c.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "Apple Inc.", rec.Name)
	assert.Equal(t, "Technology", rec.Sector)
	assert.Equal(t, domain.QuoteTypeEquity, rec.QuoteType)
	assert.Equal(t, 182.5, rec.Price)
	assert.Equal(t, 2.8e12, rec.MarketCap)

	require.NotNil(t, rec.PERatio)
	assert.Equal(t, 29.5, *rec.PERatio)

	// Yahoo's percentage form becomes a ratio
	require.NotNil(t, rec.DebtEquity)
	assert.InDelta(t, 1.45, *rec.DebtEquity, 1e-9)

	require.NotNil(t, rec.FCFYield)
	assert.InDelta(t, 1e11/2.8e12, *rec.FCFYield, 1e-9)

	require.NotNil(t, rec.EarningsQuality)
	assert.InDelta(t, 1.1, *rec.EarningsQuality, 1e-9)

	require.NotNil(t, rec.EPS)
	assert.Equal(t, 6.15, *rec.EPS)
}

func TestLookupNotAvailable(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary": {"result": [], "error": null}}`))
	}), nil)

	_, err := c.Lookup(context.Background(), "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, fundamentals.ErrNotAvailable)
}

func TestLookupCacheHit(t *testing.T) {
	var calls int32
	repo := testCacheRepo(t)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(summaryFixture))
	}), repo)

	_, err := c.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	rec, err := c.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 182.5, rec.Price)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup must come from cache")
}

func TestLookupStaleFallback(t *testing.T) {
	repo := testCacheRepo(t)

	// Seed a stale entry (already expired)
	stale := &fundamentals.Record{Symbol: "AAPL", Price: 170}
	require.NoError(t, repo.Store("yahoo_summary", "AAPL", stale, -1))

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), repo)

	rec, err := c.Lookup(context.Background(), "AAPL")
	require.NoError(t, err, "stale cache should absorb API failures")
	assert.Equal(t, 170.0, rec.Price)
}

func TestStatementsJoinedByYear(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statementsFixture))
	}), nil)

	stmts, err := c.Statements(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, stmts.Years, 2)

	newest := stmts.Years[0]
	require.NotNil(t, newest.Revenue)
	assert.Equal(t, 1200.0, *newest.Revenue)
	require.NotNil(t, newest.TotalDebt)
	assert.Equal(t, 100.0, *newest.TotalDebt, "short and long term debt should sum")
	require.NotNil(t, newest.FreeCashFlow)
	assert.Equal(t, 250.0, *newest.FreeCashFlow, "FCF derives from operating cash flow plus capex")

	prior := stmts.Years[1]
	require.NotNil(t, prior.TotalDebt)
	assert.Equal(t, 90.0, *prior.TotalDebt)
	require.NotNil(t, prior.FreeCashFlow)
	assert.Equal(t, 180.0, *prior.FreeCashFlow, "precomputed FCF wins when present")
}

func TestMarketPEFallsBack(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbols")
		if symbol == "VOO" {
			// No trailingPE on the first fund
			w.Write([]byte(`{"quoteResponse": {"result": [{"symbol": "VOO"}], "error": null}}`))
			return
		}
		w.Write([]byte(`{"quoteResponse": {"result": [{"symbol": "SPY", "trailingPE": 24.8}], "error": null}}`))
	}), nil)

	pe, err := c.MarketPE(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24.8, pe)
}

func TestVolatilityIndex(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": [{"symbol": "^VIX", "regularMarketPrice": 17.3}], "error": null}}`))
	}), nil)

	vix, err := c.VolatilityIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17.3, vix)
}

func TestIndexHistorySkipsNulls(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [{
			"timestamp": [1, 2, 3, 4],
			"indicators": {"quote": [{"close": [100.0, null, 102.5, 103.0]}]}
		}], "error": null}}`))
	}), nil)

	closes, err := c.IndexHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{100.0, 102.5, 103.0}, closes)
}

func TestMarketSignalCached(t *testing.T) {
	var calls int32
	repo := testCacheRepo(t)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"quoteResponse": {"result": [{"symbol": "^VIX", "regularMarketPrice": 17.3}], "error": null}}`))
	}), repo)

	_, err := c.VolatilityIndex(context.Background())
	require.NoError(t, err)
	_, err = c.VolatilityIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
