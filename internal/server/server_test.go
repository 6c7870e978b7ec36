package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/steward-labs/steward/internal/domain"
	"github.com/steward-labs/steward/internal/modules/bubble"
	"github.com/steward-labs/steward/internal/modules/fundamentals"
	"github.com/steward-labs/steward/internal/modules/qualitative"
	"github.com/steward-labs/steward/internal/modules/regime"
	"github.com/steward-labs/steward/internal/modules/screening"
	"github.com/steward-labs/steward/internal/modules/tiering"
	"github.com/steward-labs/steward/internal/modules/universe"
	"github.com/steward-labs/steward/internal/modules/valuation"
	"github.com/steward-labs/steward/internal/modules/watchlist"
)

type stubProvider struct {
	records map[string]*fundamentals.Record

	// gate, when set, blocks lookups until it is closed. Lets a test hold
	// a background run open while it exercises concurrent requests.
	gate chan struct{}
}

func (p *stubProvider) Lookup(_ context.Context, symbol string) (*fundamentals.Record, error) {
	if p.gate != nil {
		<-p.gate
	}
	rec, ok := p.records[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, fundamentals.ErrNotAvailable)
	}
	copy := *rec
	return &copy, nil
}

func (p *stubProvider) Statements(_ context.Context, symbol string) (*fundamentals.Statements, error) {
	return nil, fmt.Errorf("%s statements: %w", symbol, fundamentals.ErrNotAvailable)
}

type stubMarket struct{}

func (stubMarket) MarketPE(context.Context) (float64, error)        { return 20.0, nil }
func (stubMarket) VolatilityIndex(context.Context) (float64, error) { return 18.0, nil }
func (stubMarket) IndexHistory(context.Context) ([]float64, error) {
	return nil, fmt.Errorf("history unavailable")
}

type stubAnalysis struct {
	texts map[string]string
}

func (s *stubAnalysis) Analysis(_ context.Context, symbol, _, _ string) (string, error) {
	text, ok := s.texts[symbol]
	if !ok {
		return "", fmt.Errorf("no analysis for %s", symbol)
	}
	return text, nil
}

const lsccAnalysis = `## MOAT CLASSIFICATION
Type: Switching Costs
Durability: Strong

## MANAGEMENT QUALITY
Capital Allocation: Excellent

## FAIR VALUE ASSESSMENT
Fair Value: $120
Target Entry Price: $100

## CONVICTION LEVEL
HIGH
`

func testServer(t *testing.T) (*Server, *stubProvider) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := watchlist.NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.InitSchema())

	provider := &stubProvider{records: map[string]*fundamentals.Record{
		"LSCC": {
			Symbol:    "LSCC",
			Name:      "LSCC Corp",
			Sector:    "Technology",
			QuoteType: domain.QuoteTypeEquity,
			Price:     90,
			MarketCap: 5e9,
			ROE:       fundamentals.F(0.20),
		},
	}}

	criteria := &screening.Criteria{
		MinMarketCap: 3e8,
		MaxMarketCap: 5e11,
		MinPrice:     5,
		TopN:         100,
		Scoring: map[string]screening.ScoringRule{
			"roe": {Ideal: 0.15, Weight: 1.0, Min: fundamentals.F(0.05)},
		},
	}

	src := universe.NewSource("", zerolog.Nop())
	fetcher := fundamentals.NewFetcher(provider, 2, zerolog.Nop())
	screener := screening.NewScreener(criteria, zerolog.Nop())
	collector := regime.NewCollector(stubMarket{}, zerolog.Nop())
	analyzer := qualitative.NewAnalyzer(&stubAnalysis{texts: map[string]string{"LSCC": lsccAnalysis}}, zerolog.Nop())
	valuations := valuation.NewAggregator(provider, nil, zerolog.Nop())
	engine := tiering.NewEngine(tiering.Config{
		MinMarginOfSafety: 0.25,
		ProximityAlertPct: 0.10,
		TrancheCount:      3,
		TrancheStepPct:    0.05,
	}, zerolog.Nop())

	service := watchlist.NewService(src, provider, fetcher, screener, collector, analyzer, valuations, engine, repo, zerolog.Nop())
	detector := bubble.NewDetector(provider, nil, zerolog.Nop())

	srv := New(Config{
		Log:       zerolog.Nop(),
		Port:      0,
		DevMode:   true,
		Watchlist: service,
		Collector: collector,
		Detector:  detector,
	})
	return srv, provider
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func runOnce(t *testing.T, srv *Server) *tiering.Snapshot {
	t.Helper()
	result, err := srv.watchlist.Run(context.Background())
	require.NoError(t, err)
	return result.Snapshot
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "steward", body["service"])
}

func TestWatchlistBeforeFirstRun(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/watchlist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatchlistAfterRun(t *testing.T) {
	srv, _ := testServer(t)
	snapshot := runOnce(t, srv)

	rec := doRequest(t, srv, http.MethodGet, "/api/watchlist")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Snapshot  tiering.Snapshot        `json:"snapshot"`
		Movements []tiering.MovementEvent `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, snapshot.ID, body.Snapshot.ID)
	require.Len(t, body.Snapshot.Assignments, 1)
	assert.Equal(t, "LSCC", body.Snapshot.Assignments[0].Symbol)
	require.Len(t, body.Movements, 1)
	assert.Equal(t, tiering.MovementNew, body.Movements[0].Type)
}

func TestSnapshotByID(t *testing.T) {
	srv, _ := testServer(t)
	snapshot := runOnce(t, srv)

	rec := doRequest(t, srv, http.MethodGet, "/api/watchlist/snapshots/"+snapshot.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var body tiering.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, snapshot.ID, body.ID)

	rec = doRequest(t, srv, http.MethodGet, "/api/watchlist/snapshots/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMovementsEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	snapshot := runOnce(t, srv)

	rec := doRequest(t, srv, http.MethodGet, "/api/watchlist/snapshots/"+snapshot.ID+"/movements")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SnapshotID string                  `json:"snapshot_id"`
		Movements  []tiering.MovementEvent `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, snapshot.ID, body.SnapshotID)
	assert.Len(t, body.Movements, 1)
}

func TestRunHistoryEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	runOnce(t, srv)
	runOnce(t, srv)

	rec := doRequest(t, srv, http.MethodGet, "/api/watchlist/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []watchlist.RunMeta `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Runs, 1)

	rec = doRequest(t, srv, http.MethodGet, "/api/watchlist/runs?limit=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRunEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/watchlist/run")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// The run happens in the background; poll until the snapshot lands.
	require.Eventually(t, func() bool {
		snapshot, err := srv.watchlist.Current()
		return err == nil && snapshot != nil
	}, 10*time.Second, 50*time.Millisecond)
}

func TestTriggerRunConflict(t *testing.T) {
	srv, provider := testServer(t)
	provider.gate = make(chan struct{})

	rec := doRequest(t, srv, http.MethodPost, "/api/watchlist/run")
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The first run is parked in the provider, so a second trigger must
	// be refused rather than queued.
	rec = doRequest(t, srv, http.MethodPost, "/api/watchlist/run")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(provider.gate)
	require.Eventually(t, func() bool {
		snapshot, err := srv.watchlist.Current()
		return err == nil && snapshot != nil
	}, 10*time.Second, 50*time.Millisecond)
}

func TestRegimeEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/regime")
	require.Equal(t, http.StatusOK, rec.Code)

	var body regime.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, regime.FairValue, body.Regime)
}

func TestBubbleWarningsEndpoint(t *testing.T) {
	srv, provider := testServer(t)
	runOnce(t, srv)

	// A sane record produces no warnings.
	rec := doRequest(t, srv, http.MethodGet, "/api/bubble/warnings")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Scanned  int             `json:"scanned"`
		Warnings []bubble.Warning `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Scanned)
	assert.Empty(t, body.Warnings)

	// Make LSCC look bubbly: extreme P/E against weak growth, stretched
	// price-to-sales, and far above the analyst target.
	lscc := provider.records["LSCC"]
	lscc.PERatio = fundamentals.F(150)
	lscc.RevenueGrowth = fundamentals.F(0.02)
	lscc.PriceToSales = fundamentals.F(40)
	lscc.TargetMeanPrice = fundamentals.F(40)

	rec = doRequest(t, srv, http.MethodGet, "/api/bubble/warnings")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Warnings)
	assert.Equal(t, "LSCC", body.Warnings[0].Symbol)
}

func TestSystemStatusEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Greater(t, body.Goroutines, 0)
}
