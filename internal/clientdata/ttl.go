package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Quarterly financial data (updates with filings)
	TTLStatements = 45 * 24 * time.Hour // 45 days - Annual statement history

	// Daily data (refreshed each screening pass)
	TTLSummary       = 24 * time.Hour // 1 day - Quote summary, ratios, market cap
	TTLPriceTarget   = 24 * time.Hour // 1 day - Analyst price target consensus
	TTLInsider       = 24 * time.Hour // 1 day - Insider transactions (time-sensitive signal)
	TTLMarketHistory = 24 * time.Hour // 1 day - Index close history for regime signals

	// Short-lived data (changes intraday)
	TTLMarketQuote = time.Hour // 1 hour - Index P/E and volatility readings
)
