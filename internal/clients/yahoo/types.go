package yahoo

// rawValue mirrors Yahoo's {"raw": 1.23, "fmt": "1.23"} number encoding.
// Absent values decode to a nil Raw.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

// quoteSummaryResponse is the envelope of the v10 quoteSummary API.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *apiError            `json:"error"`
	} `json:"quoteSummary"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteSummaryResult struct {
	Price struct {
		LongName           string   `json:"longName"`
		ShortName          string   `json:"shortName"`
		QuoteType          string   `json:"quoteType"`
		RegularMarketPrice rawValue `json:"regularMarketPrice"`
		MarketCap          rawValue `json:"marketCap"`
	} `json:"price"`

	AssetProfile struct {
		Sector   string `json:"sector"`
		Industry string `json:"industry"`
	} `json:"assetProfile"`

	SummaryDetail struct {
		TrailingPE    rawValue `json:"trailingPE"`
		MarketCap     rawValue `json:"marketCap"`
		PriceToSales  rawValue `json:"priceToSalesTrailing12Months"`
		DividendYield rawValue `json:"dividendYield"`
		PayoutRatio   rawValue `json:"payoutRatio"`
	} `json:"summaryDetail"`

	FinancialData struct {
		CurrentPrice      rawValue `json:"currentPrice"`
		ReturnOnEquity    rawValue `json:"returnOnEquity"`
		RevenueGrowth     rawValue `json:"revenueGrowth"`
		CurrentRatio      rawValue `json:"currentRatio"`
		DebtToEquity      rawValue `json:"debtToEquity"`
		OperatingMargins  rawValue `json:"operatingMargins"`
		FreeCashflow      rawValue `json:"freeCashflow"`
		OperatingCashflow rawValue `json:"operatingCashflow"`
		TargetMeanPrice   rawValue `json:"targetMeanPrice"`
	} `json:"financialData"`

	DefaultKeyStatistics struct {
		TrailingEps        rawValue `json:"trailingEps"`
		BookValue          rawValue `json:"bookValue"`
		NetIncomeToCommon  rawValue `json:"netIncomeToCommon"`
		FiftyTwoWeekChange rawValue `json:"52WeekChange"`
	} `json:"defaultKeyStatistics"`

	IncomeStatementHistory struct {
		Statements []incomeStatement `json:"incomeStatementHistory"`
	} `json:"incomeStatementHistory"`

	BalanceSheetHistory struct {
		Statements []balanceSheet `json:"balanceSheetStatements"`
	} `json:"balanceSheetHistory"`

	CashflowStatementHistory struct {
		Statements []cashflowStatement `json:"cashflowStatements"`
	} `json:"cashflowStatementHistory"`
}

type incomeStatement struct {
	EndDate         rawValue `json:"endDate"`
	TotalRevenue    rawValue `json:"totalRevenue"`
	OperatingIncome rawValue `json:"operatingIncome"`
	NetIncome       rawValue `json:"netIncome"`
}

type balanceSheet struct {
	EndDate                rawValue `json:"endDate"`
	TotalStockholderEquity rawValue `json:"totalStockholderEquity"`
	ShortLongTermDebt      rawValue `json:"shortLongTermDebt"`
	LongTermDebt           rawValue `json:"longTermDebt"`
}

type cashflowStatement struct {
	EndDate               rawValue `json:"endDate"`
	OperatingActivities   rawValue `json:"totalCashFromOperatingActivities"`
	CapitalExpenditures   rawValue `json:"capitalExpenditures"`
	FreeCashFlowPrecomput rawValue `json:"freeCashFlow"`
}

// chartResponse is the envelope of the v8 chart API.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

// quoteResponse is the envelope of the v7 quote API, used for the light
// market-signal lookups where a full summary is overkill.
type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  *apiError                `json:"error"`
	} `json:"quoteResponse"`
}
