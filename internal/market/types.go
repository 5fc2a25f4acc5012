// ABOUTME: Market data types returned to dashboard clients
// ABOUTME: Plus the upstream wire shapes they are decoded from

package market

// Quote is the current price snapshot for a symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previous_close"`
	Timestamp     int64   `json:"timestamp"`
}

// Profile is the company profile for a symbol.
type Profile struct {
	Name     string `json:"name"`
	Logo     string `json:"logo,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Industry string `json:"industry,omitempty"`
	Currency string `json:"currency,omitempty"`
	WebURL   string `json:"weburl,omitempty"`
}

// Fundamentals holds the headline valuation metrics for a symbol.
// Fields are nil when the provider has no value.
type Fundamentals struct {
	MarketCap  *float64 `json:"market_cap"`
	PERatio    *float64 `json:"pe_ratio"`
	EPS        *float64 `json:"eps"`
	Week52High *float64 `json:"week_52_high"`
	Week52Low  *float64 `json:"week_52_low"`
}

// Summary is one row of the dashboard overview.
type Summary struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Logo          string  `json:"logo,omitempty"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
}

// Detail is everything the single-stock page shows.
type Detail struct {
	Summary
	DayHigh      float64      `json:"day_high"`
	DayLow       float64      `json:"day_low"`
	Exchange     string       `json:"exchange,omitempty"`
	Industry     string       `json:"industry,omitempty"`
	Fundamentals Fundamentals `json:"fundamentals"`
}

// quoteResponse is the upstream /quote body.
type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// profileResponse is the upstream /stock/profile2 body.
type profileResponse struct {
	Name     string `json:"name"`
	Logo     string `json:"logo"`
	Exchange string `json:"exchange"`
	Industry string `json:"finnhubIndustry"`
	Currency string `json:"currency"`
	WebURL   string `json:"weburl"`
}

// metricResponse is the upstream /stock/metric body.
type metricResponse struct {
	Metric struct {
		MarketCap  *float64 `json:"marketCapitalization"`
		PERatio    *float64 `json:"peNormalizedAnnual"`
		EPS        *float64 `json:"epsNormalizedAnnual"`
		Week52High *float64 `json:"52WeekHigh"`
		Week52Low  *float64 `json:"52WeekLow"`
	} `json:"metric"`
}
