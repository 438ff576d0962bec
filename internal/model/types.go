package model

import "time"

// Product is the catalog entry an analysis is run against.
type Product struct {
	ItemID    string
	Name      string
	SellerRef string
	URL       string
}

type Seller struct {
	Ref             string
	Username        string
	FeedbackPercent float64
	FeedbackScore   int
}

type Coupon struct {
	Ref         string
	Code        string
	Description string
	ExpiresAt   time.Time
}

// Listing is a comparable marketplace listing.
type Listing struct {
	ItemID    string
	Title     string
	Price     float64
	Currency  string
	Seller    string
	URL       string
	CreatedAt time.Time
}

// PricePoint is a single observation in a product's price history.
type PricePoint struct {
	Price     float64   `json:"price"`
	Currency  string    `json:"currency,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketSample is the set of comparable prices fetched for one query.
// Superseded by a fresh fetch after cache expiry, never mutated.
type MarketSample struct {
	Query     string    `json:"query"`
	Prices    []float64 `json:"prices"`
	FetchedAt time.Time `json:"fetched_at"`
}

type PriceStatistics struct {
	Mean       float64 `json:"mean"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	StdDev     float64 `json:"std_dev"`
	CoefVar    float64 `json:"coef_var"`
	SampleSize int     `json:"sample_size"`
	Stability  string  `json:"stability"`
	Confidence string  `json:"confidence"`
}

// PriceAlert labels a price against market statistics.
type PriceAlert string

const (
	AlertInsufficientData   PriceAlert = "INSUFFICIENT_DATA"
	AlertSuspiciouslyLow    PriceAlert = "SUSPICIOUSLY_LOW"
	AlertBelowMarketWarning PriceAlert = "BELOW_MARKET_WARNING"
	AlertOpportunity        PriceAlert = "OPPORTUNITY"
	AlertFair               PriceAlert = "FAIR"
	AlertAboveMarket        PriceAlert = "ABOVE_MARKET"
	AlertAcceptable         PriceAlert = "ACCEPTABLE"
)

type AlertResult struct {
	Alert       PriceAlert `json:"alert"`
	DiscountPct float64    `json:"discount_pct,omitempty"` // only set for SUSPICIOUSLY_LOW
	Message     string     `json:"message"`
}

type TrustInputs struct {
	CurrentPrice    float64
	MarketMean      float64
	MarketStdDev    float64
	FeedbackPercent float64
	FeedbackScore   int
	AccountAge      string
}

type TrendInfo struct {
	PercentChange   float64 `json:"percent_change"`
	Volatility      float64 `json:"volatility"`
	Trend           string  `json:"trend"`
	VolatilityLabel string  `json:"volatility_label"`
}

// Snapshot is the current analysis record for a product.
type Snapshot struct {
	ID              uint            `json:"id,omitempty"`
	RunID           string          `json:"run_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	PriceActual     float64         `json:"price_actual"`
	PriceDifference float64         `json:"price_difference"`
	Stats           PriceStatistics `json:"stats"`
	TrustScore      float64         `json:"trust_score"`
	Alert           AlertResult     `json:"alert"`
	Trend           TrendInfo       `json:"trend"`
	SellerRef       string          `json:"seller_ref,omitempty"`
	CouponRef       string          `json:"coupon_ref,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	AccountAge      string          `json:"account_age,omitempty"`
	Degraded        bool            `json:"degraded"`
	Failures        []string        `json:"failures,omitempty"`
}

// DailyCount is the number of analyses recorded on one date (YYYY-MM-DD).
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type GeneralStats struct {
	TotalAnalyzed      int64        `json:"total_analyzed"`
	AvgPriceDifference float64      `json:"avg_price_difference"`
	Daily              []DailyCount `json:"daily"`
}
