package store

import (
	"strings"
	"time"

	"github.com/noface-00/prims/internal/model"
)

const defaultCurrency = "USD"

// ProductAnalysis is the single current analysis row per product.
type ProductAnalysis struct {
	ID              uint      `gorm:"primaryKey"`
	ProductID       string    `gorm:"size:64;uniqueIndex;not null"`
	RunID           string    `gorm:"size:36"`
	ProductName     string    `gorm:"size:200"`
	AnalysisDate    time.Time `gorm:"index"`
	PriceActual     float64
	PriceDifference float64
	MarketAverage   float64
	MarketMin       float64
	MarketMax       float64
	StdDeviation    float64
	CoefVar         float64
	SampleSize      int
	Stability       string `gorm:"size:32"`
	Confidence      string `gorm:"size:32"`
	TrustScore      float64
	Alert           string `gorm:"size:32"`
	DiscountPct     float64
	AlertMessage    string `gorm:"size:255"`
	PercentChange   float64
	Volatility      float64
	Trend           string `gorm:"size:32"`
	VolatilityLabel string `gorm:"size:16"`
	SellerRef       string `gorm:"size:100;index"`
	CouponRef       string `gorm:"size:100"`
	ImageURL        string `gorm:"size:1000"`
	AccountAge      string `gorm:"size:64"`
	Degraded        bool
	Failures        string `gorm:"size:255"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PriceHistory struct {
	ID         uint      `gorm:"primaryKey"`
	ProductID  string    `gorm:"size:64;index:idx_history_product_time;not null"`
	Price      float64   `gorm:"not null"`
	Currency   string    `gorm:"size:8;not null"`
	RecordedAt time.Time `gorm:"index:idx_history_product_time;not null"`
}

func (PriceHistory) TableName() string { return "price_history" }

type Product struct {
	ID        uint   `gorm:"primaryKey"`
	ItemID    string `gorm:"size:200;uniqueIndex;not null"`
	Name      string `gorm:"size:200;not null"`
	SellerRef string `gorm:"size:100;index"`
	URL       string `gorm:"size:1000"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Seller struct {
	ID              uint   `gorm:"primaryKey"`
	Ref             string `gorm:"size:100;uniqueIndex;not null"`
	Username        string `gorm:"size:100;not null"`
	FeedbackScore   int
	FeedbackPercent float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Coupon struct {
	ID          uint   `gorm:"primaryKey"`
	Ref         string `gorm:"size:100"`
	ProductID   string `gorm:"size:64;index;not null"`
	Code        string `gorm:"size:150;not null"`
	Description string `gorm:"size:255"`
	ExpiresAt   time.Time
}

type ProductImage struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID string `gorm:"size:64;index;not null"`
	URL       string `gorm:"size:1000;not null"`
	IsMain    bool
}

// upsertColumns are overwritten when the product already has a row.
var upsertColumns = []string{
	"run_id", "product_name", "analysis_date", "price_actual", "price_difference",
	"market_average", "market_min", "market_max", "std_deviation", "coef_var",
	"sample_size", "stability", "confidence", "trust_score", "alert",
	"discount_pct", "alert_message", "percent_change", "volatility", "trend",
	"volatility_label", "seller_ref", "coupon_ref", "image_url", "account_age",
	"degraded", "failures", "updated_at",
}

func analysisRow(s *model.Snapshot) ProductAnalysis {
	return ProductAnalysis{
		ProductID:       s.ProductID,
		RunID:           s.RunID,
		ProductName:     s.ProductName,
		AnalysisDate:    s.Timestamp,
		PriceActual:     s.PriceActual,
		PriceDifference: s.PriceDifference,
		MarketAverage:   s.Stats.Mean,
		MarketMin:       s.Stats.Min,
		MarketMax:       s.Stats.Max,
		StdDeviation:    s.Stats.StdDev,
		CoefVar:         s.Stats.CoefVar,
		SampleSize:      s.Stats.SampleSize,
		Stability:       s.Stats.Stability,
		Confidence:      s.Stats.Confidence,
		TrustScore:      s.TrustScore,
		Alert:           string(s.Alert.Alert),
		DiscountPct:     s.Alert.DiscountPct,
		AlertMessage:    s.Alert.Message,
		PercentChange:   s.Trend.PercentChange,
		Volatility:      s.Trend.Volatility,
		Trend:           s.Trend.Trend,
		VolatilityLabel: s.Trend.VolatilityLabel,
		SellerRef:       s.SellerRef,
		CouponRef:       s.CouponRef,
		ImageURL:        s.ImageURL,
		AccountAge:      s.AccountAge,
		Degraded:        s.Degraded,
		Failures:        strings.Join(s.Failures, ","),
	}
}

func (r ProductAnalysis) snapshot() *model.Snapshot {
	s := &model.Snapshot{
		ID:              r.ID,
		RunID:           r.RunID,
		ProductID:       r.ProductID,
		ProductName:     r.ProductName,
		Timestamp:       r.AnalysisDate,
		PriceActual:     r.PriceActual,
		PriceDifference: r.PriceDifference,
		Stats: model.PriceStatistics{
			Mean:       r.MarketAverage,
			Min:        r.MarketMin,
			Max:        r.MarketMax,
			StdDev:     r.StdDeviation,
			CoefVar:    r.CoefVar,
			SampleSize: r.SampleSize,
			Stability:  r.Stability,
			Confidence: r.Confidence,
		},
		TrustScore: r.TrustScore,
		Alert: model.AlertResult{
			Alert:       model.PriceAlert(r.Alert),
			DiscountPct: r.DiscountPct,
			Message:     r.AlertMessage,
		},
		Trend: model.TrendInfo{
			PercentChange:   r.PercentChange,
			Volatility:      r.Volatility,
			Trend:           r.Trend,
			VolatilityLabel: r.VolatilityLabel,
		},
		SellerRef:  r.SellerRef,
		CouponRef:  r.CouponRef,
		ImageURL:   r.ImageURL,
		AccountAge: r.AccountAge,
		Degraded:   r.Degraded,
	}
	if r.Failures != "" {
		s.Failures = strings.Split(r.Failures, ",")
	}
	return s
}
