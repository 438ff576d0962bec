package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noface-00/prims/internal/cache"
	"github.com/noface-00/prims/internal/concurrent"
	"github.com/noface-00/prims/internal/model"
	"github.com/noface-00/prims/internal/monitoring"
	"github.com/noface-00/prims/internal/stats"
	"github.com/noface-00/prims/internal/trust"
	"github.com/noface-00/prims/internal/volatility"
)

// Fetch names, as reported in Snapshot.Failures and metrics.
const (
	FetchPrice      = "price"
	FetchSeller     = "seller"
	FetchAccountAge = "account_age"
	FetchCoupon     = "coupon"
	FetchHistory    = "history"
	FetchMarket     = "market"
	FetchImage      = "image"
)

const (
	DefaultImageURL    = "/recursos/img/no-image.png"
	DefaultMarketLimit = 100

	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Timeouts bounds each fetch. Their sum is the soft deadline for a whole
// analysis.
type Timeouts struct {
	Product time.Duration
	Price   time.Duration
	Coupon  time.Duration
	Seller  time.Duration
	History time.Duration
	Market  time.Duration
	Image   time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Product: 5 * time.Second,
		Price:   5 * time.Second,
		Coupon:  3 * time.Second,
		Seller:  5 * time.Second,
		History: 5 * time.Second,
		Market:  10 * time.Second,
		Image:   3 * time.Second,
	}
}

// Total is the sum of the fetch timeouts, excluding the product lookup
// that precedes them.
func (t Timeouts) Total() time.Duration {
	return t.Price + t.Coupon + t.Seller + t.History + t.Market + t.Image
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	pick := func(v, def time.Duration) time.Duration {
		if v <= 0 {
			return def
		}
		return v
	}
	return Timeouts{
		Product: pick(t.Product, d.Product),
		Price:   pick(t.Price, d.Price),
		Coupon:  pick(t.Coupon, d.Coupon),
		Seller:  pick(t.Seller, d.Seller),
		History: pick(t.History, d.History),
		Market:  pick(t.Market, d.Market),
		Image:   pick(t.Image, d.Image),
	}
}

// Config tunes the service.
type Config struct {
	Workers      int
	MarketLimit  int
	CacheTTL     time.Duration
	Timeouts     Timeouts
	DefaultImage string
}

// Recorder receives fetch and analysis outcomes, typically for metrics.
type Recorder interface {
	FetchObserved(r concurrent.Result)
	AnalysisCompleted(status string)
}

type nopRecorder struct{}

func (nopRecorder) FetchObserved(concurrent.Result) {}
func (nopRecorder) AnalysisCompleted(string)        {}

// Deps are the collaborators of the service. Market, History and Store are
// required, the rest are optional and their fields stay empty when nil.
type Deps struct {
	Market  MarketDataSource
	History HistoryStore
	Store   AnalysisStore

	Catalog ProductCatalog
	Sellers SellerDirectory
	Ages    AccountAgeEstimator
	Coupons CouponDirectory
	Images  ImageDirectory
	Stats   StatsSource

	// Nil caches are replaced with in-process TTL caches.
	Samples   cache.Cache[model.MarketSample]
	ImageURLs cache.Cache[string]
	Analyses  cache.Cache[model.Snapshot]

	Recorder Recorder
}

// Service runs product analyses.
type Service struct {
	deps     Deps
	cfg      Config
	pool     *concurrent.Pool
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time
	newRunID func() string
}

func NewService(deps Deps, cfg Config, log zerolog.Logger) (*Service, error) {
	if deps.Market == nil {
		return nil, &model.ValidationError{Field: "market", Message: "market data source is required"}
	}
	if deps.History == nil {
		return nil, &model.ValidationError{Field: "history", Message: "history store is required"}
	}
	if deps.Store == nil {
		return nil, &model.ValidationError{Field: "store", Message: "analysis store is required"}
	}

	cfg.Timeouts = cfg.Timeouts.withDefaults()
	if cfg.MarketLimit <= 0 {
		cfg.MarketLimit = DefaultMarketLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.DefaultImage == "" {
		cfg.DefaultImage = DefaultImageURL
	}

	if deps.Samples == nil {
		deps.Samples = cache.NewTTLCache[model.MarketSample](cfg.CacheTTL, cache.WithName("market_price"))
	}
	if deps.ImageURLs == nil {
		deps.ImageURLs = cache.NewTTLCache[string](cfg.CacheTTL, cache.WithName("image"))
	}
	if deps.Analyses == nil {
		deps.Analyses = cache.NewTTLCache[model.Snapshot](cfg.CacheTTL, cache.WithName("analysis"))
	}

	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	s := &Service{
		deps:     deps,
		cfg:      cfg,
		recorder: recorder,
		log:      log.With().Str("component", "analysis").Logger(),
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	s.pool = concurrent.NewPool(concurrent.PoolConfig{
		Workers:      cfg.Workers,
		Timeout:      cfg.Timeouts.Market,
		Backoff:      100 * time.Millisecond,
		ErrorHandler: concurrent.DefaultErrorHandler,
		Observer:     recorder.FetchObserved,
	})
	return s, nil
}

// Analyze resolves productID through the catalog and analyzes it.
func (s *Service) Analyze(ctx context.Context, productID string) (*model.Snapshot, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, &model.ValidationError{Field: "product_id", Message: "must not be empty"}
	}

	if s.deps.Catalog == nil {
		return nil, fmt.Errorf("resolve product %s: no catalog: %w", productID, model.ErrUnavailable)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Product)
	product, err := s.deps.Catalog.Product(lookupCtx, productID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("resolve product %s: %w", productID, err)
	}
	return s.AnalyzeProduct(ctx, product)
}

// AnalyzeProduct gathers every signal for product concurrently, derives the
// market, trust and trend figures and stores the result as the product's
// current snapshot. Fetch failures degrade the snapshot instead of failing
// the call. A storage failure is logged and the snapshot still returned.
func (s *Service) AnalyzeProduct(ctx context.Context, product *model.Product) (*model.Snapshot, error) {
	if product == nil || strings.TrimSpace(product.ItemID) == "" {
		return nil, &model.ValidationError{Field: "product_id", Message: "must not be empty"}
	}
	if strings.TrimSpace(product.Name) == "" {
		return nil, &model.ValidationError{Field: "product_name", Message: "must not be empty"}
	}

	runID := s.newRunID()
	log := s.log.With().Str("product_id", product.ItemID).Str("run_id", runID).Logger()
	started := s.now()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Total())
	defer cancel()

	tasks := s.tasks(product)
	results := s.pool.Run(runCtx, tasks)
	f := collect(results)

	for _, name := range f.failures {
		log.Warn().Str("fetch", name).Err(f.errs[name]).Msg("fetch failed, field degraded")
	}

	// the history refresh may add a point, keep it in the trend input
	price, history := s.refreshPrice(ctx, product.ItemID, f, log)

	market := stats.Market(f.sample.Prices)
	alert := monitoring.ClassifyPrice(price, market.Mean, market.StdDev)

	trustIn := model.TrustInputs{
		CurrentPrice: price,
		MarketMean:   market.Mean,
		MarketStdDev: market.StdDev,
	}
	snap := &model.Snapshot{
		RunID:           runID,
		ProductID:       product.ItemID,
		ProductName:     product.Name,
		Timestamp:       started,
		PriceActual:     price,
		PriceDifference: price - market.Mean,
		Stats:           market,
		Alert:           alert,
		Trend:           volatility.AnalyzeTrend(history),
		ImageURL:        f.image,
		Failures:        f.failures,
		Degraded:        len(f.failures) > 0,
	}
	if snap.ImageURL == "" {
		snap.ImageURL = s.cfg.DefaultImage
	}
	if f.seller != nil {
		trustIn.FeedbackPercent = f.seller.FeedbackPercent
		trustIn.FeedbackScore = f.seller.FeedbackScore
		trustIn.AccountAge = f.age
		snap.SellerRef = f.seller.Ref
		snap.AccountAge = f.age
	}
	if f.coupon != nil {
		snap.CouponRef = f.coupon.Ref
	}
	snap.TrustScore = trust.Score(trustIn)

	if err := s.deps.Store.Upsert(ctx, snap); err != nil {
		log.Error().Err(err).Msg("failed to persist analysis")
	}
	if err := s.deps.Analyses.Put(ctx, cache.AnalysisKey(snap.ProductID), *snap); err != nil {
		log.Debug().Err(err).Msg("caching analysis failed")
	}

	status := StatusOK
	if snap.Degraded {
		status = StatusDegraded
	}
	s.recorder.AnalysisCompleted(status)

	log.Info().
		Float64("price", price).
		Float64("market_mean", market.Mean).
		Int("sample_size", market.SampleSize).
		Str("alert", string(alert.Alert)).
		Float64("trust_score", snap.TrustScore).
		Bool("degraded", snap.Degraded).
		Dur("elapsed", s.now().Sub(started)).
		Msg("analysis complete")

	return snap, nil
}

// refreshPrice settles the current price: the live marketplace price when
// there is one, else the latest recorded price. A live price that differs
// from the latest recorded one is appended to the history.
func (s *Service) refreshPrice(ctx context.Context, productID string, f fetched, log zerolog.Logger) (float64, []model.PricePoint) {
	history := f.history
	var latest *model.PricePoint
	if n := len(history); n > 0 {
		latest = &history[n-1]
	}

	if f.price <= 0 {
		if latest != nil {
			return latest.Price, history
		}
		return 0, history
	}

	if !f.historyOK {
		// without the stored series there is nothing to compare against
		return f.price, history
	}
	if latest != nil && latest.Price == f.price {
		return f.price, history
	}

	at := s.now()
	appended, err := s.deps.History.AppendIfChanged(ctx, productID, f.price, at)
	if err != nil {
		log.Error().Err(err).Float64("price", f.price).Msg("failed to record price")
		return f.price, history
	}
	if !appended {
		log.Debug().Float64("price", f.price).Msg("price already recorded")
	}
	history = append(history, model.PricePoint{Price: f.price, Currency: "USD", Timestamp: at})
	return f.price, history
}

// Latest returns the product's current snapshot from the cache or store.
func (s *Service) Latest(ctx context.Context, productID string) (*model.Snapshot, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, &model.ValidationError{Field: "product_id", Message: "must not be empty"}
	}

	key := cache.AnalysisKey(productID)
	if snap, ok := s.deps.Analyses.Get(ctx, key); ok {
		return &snap, nil
	}

	snap, err := s.deps.Store.FindCurrent(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Analyses.Put(ctx, key, *snap); err != nil {
		s.log.Debug().Err(err).Str("product_id", productID).Msg("caching analysis failed")
	}
	return snap, nil
}

func (s *Service) GeneralStats(ctx context.Context) (model.GeneralStats, error) {
	if s.deps.Stats == nil {
		return model.GeneralStats{}, fmt.Errorf("general statistics: %w", model.ErrUnavailable)
	}
	gs, err := s.deps.Stats.GeneralStats(ctx)
	if err != nil {
		return model.GeneralStats{}, fmt.Errorf("general statistics: %w", err)
	}
	if gs.Daily == nil {
		gs.Daily = []model.DailyCount{}
	}
	return gs, nil
}

func isAbsent(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
