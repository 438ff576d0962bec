package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noface-00/prims/internal/analysis"
	"github.com/noface-00/prims/internal/api"
	"github.com/noface-00/prims/internal/cache"
	"github.com/noface-00/prims/internal/config"
	"github.com/noface-00/prims/internal/ebay"
	"github.com/noface-00/prims/internal/metrics"
	"github.com/noface-00/prims/internal/model"
	"github.com/noface-00/prims/internal/scheduler"
	"github.com/noface-00/prims/internal/seller"
	"github.com/noface-00/prims/internal/store"
	"github.com/noface-00/prims/internal/volatility"
)

var _ analysis.Recorder = (*metrics.Registry)(nil)

// catalogStore is what the app needs from the local product store.
type catalogStore interface {
	analysis.ProductCatalog
	analysis.SellerDirectory
	analysis.ImageDirectory
	SaveProduct(ctx context.Context, p *model.Product) error
	SaveSeller(ctx context.Context, s *model.Seller) error
	SaveImage(ctx context.Context, productID, url string, main bool) error
}

// App is the wired application shared by every command.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Service  *analysis.Service
	Metrics  *metrics.Registry
	Catalog  *trackingCatalog
	Recent   api.RecentSource
	Sweepers []scheduler.Sweeper

	closers []func() error
}

// Build wires the service from cfg. Without a DSN everything is kept in
// memory and history goes to the JSON file tracker. Without a Redis address
// all caches are in-process.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log, Metrics: metrics.NewRegistry()}

	client := ebay.NewClient(ebay.Config{
		BaseURL:        cfg.Ebay.BaseURL,
		Marketplace:    cfg.Ebay.Marketplace,
		Timeout:        cfg.Ebay.Timeout,
		RequestsPerSec: cfg.Ebay.RequestsPerSec,
	}, tokenSource(cfg), log)
	if !cfg.HasEbayCredentials() {
		log.Warn().Msg("no eBay credentials configured, marketplace fetches will fail")
	}
	remote := ebay.NewCatalog(client, cfg.Cache.TTL)

	deps := analysis.Deps{
		Market:   client,
		Recorder: app.Metrics,
	}

	var local catalogStore
	if cfg.Database.DSN != "" {
		db, err := store.Open(cfg.Database.DSN, store.PoolConfig{
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				app.Close()
				return nil, err
			}
		}
		local = db
		deps.History, deps.Store, deps.Coupons, deps.Stats = db, db, db, db
		app.Recent = db
	} else {
		mem := store.NewMemoryStore()
		local = mem
		deps.Store, deps.Coupons, deps.Stats = mem, mem, mem
		app.Recent = mem
		if cfg.Analysis.HistoryFile != "" {
			tracker := volatility.NewTracker(cfg.Analysis.HistoryFile, 0)
			stats := tracker.GetHistoryStats()
			log.Debug().Int("products", stats["total_products"]).Int("points", stats["total_price_points"]).
				Str("file", cfg.Analysis.HistoryFile).Msg("price history loaded")
			deps.History = tracker
		} else {
			deps.History = mem
		}
	}

	app.Catalog = &trackingCatalog{local: local, remote: remote, log: log}
	deps.Catalog = app.Catalog
	deps.Sellers = app.Catalog
	deps.Images = app.Catalog

	ttl := cfg.Cache.TTL
	observe := cache.WithObserver(app.Metrics.CacheObserver)
	ageCache := app.caches(ctx, cfg, &deps, ttl, observe)

	deps.Ages = seller.NewEstimator(client, seller.NewProfileScraper(cfg.Ebay.ProfileURL), ageCache, log)

	svc, err := analysis.NewService(deps, analysis.Config{
		Workers:     cfg.Analysis.Workers,
		MarketLimit: cfg.Analysis.MarketLimit,
		CacheTTL:    ttl,
		Timeouts: analysis.Timeouts{
			Product: cfg.Analysis.Timeouts.Product,
			Price:   cfg.Analysis.Timeouts.Price,
			Coupon:  cfg.Analysis.Timeouts.Coupon,
			Seller:  cfg.Analysis.Timeouts.Seller,
			History: cfg.Analysis.Timeouts.History,
			Market:  cfg.Analysis.Timeouts.Market,
			Image:   cfg.Analysis.Timeouts.Image,
		},
		DefaultImage: cfg.Analysis.DefaultImage,
	}, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Service = svc
	return app, nil
}

// caches fills the cache dependencies and returns the account age cache.
// Market samples and account ages go to Redis when configured, since they
// are the expensive ones to rebuild.
func (a *App) caches(ctx context.Context, cfg *config.Config, deps *analysis.Deps, ttl time.Duration, observe cache.Option) cache.Cache[string] {
	images := cache.NewTTLCache[string](ttl, cache.WithName("image"), observe)
	analyses := cache.NewTTLCache[model.Snapshot](ttl, cache.WithName("analysis"), observe)
	deps.ImageURLs, deps.Analyses = images, analyses
	a.Sweepers = append(a.Sweepers, images, analyses)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		samples := cache.NewRedisCache[model.MarketSample](rdb, cfg.Redis.Prefix, ttl, cache.WithName("market_price"), observe)
		if err := samples.Ping(ctx); err != nil {
			// misses fall through to the marketplace, so keep going
			a.Log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
		}
		deps.Samples = samples
		return cache.NewRedisCache[string](rdb, cfg.Redis.Prefix, ttl, cache.WithName("seller_age"), observe)
	}

	samples := cache.NewTTLCache[model.MarketSample](ttl, cache.WithName("market_price"), observe)
	ages := cache.NewTTLCache[string](ttl, cache.WithName("seller_age"), observe)
	deps.Samples = samples
	a.Sweepers = append(a.Sweepers, samples, ages)
	return ages
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func tokenSource(cfg *config.Config) ebay.TokenSource {
	switch {
	case cfg.Ebay.ClientID != "" && cfg.Ebay.ClientSecret != "":
		return ebay.NewAppTokenSource(cfg.Ebay.ClientID, cfg.Ebay.ClientSecret, cfg.Ebay.TokenURL)
	case cfg.Ebay.Token != "":
		return ebay.StaticToken(cfg.Ebay.Token)
	default:
		return nil
	}
}

// trackingCatalog reads products, sellers and images from the local store
// and falls back to the marketplace for unknown products, saving what it
// finds so later analyses resolve locally.
type trackingCatalog struct {
	local  catalogStore
	remote *ebay.Catalog
	log    zerolog.Logger
}

func (c *trackingCatalog) Product(ctx context.Context, productID string) (*model.Product, error) {
	p, err := c.local.Product(ctx, productID)
	if err == nil || !errors.Is(err, model.ErrNotFound) {
		return p, err
	}
	return c.Track(ctx, productID)
}

// Track fetches productID from the marketplace and stores the product, its
// seller and main image.
func (c *trackingCatalog) Track(ctx context.Context, productID string) (*model.Product, error) {
	p, err := c.remote.Product(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("tracking %s: %w", productID, err)
	}
	if err := c.local.SaveProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("saving product %s: %w", productID, err)
	}

	if s, err := c.remote.Lookup(ctx, p.SellerRef); err == nil {
		if err := c.local.SaveSeller(ctx, s); err != nil {
			c.log.Warn().Err(err).Str("seller", s.Ref).Msg("saving seller failed")
		}
	}
	if url, err := c.remote.MainImage(ctx, productID); err == nil && url != "" {
		if err := c.local.SaveImage(ctx, productID, url, true); err != nil {
			c.log.Warn().Err(err).Str("product_id", productID).Msg("saving image failed")
		}
	}
	return p, nil
}

func (c *trackingCatalog) Lookup(ctx context.Context, sellerRef string) (*model.Seller, error) {
	s, err := c.local.Lookup(ctx, sellerRef)
	if errors.Is(err, model.ErrNotFound) {
		return c.remote.Lookup(ctx, sellerRef)
	}
	return s, err
}

func (c *trackingCatalog) MainImage(ctx context.Context, productID string) (string, error) {
	url, err := c.local.MainImage(ctx, productID)
	if errors.Is(err, model.ErrNotFound) {
		return c.remote.MainImage(ctx, productID)
	}
	return url, err
}
