package analysis

import (
	"context"
	"time"

	"github.com/noface-00/prims/internal/model"
)

// MarketDataSource supplies comparable listings and live prices.
type MarketDataSource interface {
	ComparableListings(ctx context.Context, query string, limit int) ([]model.Listing, error)
	CurrentPrice(ctx context.Context, productID string) (float64, error)
}

type ProductCatalog interface {
	Product(ctx context.Context, productID string) (*model.Product, error)
}

type SellerDirectory interface {
	Lookup(ctx context.Context, sellerRef string) (*model.Seller, error)
}

// AccountAgeEstimator returns a descriptor such as "3 años 4 meses".
type AccountAgeEstimator interface {
	Estimate(ctx context.Context, username string) (string, error)
}

type CouponDirectory interface {
	ForProduct(ctx context.Context, productID string) (*model.Coupon, error)
}

type ImageDirectory interface {
	MainImage(ctx context.Context, productID string) (string, error)
}

type HistoryStore interface {
	ListAll(ctx context.Context, productID string) ([]model.PricePoint, error)
	// AppendIfChanged records price unless it equals the latest recorded
	// price. The comparison and the write are atomic per product.
	AppendIfChanged(ctx context.Context, productID string, price float64, at time.Time) (bool, error)
}

// AnalysisStore keeps one current snapshot per product.
type AnalysisStore interface {
	FindCurrent(ctx context.Context, productID string) (*model.Snapshot, error)
	Upsert(ctx context.Context, snap *model.Snapshot) error
}

type StatsSource interface {
	GeneralStats(ctx context.Context) (model.GeneralStats, error)
}
