package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/noface-00/prims/internal/cache"
	"github.com/noface-00/prims/internal/concurrent"
	"github.com/noface-00/prims/internal/model"
)

type sellerResult struct {
	seller *model.Seller
	age    string
	ageErr error
}

// fetched is what the fetch tasks returned, with defaults for the ones
// that failed.
type fetched struct {
	price     float64
	seller    *model.Seller
	age       string
	coupon    *model.Coupon
	history   []model.PricePoint
	historyOK bool
	sample    model.MarketSample
	image     string

	failures []string
	errs     map[string]error
}

func (s *Service) tasks(product *model.Product) []concurrent.Task {
	t := s.cfg.Timeouts
	id := product.ItemID

	tasks := []concurrent.Task{
		{Name: FetchPrice, Timeout: t.Price, Fn: func(ctx context.Context) (interface{}, error) {
			return s.deps.Market.CurrentPrice(ctx, id)
		}},
		{Name: FetchHistory, Timeout: t.History, Fn: func(ctx context.Context) (interface{}, error) {
			return s.deps.History.ListAll(ctx, id)
		}},
		{Name: FetchMarket, Timeout: t.Market, Fn: func(ctx context.Context) (interface{}, error) {
			return s.marketSample(ctx, product.Name)
		}},
	}

	if s.deps.Sellers != nil && product.SellerRef != "" {
		ref := product.SellerRef
		tasks = append(tasks, concurrent.Task{Name: FetchSeller, Timeout: t.Seller, Fn: func(ctx context.Context) (interface{}, error) {
			return s.sellerWithAge(ctx, ref)
		}})
	}
	if s.deps.Coupons != nil {
		tasks = append(tasks, concurrent.Task{Name: FetchCoupon, Timeout: t.Coupon, Fn: func(ctx context.Context) (interface{}, error) {
			c, err := s.deps.Coupons.ForProduct(ctx, id)
			if isAbsent(err) {
				return (*model.Coupon)(nil), nil
			}
			return c, err
		}})
	}
	if s.deps.Images != nil {
		tasks = append(tasks, concurrent.Task{Name: FetchImage, Timeout: t.Image, Fn: func(ctx context.Context) (interface{}, error) {
			return s.mainImage(ctx, id)
		}})
	}
	return tasks
}

// marketSample returns comparable prices for name, from the cache when a
// fresh sample exists. Empty samples are not cached.
func (s *Service) marketSample(ctx context.Context, name string) (model.MarketSample, error) {
	key := cache.MarketPriceKey(name)
	if sample, ok := s.deps.Samples.Get(ctx, key); ok {
		return sample, nil
	}

	query := BuildMarketQuery(name)
	if query == "" {
		return model.MarketSample{}, fmt.Errorf("no searchable words in %q: %w", name, model.ErrInvalidInput)
	}

	listings, err := s.deps.Market.ComparableListings(ctx, query, s.cfg.MarketLimit)
	if err != nil {
		return model.MarketSample{}, err
	}

	sample := model.MarketSample{
		Query:     query,
		Prices:    samplePrices(listings),
		FetchedAt: s.now(),
	}
	if len(sample.Prices) > 0 {
		if err := s.deps.Samples.Put(ctx, key, sample); err != nil {
			s.log.Debug().Err(err).Str("key", key).Msg("caching market sample failed")
		}
	}
	return sample, nil
}

func (s *Service) sellerWithAge(ctx context.Context, ref string) (sellerResult, error) {
	seller, err := s.deps.Sellers.Lookup(ctx, ref)
	if err != nil {
		return sellerResult{}, err
	}

	res := sellerResult{seller: seller}
	if s.deps.Ages != nil && seller.Username != "" {
		res.age, res.ageErr = s.deps.Ages.Estimate(ctx, seller.Username)
	}
	return res, nil
}

func (s *Service) mainImage(ctx context.Context, productID string) (string, error) {
	key := cache.ImageKey(productID)
	if url, ok := s.deps.ImageURLs.Get(ctx, key); ok {
		return url, nil
	}

	url, err := s.deps.Images.MainImage(ctx, productID)
	if isAbsent(err) || (err == nil && url == "") {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := s.deps.ImageURLs.Put(ctx, key, url); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("caching image failed")
	}
	return url, nil
}

// collect folds pool results into fetched. Any error, including a timeout,
// leaves the field at its zero value and records the fetch as failed.
func collect(results []concurrent.Result) fetched {
	f := fetched{errs: make(map[string]error)}

	fail := func(name string, err error) {
		f.failures = append(f.failures, name)
		f.errs[name] = &model.FetchError{Fetch: name, Err: err}
	}

	for _, r := range results {
		if r.Error != nil {
			fail(r.Name, r.Error)
			continue
		}

		switch r.Name {
		case FetchPrice:
			f.price, _ = r.Data.(float64)
		case FetchHistory:
			points, _ := r.Data.([]model.PricePoint)
			f.history = append([]model.PricePoint(nil), points...)
			sort.SliceStable(f.history, func(i, j int) bool {
				return f.history[i].Timestamp.Before(f.history[j].Timestamp)
			})
			f.historyOK = true
		case FetchMarket:
			f.sample, _ = r.Data.(model.MarketSample)
		case FetchSeller:
			res, _ := r.Data.(sellerResult)
			f.seller = res.seller
			if res.ageErr != nil {
				fail(FetchAccountAge, res.ageErr)
			} else {
				f.age = res.age
			}
		case FetchCoupon:
			f.coupon, _ = r.Data.(*model.Coupon)
		case FetchImage:
			f.image, _ = r.Data.(string)
		}
	}
	return f
}
