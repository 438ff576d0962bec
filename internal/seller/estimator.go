package seller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noface-00/prims/internal/cache"
	"github.com/noface-00/prims/internal/model"
)

// NoRecentListings is reported for sellers with nothing listed. It does not
// parse as an age, so it scores zero.
const NoRecentListings = "Sin publicaciones recientes"

const sellerListingLimit = 50

// ListingSource searches a seller's active listings.
type ListingSource interface {
	SellerListings(ctx context.Context, username string, limit int) ([]model.Listing, error)
}

// MemberSinceSource reports when a seller registered.
type MemberSinceSource interface {
	MemberSince(ctx context.Context, username string) (time.Time, error)
}

// Estimator derives an account age descriptor such as "3 años 4 meses"
// from the oldest listing a seller still has, falling back to the profile
// page when the search finds nothing.
type Estimator struct {
	listings ListingSource
	profile  MemberSinceSource
	cache    cache.Cache[string]
	now      func() time.Time
	log      zerolog.Logger
}

func NewEstimator(listings ListingSource, profile MemberSinceSource, c cache.Cache[string], log zerolog.Logger) *Estimator {
	return &Estimator{
		listings: listings,
		profile:  profile,
		cache:    c,
		now:      time.Now,
		log:      log.With().Str("component", "seller_age").Logger(),
	}
}

func (e *Estimator) Estimate(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", &model.ValidationError{Field: "username", Message: "must not be empty"}
	}

	key := cache.SellerAgeKey(username)
	if e.cache != nil {
		if v, ok := e.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	start, err := e.oldestListing(ctx, username)
	if err != nil {
		return "", err
	}

	if start.IsZero() && e.profile != nil {
		since, perr := e.profile.MemberSince(ctx, username)
		if perr != nil {
			e.log.Debug().Err(perr).Str("seller", username).Msg("profile fallback failed")
		} else {
			start = since
		}
	}

	descriptor := NoRecentListings
	if !start.IsZero() {
		descriptor = Describe(start, e.now())
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, key, descriptor); err != nil {
			e.log.Warn().Err(err).Str("seller", username).Msg("caching account age failed")
		}
	}
	return descriptor, nil
}

// oldestListing returns the earliest creation date among the seller's
// listings, zero when none carries a date.
func (e *Estimator) oldestListing(ctx context.Context, username string) (time.Time, error) {
	if e.listings == nil {
		return time.Time{}, nil
	}

	listings, err := e.listings.SellerListings(ctx, username, sellerListingLimit)
	if err != nil {
		return time.Time{}, fmt.Errorf("seller listings for %s: %w", username, err)
	}

	// the search is free text, prefer listings that really belong to the seller
	own := listings[:0:0]
	for _, l := range listings {
		if strings.EqualFold(l.Seller, username) {
			own = append(own, l)
		}
	}
	if len(own) > 0 {
		listings = own
	}

	var oldest time.Time
	for _, l := range listings {
		if l.CreatedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || l.CreatedAt.Before(oldest) {
			oldest = l.CreatedAt
		}
	}
	return oldest, nil
}

// Describe formats the whole years and months between start and now.
// Years are omitted when zero.
func Describe(start, now time.Time) string {
	months := monthsBetween(start, now)
	years := months / 12
	months %= 12

	if years > 0 {
		return fmt.Sprintf("%d años %d meses", years, months)
	}
	return fmt.Sprintf("%d meses", months)
}

func monthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
