package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/noface-00/prims/internal/model"
)

const (
	similarCount    = 5
	untitledListing = "Sin nombre"
)

// SimilarItem is a comparable listing reduced to what the report shows.
type SimilarItem struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
	URL   string  `json:"url,omitempty"`
}

type Similar struct {
	Query    string        `json:"query"`
	Cheapest []SimilarItem `json:"cheapest"`
	Priciest []SimilarItem `json:"priciest"`
}

// SimilarListings searches the marketplace for name and returns the five
// cheapest and five most expensive listings. Listings without a usable
// price are skipped.
func (s *Service) SimilarListings(ctx context.Context, name string) (*Similar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &model.ValidationError{Field: "name", Message: "must not be empty"}
	}

	listings, err := s.deps.Market.ComparableListings(ctx, name, s.cfg.MarketLimit)
	if err != nil {
		return nil, fmt.Errorf("similar listings for %q: %w", name, err)
	}

	items := make([]SimilarItem, 0, len(listings))
	for _, l := range listings {
		price := SanitizePrice(l.Price)
		if price == 0 {
			continue
		}
		title := strings.TrimSpace(l.Title)
		if title == "" {
			title = untitledListing
		}
		items = append(items, SimilarItem{Title: title, Price: price, URL: l.URL})
	}

	priciest := append([]SimilarItem(nil), items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	sort.SliceStable(priciest, func(i, j int) bool { return priciest[i].Price > priciest[j].Price })

	return &Similar{
		Query:    name,
		Cheapest: topN(items, similarCount),
		Priciest: topN(priciest, similarCount),
	}, nil
}

func topN(items []SimilarItem, n int) []SimilarItem {
	if len(items) > n {
		items = items[:n]
	}
	return append([]SimilarItem{}, items...)
}
