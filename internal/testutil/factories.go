package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/noface-00/prims/internal/model"
)

// TestDataFactory generates marketplace test data from a seeded source, so
// a failing test can be replayed with the same seed.
type TestDataFactory struct {
	rand *rand.Rand
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

var productNames = []string{
	"Nintendo Switch OLED",
	"PlayStation 5 Slim",
	"Xbox Series X 1TB",
	"Steam Deck 512GB",
	"Meta Quest 3",
}

func (f *TestDataFactory) ProductName() string {
	return productNames[f.rand.Intn(len(productNames))]
}

// Product returns a product sold by sellerRef.
func (f *TestDataFactory) Product(sellerRef string) *model.Product {
	id := f.rand.Int63n(1_000_000_000_000)
	return &model.Product{
		ItemID:    fmt.Sprintf("v1|%d|0", id),
		Name:      f.ProductName(),
		SellerRef: sellerRef,
		URL:       fmt.Sprintf("https://www.ebay.test/itm/%d", id),
	}
}

// Seller returns a seller with feedback between 90 and 100 percent.
func (f *TestDataFactory) Seller() *model.Seller {
	n := f.rand.Intn(100000)
	return &model.Seller{
		Ref:             fmt.Sprintf("seller-%d", n),
		Username:        fmt.Sprintf("store_%d", n),
		FeedbackPercent: 90 + float64(f.rand.Intn(101))/10,
		FeedbackScore:   f.rand.Intn(20000),
	}
}

// Listings returns n listings priced uniformly within center±spread.
func (f *TestDataFactory) Listings(n int, center, spread float64) []model.Listing {
	listings := make([]model.Listing, n)
	created := time.Now().AddDate(-1, 0, 0)
	for i := range listings {
		price := center + (f.rand.Float64()*2-1)*spread
		listings[i] = model.Listing{
			ItemID:    fmt.Sprintf("v1|%d|0", f.rand.Int63n(1_000_000_000_000)),
			Title:     fmt.Sprintf("%s #%d", f.ProductName(), i),
			Price:     float64(int(price*100)) / 100,
			Currency:  "USD",
			Seller:    fmt.Sprintf("store_%d", f.rand.Intn(50)),
			CreatedAt: created.Add(time.Duration(f.rand.Intn(365*24)) * time.Hour),
		}
	}
	return listings
}

// Prices extracts the listing prices.
func Prices(listings []model.Listing) []float64 {
	prices := make([]float64, len(listings))
	for i, l := range listings {
		prices[i] = l.Price
	}
	return prices
}

// History returns n daily price points ending at end, starting at start and
// moving by step each day.
func (f *TestDataFactory) History(n int, start, step float64, end time.Time) []model.PricePoint {
	points := make([]model.PricePoint, n)
	for i := range points {
		points[i] = model.PricePoint{
			Price:     start + step*float64(i),
			Currency:  "USD",
			Timestamp: end.AddDate(0, 0, i-n+1),
		}
	}
	return points
}
