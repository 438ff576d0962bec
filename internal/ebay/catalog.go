package ebay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noface-00/prims/internal/cache"
	"github.com/noface-00/prims/internal/model"
)

// Catalog serves product, seller and image lookups straight from the
// Browse API when no database is configured.
type Catalog struct {
	provider Provider
	items    *cache.TTLCache[*Item]

	mu      sync.RWMutex
	sellers map[string]*model.Seller
}

func NewCatalog(provider Provider, ttl time.Duration) *Catalog {
	return &Catalog{
		provider: provider,
		items:    cache.NewTTLCache[*Item](ttl, cache.WithName("ebay_items")),
		sellers:  make(map[string]*model.Seller),
	}
}

func (c *Catalog) item(ctx context.Context, itemID string) (*Item, error) {
	if it, ok := c.items.Get(ctx, itemID); ok {
		return it, nil
	}

	it, err := c.provider.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	c.items.Put(ctx, itemID, it)

	if s := it.SellerInfo(); s != nil {
		c.mu.Lock()
		c.sellers[s.Ref] = s
		c.mu.Unlock()
	}
	return it, nil
}

func (c *Catalog) Product(ctx context.Context, productID string) (*model.Product, error) {
	it, err := c.item(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &model.Product{
		ItemID:    it.ItemID,
		Name:      it.Title,
		SellerRef: it.Seller.Username,
		URL:       it.ItemWebURL,
	}, nil
}

// Lookup returns a seller seen on a previously fetched item.
func (c *Catalog) Lookup(_ context.Context, sellerRef string) (*model.Seller, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sellers[sellerRef]
	if !ok {
		return nil, fmt.Errorf("seller %s: %w", sellerRef, model.ErrNotFound)
	}
	seller := *s
	return &seller, nil
}

func (c *Catalog) MainImage(ctx context.Context, productID string) (string, error) {
	it, err := c.item(ctx, productID)
	if err != nil {
		return "", err
	}
	return it.Image.ImageURL, nil
}
