package ebay

import (
	"context"

	"github.com/noface-00/prims/internal/model"
)

// Provider defines the marketplace operations the analysis needs.
type Provider interface {
	Available() bool
	SearchListings(ctx context.Context, query string, limit int) ([]model.Listing, error)
	CurrentPrice(ctx context.Context, itemID string) (float64, error)
	Item(ctx context.Context, itemID string) (*Item, error)
}

// Ensure Client implements Provider
var _ Provider = (*Client)(nil)
