package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/noface-00/prims/internal/model"
)

const (
	DefaultBaseURL     = "https://api.ebay.com"
	DefaultMarketplace = "EBAY_US"

	searchPath = "/buy/browse/v1/item_summary/search"
	itemPath   = "/buy/browse/v1/item/"

	// MaxSearchLimit is the Browse API page size ceiling.
	MaxSearchLimit = 200
)

// Config configures the Browse API client.
type Config struct {
	BaseURL        string
	Marketplace    string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// Client talks to the eBay Browse API.
type Client struct {
	baseURL     string
	marketplace string
	tokens      TokenSource
	http        *resty.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

type httpOutcome struct {
	status int
	body   []byte
}

func NewClient(cfg Config, tokens TokenSource, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Marketplace == "" {
		cfg.Marketplace = DefaultMarketplace
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	httpClient := resty.New()
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("Accept", "application/json")
	httpClient.SetHeader("Accept-Encoding", "gzip, br")

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		marketplace: cfg.Marketplace,
		tokens:      tokens,
		http:        httpClient,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		log:         log.With().Str("component", "ebay").Logger(),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ebay-browse",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			return counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
		},
	})

	return c
}

func (c *Client) Available() bool {
	return c.tokens != nil && c.breaker.State() != gobreaker.StateOpen
}

// SearchListings returns comparable listings for query. Items with a
// missing or malformed price are skipped.
func (c *Client) SearchListings(ctx context.Context, query string, limit int) ([]model.Listing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query: %w", model.ErrInvalidInput)
	}
	if limit <= 0 || limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", "0")

	var resp searchResponse
	if err := c.get(ctx, searchPath, params, &resp); err != nil {
		return nil, err
	}

	listings := make([]model.Listing, 0, len(resp.ItemSummaries))
	skipped := 0
	for _, s := range resp.ItemSummaries {
		l, ok := s.toListing()
		if !ok {
			skipped++
			continue
		}
		listings = append(listings, l)
	}
	if skipped > 0 {
		c.log.Debug().Str("query", query).Int("skipped", skipped).Msg("skipped listings without usable price")
	}

	return listings, nil
}

// ComparableListings is SearchListings under the market data source name.
func (c *Client) ComparableListings(ctx context.Context, query string, limit int) ([]model.Listing, error) {
	return c.SearchListings(ctx, query, limit)
}

// Item fetches the item detail for itemID.
func (c *Client) Item(ctx context.Context, itemID string) (*Item, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("empty item id: %w", model.ErrInvalidInput)
	}

	var item Item
	if err := c.get(ctx, itemPath+url.PathEscape(itemID), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CurrentPrice returns the item's live price.
func (c *Client) CurrentPrice(ctx context.Context, itemID string) (float64, error) {
	item, err := c.Item(ctx, itemID)
	if err != nil {
		return 0, err
	}
	price := item.PriceValue()
	if price <= 0 {
		return 0, fmt.Errorf("item %s has no price: %w", itemID, model.ErrNotFound)
	}
	return price, nil
}

// SellerListings searches listings by seller username.
func (c *Client) SellerListings(ctx context.Context, username string, limit int) ([]model.Listing, error) {
	return c.SearchListings(ctx, username, limit)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.tokens == nil {
		return fmt.Errorf("eBay credentials not configured: %w", model.ErrUnavailable)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("eBay token: %w", err)
	}

	// 4xx responses are returned as outcomes so they do not count against
	// the breaker.
	res, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("X-EBAY-C-MARKETPLACE-ID", c.marketplace).
			SetDoNotParseResponse(true)
		if params != nil {
			req.SetQueryParamsFromValues(params)
		}

		resp, err := req.Get(c.baseURL + path)
		if err != nil {
			return nil, fmt.Errorf("eBay request failed: %w", err)
		}
		raw := resp.RawBody()
		defer raw.Close()

		reader, err := DecodeBody(resp.Header().Get("Content-Encoding"), raw)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("eBay API returned status %d", resp.StatusCode())
		}
		return httpOutcome{status: resp.StatusCode(), body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("eBay circuit open: %w", model.ErrUnavailable)
		}
		return err
	}

	outcome := res.(httpOutcome)
	switch {
	case outcome.status == http.StatusOK:
		if err := json.Unmarshal(outcome.body, out); err != nil {
			return fmt.Errorf("parse eBay response: %w", err)
		}
		return nil
	case outcome.status == http.StatusNotFound:
		return fmt.Errorf("eBay %s: %w", path, model.ErrNotFound)
	case outcome.status == http.StatusTooManyRequests:
		return fmt.Errorf("eBay API rate limit exceeded: %w", model.ErrUnavailable)
	default:
		return fmt.Errorf("eBay API error: %s", apiErrorMessage(outcome))
	}
}

func apiErrorMessage(o httpOutcome) string {
	var er errorResponse
	if err := json.Unmarshal(o.body, &er); err == nil && len(er.Errors) > 0 {
		return er.Errors[0].Message
	}
	return fmt.Sprintf("status %d", o.status)
}
