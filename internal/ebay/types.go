package ebay

import (
	"strconv"
	"time"

	"github.com/noface-00/prims/internal/model"
)

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type sellerSummary struct {
	Username           string `json:"username"`
	FeedbackPercentage string `json:"feedbackPercentage"`
	FeedbackScore      int    `json:"feedbackScore"`
}

type imageRef struct {
	ImageURL string `json:"imageUrl"`
}

type itemSummary struct {
	ItemID           string        `json:"itemId"`
	Title            string        `json:"title"`
	Price            *amount       `json:"price"`
	Seller           sellerSummary `json:"seller"`
	ItemWebURL       string        `json:"itemWebUrl"`
	ItemCreationDate string        `json:"itemCreationDate"`
	Image            imageRef      `json:"image"`
}

type searchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

// Item is the subset of a Browse item detail the analysis uses.
type Item struct {
	ItemID     string        `json:"itemId"`
	Title      string        `json:"title"`
	Price      *amount       `json:"price"`
	Seller     sellerSummary `json:"seller"`
	ItemWebURL string        `json:"itemWebUrl"`
	Image      imageRef      `json:"image"`
}

type errorResponse struct {
	Errors []struct {
		ErrorID int    `json:"errorId"`
		Message string `json:"message"`
	} `json:"errors"`
}

// PriceValue parses the item's price, returning 0 when absent or malformed.
func (i *Item) PriceValue() float64 {
	if i == nil || i.Price == nil {
		return 0
	}
	v, err := strconv.ParseFloat(i.Price.Value, 64)
	if err != nil {
		return 0
	}
	return v
}

// SellerInfo converts the embedded seller summary.
func (i *Item) SellerInfo() *model.Seller {
	if i == nil || i.Seller.Username == "" {
		return nil
	}
	pct, _ := strconv.ParseFloat(i.Seller.FeedbackPercentage, 64)
	return &model.Seller{
		Ref:             i.Seller.Username,
		Username:        i.Seller.Username,
		FeedbackPercent: pct,
		FeedbackScore:   i.Seller.FeedbackScore,
	}
}

// toListing converts a summary, reporting false for items without a usable
// positive price.
func (s itemSummary) toListing() (model.Listing, bool) {
	if s.Price == nil {
		return model.Listing{}, false
	}
	price, err := strconv.ParseFloat(s.Price.Value, 64)
	if err != nil || price <= 0 {
		return model.Listing{}, false
	}

	l := model.Listing{
		ItemID:   s.ItemID,
		Title:    s.Title,
		Price:    price,
		Currency: s.Price.Currency,
		Seller:   s.Seller.Username,
		URL:      s.ItemWebURL,
	}
	if t, err := time.Parse(time.RFC3339, s.ItemCreationDate); err == nil {
		l.CreatedAt = t
	}
	return l, true
}
