package cache

import "strings"

// BuildKey creates semantic cache keys
func BuildKey(parts ...string) string {
	return strings.Join(parts, ":")
}

func MarketPriceKey(productName string) string {
	return BuildKey("market_price", strings.ToLower(strings.TrimSpace(productName)))
}

func ImageKey(productID string) string {
	return BuildKey("image", productID)
}

func SellerAgeKey(username string) string {
	return BuildKey("seller_age", username)
}

func AnalysisKey(productID string) string {
	return BuildKey("analysis", productID)
}
