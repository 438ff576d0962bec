package analysis

import (
	"math"
	"regexp"
	"strings"

	"github.com/noface-00/prims/internal/model"
)

const maxQueryWords = 5

var queryStopwords = []string{
	"nuevo", "usado", "original", "garantía", "envío", "gratis",
	"new", "used", "free", "shipping",
}

var stopwordRe = buildStopwordRe(queryStopwords)

func buildStopwordRe(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	// \b is ASCII only in RE2, so word edges are matched explicitly to
	// keep accented stopwords whole
	return regexp.MustCompile(`(^|[^\p{L}\p{N}_])(` + strings.Join(quoted, "|") + `)([^\p{L}\p{N}_]|$)`)
}

// BuildMarketQuery turns a product name into a marketplace search query:
// lowercased, stopwords removed, at most five words.
func BuildMarketQuery(name string) string {
	q := strings.ToLower(name)
	// matches consume the separator, so run until stable for adjacent stopwords
	for {
		next := stopwordRe.ReplaceAllString(q, "$1$3")
		if next == q {
			break
		}
		q = next
	}

	words := strings.Fields(q)
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	return strings.Join(words, " ")
}

// SanitizePrice returns price, or 0 when it is not a usable market price.
func SanitizePrice(price float64) float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0
	}
	return price
}

// samplePrices extracts usable prices from listings. Malformed prices are
// skipped individually.
func samplePrices(listings []model.Listing) []float64 {
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		if p := SanitizePrice(l.Price); p > 0 {
			prices = append(prices, p)
		}
	}
	return prices
}
