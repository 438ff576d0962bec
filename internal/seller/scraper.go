package seller

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/noface-00/prims/internal/ebay"
	"github.com/noface-00/prims/internal/model"
)

const (
	DefaultProfileURL = "https://www.ebay.com/usr/"
	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var memberSinceRe = regexp.MustCompile(`(?i)(member since|joined)\s*:?\s*([A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}|[A-Za-z]{3,9}\.?\s+\d{4})`)

var memberSinceLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"Jan 2006",
	"January 2006",
}

// ProfileScraper reads the "member since" date from a seller's public
// profile page.
type ProfileScraper struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewProfileScraper(baseURL string) *ProfileScraper {
	if baseURL == "" {
		baseURL = DefaultProfileURL
	}
	return &ProfileScraper{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// MemberSince returns the registration date shown on the profile.
func (s *ProfileScraper) MemberSince(ctx context.Context, username string) (time.Time, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return time.Time{}, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+url.PathEscape(username), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return time.Time{}, fmt.Errorf("profile %s: %w", username, model.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("profile returned status %d", resp.StatusCode)
	}

	body, err := ebay.DecodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return time.Time{}, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing profile: %w", err)
	}

	return parseMemberSince(doc)
}

func parseMemberSince(doc *goquery.Document) (time.Time, error) {
	var found time.Time

	doc.Find("span, div, p, li").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		// only leaf-ish nodes, parents repeat their children's text
		if sel.Children().Length() > 2 {
			return true
		}
		m := memberSinceRe.FindStringSubmatch(strings.Join(strings.Fields(sel.Text()), " "))
		if m == nil {
			return true
		}
		if t, ok := parseDate(m[2]); ok {
			found = t
			return false
		}
		return true
	})

	if found.IsZero() {
		return time.Time{}, fmt.Errorf("member since date: %w", model.ErrNotFound)
	}
	return found, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	for _, layout := range memberSinceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
