package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/oli-a11y/albar-autos-feed/app/feed"
)

const (
	detailLinkSelector = "a[href*='/car-details/']"
	priceSelector      = "span.text-main.font-bold"
	imageMetaSelector  = `meta[property="og:image"]`
	minListedPrice     = 1000
)

var (
	vinPattern     = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)
	mileagePattern = regexp.MustCompile(`(\d{1,3}(?:,\d{3})*|\d+)\s*[Mm]iles`)
	yearPattern    = regexp.MustCompile(`\b(20\d{2}|19\d{2})\b`)
)

// HTMLSource scrapes a dealer listing page and each linked detail page.
type HTMLSource struct {
	listingURL string
	fetcher    *Fetcher
}

func NewHTMLSource(listingURL string, fetcher *Fetcher) *HTMLSource {
	return &HTMLSource{listingURL: listingURL, fetcher: fetcher}
}

func (s *HTMLSource) Records(ctx context.Context) ([]feed.Record, error) {
	data, err := s.fetcher.Fetch(ctx, s.listingURL)
	if err != nil {
		return nil, unavailable(err)
	}

	base, err := url.Parse(s.listingURL)
	if err != nil {
		return nil, unavailable(fmt.Errorf("invalid listing URL: %w", err))
	}

	links, err := ExtractDetailLinks(data, base)
	if err != nil {
		return nil, unavailable(err)
	}

	slog.Info("Vehicle links collected", "url", s.listingURL, "count", len(links))

	records := make([]feed.Record, 0, len(links))
	for i, link := range links {
		select {
		case <-ctx.Done():
			return nil, unavailable(ctx.Err())
		default:
		}

		page, err := s.fetcher.Fetch(ctx, link)
		if err != nil {
			slog.Warn("Failed to fetch vehicle page", "url", link, "error", err)
			continue
		}

		pageURL, _ := url.Parse(link)
		record, err := ParseDetailPage(page, pageURL)
		if err != nil {
			slog.Warn("Failed to parse vehicle page", "url", link, "error", err)
			continue
		}
		if record == nil {
			slog.Debug("Vehicle page skipped, no VIN", "index", i, "url", link)
			continue
		}

		records = append(records, record)
	}

	slog.Info("Source loaded", "type", TypeHTML, "location", s.listingURL, "records", len(records))

	return records, nil
}

// ExtractDetailLinks returns absolute detail page URLs in document order
// with query strings dropped and duplicates removed.
func ExtractDetailLinks(data []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find(detailLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href, _, _ = strings.Cut(strings.TrimSpace(href), "?")

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := ref.String()
		if base != nil {
			abs = base.ResolveReference(ref).String()
		}

		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	return links, nil
}

// ParseDetailPage extracts a record from a vehicle detail page. A nil
// record means the page has no VIN and should be skipped.
func ParseDetailPage(data []byte, pageURL *url.URL) (feed.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vehicle page: %w", err)
	}

	vin := vinPattern.FindString(string(data))
	if vin == "" {
		return nil, nil
	}

	title := strings.Join(strings.Fields(doc.Find("h1").First().Text()), " ")

	record := feed.Record{
		"vin":   vin,
		"title": title,
	}
	if pageURL != nil {
		record["link"] = pageURL.String()
	}
	if brand, _, _ := strings.Cut(title, " "); brand != "" {
		record["brand"] = brand
	}
	if price := findPrice(doc); price != "" {
		record["price"] = price
	}
	if m := mileagePattern.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		record["mileage"] = strings.ReplaceAll(m[1], ",", "")
	}
	if m := yearPattern.FindStringSubmatch(title); m != nil {
		record["year"] = m[1]
	}
	if photos := collectImages(doc, pageURL); len(photos) > 0 {
		record["photos"] = strings.Join(photos, listSeparator)
	}

	return record, nil
}

// findPrice picks the first cash price, ignoring finance figures.
func findPrice(doc *goquery.Document) string {
	var price string
	doc.Find(priceSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "£") || strings.Contains(text, "/month") || strings.Contains(text, "HP") {
			return true
		}
		cleaned := strings.TrimSpace(strings.NewReplacer("£", "", ",", "").Replace(text))
		n, err := strconv.Atoi(cleaned)
		if err != nil || n <= minListedPrice {
			return true
		}
		price = cleaned
		return false
	})
	return price
}

func collectImages(doc *goquery.Document, pageURL *url.URL) []string {
	var images []string
	seen := make(map[string]struct{})
	doc.Find(imageMetaSelector).Each(func(_ int, meta *goquery.Selection) {
		content := strings.TrimSpace(meta.AttrOr("content", ""))
		if content == "" {
			return
		}
		if pageURL != nil && strings.HasPrefix(content, "/") && !strings.HasPrefix(content, "//") {
			if ref, err := url.Parse(content); err == nil {
				content = pageURL.ResolveReference(ref).String()
			}
		}
		if _, dup := seen[content]; dup {
			return
		}
		seen[content] = struct{}{}
		images = append(images, content)
	})
	return images
}
