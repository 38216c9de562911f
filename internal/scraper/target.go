package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricehawk/internal/model"
	"pricehawk/internal/pkg/metrics"
)

const (
	targetRetailer   = "Target"
	targetBaseURL    = "https://www.target.com"
	targetMaxResults = 10
	targetMaxSpecs   = 2
)

// targetAdapter Target 搜索页适配器。
type targetAdapter struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func newTargetAdapter(fetcher *Fetcher, logger *slog.Logger) *targetAdapter {
	return &targetAdapter{fetcher: fetcher, logger: logger.With("retailer", targetRetailer)}
}

func (a *targetAdapter) Retailer() string { return targetRetailer }

func (a *targetAdapter) Search(ctx context.Context, query string) ([]Item, error) {
	searchURL := fmt.Sprintf("%s/s?searchTerm=%s", targetBaseURL, url.QueryEscape(strings.TrimSpace(query)))
	doc, err := a.fetcher.Document(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	return parseTargetSearch(doc, a.logger), nil
}

func parseTargetSearch(doc *goquery.Document, logger *slog.Logger) []Item {
	var items []Item
	doc.Find(`[data-testid="product-card"], .ProductCard`).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := cleanText(card.Find(`[data-testid="product-title"], .ProductCard__Title`).First().Text())
		if name == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(targetRetailer, "missing_name").Inc()
			return true
		}
		price, ok := ParsePrice(card.Find(`[data-testid="product-price"], .ProductCard__Price`).First().Text())
		if !ok {
			metrics.ItemsDroppedTotal.WithLabelValues(targetRetailer, "bad_price").Inc()
			return true
		}
		href, _ := card.Find(`a[href*="/p/"]`).First().Attr("href")
		link := resolveURL(targetBaseURL, href)
		if link == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(targetRetailer, "missing_link").Inc()
			return true
		}
		image, _ := card.Find(`img[data-testid="product-image"]`).First().Attr("src")

		var specs model.SpecList
		card.Find(`[data-testid="product-description"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := cleanText(s.Text()); text != "" {
				specs = append(specs, model.Spec{Key: "Description", Value: text})
			}
			return len(specs) < targetMaxSpecs
		})

		items = append(items, Item{
			Product: model.Product{
				ID:       model.ProductID(name, targetRetailer),
				Name:     name,
				Retailer: targetRetailer,
				Price:    price,
				URL:      link,
				ImageURL: image,
				Specs:    specs,
			},
		})
		return len(items) < targetMaxResults
	})
	logger.Debug("search page parsed", "items", len(items))
	return items
}
