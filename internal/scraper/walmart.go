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
	walmartRetailer   = "Walmart"
	walmartBaseURL    = "https://www.walmart.com"
	walmartMaxResults = 10
	walmartMaxSpecs   = 3
)

// walmartAdapter Walmart 搜索页适配器。
type walmartAdapter struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func newWalmartAdapter(fetcher *Fetcher, logger *slog.Logger) *walmartAdapter {
	return &walmartAdapter{fetcher: fetcher, logger: logger.With("retailer", walmartRetailer)}
}

func (a *walmartAdapter) Retailer() string { return walmartRetailer }

func (a *walmartAdapter) Search(ctx context.Context, query string) ([]Item, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s", walmartBaseURL, url.QueryEscape(strings.TrimSpace(query)))
	doc, err := a.fetcher.Document(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	return parseWalmartSearch(doc, a.logger), nil
}

func parseWalmartSearch(doc *goquery.Document, logger *slog.Logger) []Item {
	var items []Item
	doc.Find("[data-item-id], .search-result-gridview-item").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := cleanText(card.Find(".product-title-link, .product-title").First().Text())
		if name == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(walmartRetailer, "missing_name").Inc()
			return true
		}
		price, ok := ParsePrice(card.Find(".price-main, .price-characteristic").First().Text())
		if !ok {
			metrics.ItemsDroppedTotal.WithLabelValues(walmartRetailer, "bad_price").Inc()
			return true
		}
		href, _ := card.Find(".product-title-link, .product-title a").First().Attr("href")
		link := resolveURL(walmartBaseURL, href)
		if link == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(walmartRetailer, "missing_link").Inc()
			return true
		}
		image, _ := card.Find(".product-image img, .product-image-photo").First().Attr("src")

		var specs model.SpecList
		card.Find(".product-attribute").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := cleanText(s.Text()); text != "" {
				specs = append(specs, model.Spec{Key: "Specification", Value: text})
			}
			return len(specs) < walmartMaxSpecs
		})

		items = append(items, Item{
			Product: model.Product{
				ID:       model.ProductID(name, walmartRetailer),
				Name:     name,
				Retailer: walmartRetailer,
				Price:    price,
				URL:      link,
				ImageURL: image,
				Specs:    specs,
			},
		})
		return len(items) < walmartMaxResults
	})
	logger.Debug("search page parsed", "items", len(items))
	return items
}
