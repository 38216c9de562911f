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
	bestBuyRetailer   = "Best Buy"
	bestBuyBaseURL    = "https://www.bestbuy.com"
	bestBuyMaxResults = 10
	bestBuyMaxSpecs   = 3
)

// bestBuyAdapter Best Buy 搜索页适配器。
type bestBuyAdapter struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func newBestBuyAdapter(fetcher *Fetcher, logger *slog.Logger) *bestBuyAdapter {
	return &bestBuyAdapter{fetcher: fetcher, logger: logger.With("retailer", bestBuyRetailer)}
}

func (a *bestBuyAdapter) Retailer() string { return bestBuyRetailer }

func (a *bestBuyAdapter) Search(ctx context.Context, query string) ([]Item, error) {
	searchURL := fmt.Sprintf("%s/site/searchpage.jsp?st=%s", bestBuyBaseURL, url.QueryEscape(strings.TrimSpace(query)))
	doc, err := a.fetcher.Document(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	return parseBestBuySearch(doc, a.logger), nil
}

func parseBestBuySearch(doc *goquery.Document, logger *slog.Logger) []Item {
	var items []Item
	doc.Find(".sku-item, .shop-sku-list-item").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := cleanText(card.Find(".sku-title h4 a, .sku-title a").First().Text())
		if name == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(bestBuyRetailer, "missing_name").Inc()
			return true
		}
		price, ok := ParsePrice(card.Find(".priceView-customer-price span").First().Text())
		if !ok {
			metrics.ItemsDroppedTotal.WithLabelValues(bestBuyRetailer, "bad_price").Inc()
			return true
		}
		href, _ := card.Find(".sku-title h4 a, .sku-title a").First().Attr("href")
		link := resolveURL(bestBuyBaseURL, href)
		if link == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(bestBuyRetailer, "missing_link").Inc()
			return true
		}
		image, _ := card.Find(".sku-image img, .product-image img").First().Attr("src")

		var specs model.SpecList
		card.Find(".sku-attribute-text").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := cleanText(s.Text()); text != "" {
				specs = append(specs, model.Spec{Key: "Specification", Value: text})
			}
			return len(specs) < bestBuyMaxSpecs
		})

		items = append(items, Item{
			Product: model.Product{
				ID:       model.ProductID(name, bestBuyRetailer),
				Name:     name,
				Retailer: bestBuyRetailer,
				Price:    price,
				URL:      link,
				ImageURL: image,
				Specs:    specs,
			},
		})
		return len(items) < bestBuyMaxResults
	})
	logger.Debug("search page parsed", "items", len(items))
	return items
}
