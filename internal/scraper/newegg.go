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
	neweggRetailer   = "Newegg"
	neweggBaseURL    = "https://www.newegg.com"
	neweggMaxResults = 10
	neweggMaxSpecs   = 3
)

// neweggAdapter Newegg 搜索页适配器。
type neweggAdapter struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func newNeweggAdapter(fetcher *Fetcher, logger *slog.Logger) *neweggAdapter {
	return &neweggAdapter{fetcher: fetcher, logger: logger.With("retailer", neweggRetailer)}
}

func (a *neweggAdapter) Retailer() string { return neweggRetailer }

func (a *neweggAdapter) Search(ctx context.Context, query string) ([]Item, error) {
	searchURL := fmt.Sprintf("%s/p/pl?d=%s", neweggBaseURL, url.QueryEscape(strings.TrimSpace(query)))
	doc, err := a.fetcher.Document(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	return parseNeweggSearch(doc, a.logger), nil
}

func parseNeweggSearch(doc *goquery.Document, logger *slog.Logger) []Item {
	var items []Item
	doc.Find(".item-cell, .item-container").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := cleanText(card.Find(".item-title").First().Text())
		if name == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(neweggRetailer, "missing_name").Inc()
			return true
		}
		price, ok := ParsePrice(card.Find(".price-current").First().Text())
		if !ok {
			metrics.ItemsDroppedTotal.WithLabelValues(neweggRetailer, "bad_price").Inc()
			return true
		}
		href, _ := card.Find(".item-title, .item-img a").First().Attr("href")
		link := resolveURL(neweggBaseURL, href)
		if link == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(neweggRetailer, "missing_link").Inc()
			return true
		}
		image, _ := card.Find(".item-img img").First().Attr("src")

		var specs model.SpecList
		card.Find(".item-features li, .item-description").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := cleanText(s.Text()); text != "" {
				specs = append(specs, model.Spec{Key: "Feature", Value: text})
			}
			return len(specs) < neweggMaxSpecs
		})

		items = append(items, Item{
			Product: model.Product{
				ID:       model.ProductID(name, neweggRetailer),
				Name:     name,
				Retailer: neweggRetailer,
				Price:    price,
				URL:      link,
				ImageURL: image,
				Specs:    specs,
			},
		})
		return len(items) < neweggMaxResults
	})
	logger.Debug("search page parsed", "items", len(items))
	return items
}
