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
	amazonRetailer   = "Amazon"
	amazonBaseURL    = "https://www.amazon.com"
	amazonMaxResults = 5
)

// amazonAdapter Amazon 搜索页适配器。
type amazonAdapter struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func newAmazonAdapter(fetcher *Fetcher, logger *slog.Logger) *amazonAdapter {
	return &amazonAdapter{fetcher: fetcher, logger: logger.With("retailer", amazonRetailer)}
}

func (a *amazonAdapter) Retailer() string { return amazonRetailer }

func (a *amazonAdapter) Search(ctx context.Context, query string) ([]Item, error) {
	searchURL := fmt.Sprintf("%s/s?k=%s", amazonBaseURL, url.QueryEscape(strings.TrimSpace(query)))
	doc, err := a.fetcher.Document(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	return parseAmazonSearch(doc, a.logger), nil
}

// parseAmazonSearch 从搜索结果页提取商品。
// 缺名称、价格或链接的卡片整条丢弃，不产出部分商品。
func parseAmazonSearch(doc *goquery.Document, logger *slog.Logger) []Item {
	var items []Item
	doc.Find(`.s-result-item[data-component-type="s-search-result"]`).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := cleanText(card.Find("h2 .a-link-normal").First().Text())
		if name == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(amazonRetailer, "missing_name").Inc()
			return true
		}
		price, ok := ParsePrice(card.Find(".a-price .a-offscreen").First().Text())
		if !ok {
			metrics.ItemsDroppedTotal.WithLabelValues(amazonRetailer, "bad_price").Inc()
			return true
		}
		href, _ := card.Find("h2 .a-link-normal").First().Attr("href")
		link := resolveURL(amazonBaseURL, href)
		if link == "" {
			metrics.ItemsDroppedTotal.WithLabelValues(amazonRetailer, "missing_link").Inc()
			return true
		}
		image, _ := card.Find("img.s-image").First().Attr("src")

		item := Item{
			Product: model.Product{
				ID:       model.ProductID(name, amazonRetailer),
				Name:     name,
				Retailer: amazonRetailer,
				Price:    price,
				URL:      link,
				ImageURL: image,
			},
		}
		// 搜索卡片上的评分和评论数是可选信号，缺了不影响商品本身。
		if rating, ok := ExtractRating(card.Find(".a-icon-alt").First().Text()); ok {
			item.Rating = &rating
		}
		if reviews, ok := ExtractReviewCount(card.Find("span.a-size-base.s-underline-text").First().Text()); ok {
			item.Reviews = &reviews
		}

		items = append(items, item)
		return len(items) < amazonMaxResults
	})
	logger.Debug("search page parsed", "items", len(items))
	return items
}
