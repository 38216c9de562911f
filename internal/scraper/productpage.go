package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"pricehawk/internal/model"
)

// 详情页解析失败的原因。
var (
	ErrNoProductName  = errors.New("product name not found on page")
	ErrNoProductPrice = errors.New("valid product price not found on page")
)

// ProductPageScraper 商品详情页抓取器，供定时刷新已关注商品使用。
// 与搜索页不同，详情页按零售商使用更精确的选择器，其余走通用回退。
type ProductPageScraper struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func NewProductPageScraper(fetcher *Fetcher, logger *slog.Logger) *ProductPageScraper {
	return &ProductPageScraper{fetcher: fetcher, logger: logger}
}

// Scrape 抓取并解析单个商品详情页。
// 找不到名称或正价格时返回错误，商品身份按 (name, retailer) 重新计算。
func (p *ProductPageScraper) Scrape(ctx context.Context, pageURL, retailer string) (*model.Product, error) {
	doc, err := p.fetcher.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return parseProductPage(doc, pageURL, retailer)
}

func parseProductPage(doc *goquery.Document, pageURL, retailer string) (*model.Product, error) {
	name := extractPageName(doc, retailer)
	if name == "" {
		return nil, ErrNoProductName
	}
	price, ok := extractPagePrice(doc, retailer)
	if !ok {
		return nil, ErrNoProductPrice
	}

	return &model.Product{
		ID:       model.ProductID(name, retailer),
		Name:     name,
		Retailer: retailer,
		Price:    price,
		URL:      pageURL,
		ImageURL: extractPageImage(doc, retailer),
		Specs:    extractPageSpecs(doc, retailer),
	}, nil
}

func extractPageName(doc *goquery.Document, retailer string) string {
	switch retailer {
	case amazonRetailer:
		return cleanText(doc.Find("#productTitle").First().Text())
	case bestBuyRetailer:
		return cleanText(doc.Find("h1.sku-title").First().Text())
	default:
		if name := cleanText(doc.Find("h1").First().Text()); name != "" {
			return name
		}
		return cleanText(doc.Find("title").First().Text())
	}
}

func extractPagePrice(doc *goquery.Document, retailer string) (decimal.Decimal, bool) {
	var raw string
	switch retailer {
	case amazonRetailer:
		raw = doc.Find("#priceblock_ourprice, .a-price .a-offscreen").First().Text()
	case bestBuyRetailer:
		raw = doc.Find(".priceView-customer-price span").First().Text()
	default:
		raw = doc.Find(`[class*="price"], .price`).First().Text()
	}
	return ParsePrice(raw)
}

func extractPageSpecs(doc *goquery.Document, retailer string) model.SpecList {
	var specs model.SpecList
	rows := doc.Find("table tr, .specs tr")
	if retailer == amazonRetailer {
		rows = doc.Find("#productDetails_techSpec_section_1 tr")
	}
	rows.Each(func(_ int, row *goquery.Selection) {
		key := cleanText(row.Find("th").First().Text())
		value := cleanText(row.Find("td").First().Text())
		if key != "" && value != "" {
			specs = append(specs, model.Spec{Key: key, Value: value})
		}
	})
	return specs
}

func extractPageImage(doc *goquery.Document, retailer string) string {
	var sel string
	switch retailer {
	case amazonRetailer:
		sel = "#landingImage, #imgBlkFront"
	case bestBuyRetailer:
		sel = ".primary-image img"
	default:
		sel = `img[src*="product"], .product-image img`
	}
	src, _ := doc.Find(sel).First().Attr("src")
	return src
}
