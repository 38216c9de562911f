package scraper

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"pricehawk/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse test html: %v", err)
	}
	return doc
}

func TestParseAmazonSearch(t *testing.T) {
	html := `<html><body>
	<div class="s-result-item" data-component-type="s-search-result">
		<h2><a class="a-link-normal" href="/dp/B001">Wireless Mouse Pro</a></h2>
		<span class="a-price"><span class="a-offscreen">$24.99</span></span>
		<img class="s-image" src="https://img.example.com/mouse.jpg">
		<span class="a-icon-alt">4.5 out of 5 stars</span>
		<span class="a-size-base s-underline-text">1,234</span>
	</div>
	<div class="s-result-item" data-component-type="s-search-result">
		<h2><a class="a-link-normal" href="/dp/B002">No Price Gadget</a></h2>
	</div>
	<div class="s-result-item" data-component-type="s-search-result">
		<h2><a class="a-link-normal" href="https://www.amazon.com/dp/B003">Wireless Mouse Lite</a></h2>
		<span class="a-price"><span class="a-offscreen">$12.50</span></span>
	</div>
	</body></html>`

	items := parseAmazonSearch(mustDoc(t, html), testLogger())
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Product.Name != "Wireless Mouse Pro" {
		t.Errorf("unexpected name: %q", first.Product.Name)
	}
	if first.Product.Price.String() != "24.99" {
		t.Errorf("unexpected price: %s", first.Product.Price)
	}
	if first.Product.URL != "https://www.amazon.com/dp/B001" {
		t.Errorf("relative link not resolved: %q", first.Product.URL)
	}
	if first.Product.ID != model.ProductID("Wireless Mouse Pro", amazonRetailer) {
		t.Errorf("product id mismatch: %q", first.Product.ID)
	}
	if first.Rating == nil || *first.Rating != 4.5 {
		t.Errorf("expected rating 4.5, got %v", first.Rating)
	}
	if first.Reviews == nil || *first.Reviews != 1234 {
		t.Errorf("expected 1234 reviews, got %v", first.Reviews)
	}

	// 绝对链接保持原样，缺失的可选字段为 nil。
	second := items[1]
	if second.Product.URL != "https://www.amazon.com/dp/B003" {
		t.Errorf("absolute link changed: %q", second.Product.URL)
	}
	if second.Rating != nil || second.Reviews != nil {
		t.Errorf("expected nil rating/reviews, got %v / %v", second.Rating, second.Reviews)
	}
}

func TestParseAmazonSearch_ResultCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 8; i++ {
		sb.WriteString(`<div class="s-result-item" data-component-type="s-search-result">
			<h2><a class="a-link-normal" href="/dp/X">Product ` + string(rune('A'+i)) + `</a></h2>
			<span class="a-price"><span class="a-offscreen">$10.00</span></span>
		</div>`)
	}
	sb.WriteString("</body></html>")

	items := parseAmazonSearch(mustDoc(t, sb.String()), testLogger())
	if len(items) != amazonMaxResults {
		t.Fatalf("expected cap at %d items, got %d", amazonMaxResults, len(items))
	}
}

func TestParseBestBuySearch(t *testing.T) {
	html := `<html><body>
	<div class="sku-item">
		<div class="sku-title"><h4><a href="/site/gaming-laptop/123.p">Gaming Laptop 15</a></h4></div>
		<div class="priceView-customer-price"><span>$1,299.99</span></div>
		<div class="sku-image"><img src="https://img.example.com/laptop.jpg"></div>
		<div class="sku-attribute-text">16GB RAM</div>
		<div class="sku-attribute-text">512GB SSD</div>
		<div class="sku-attribute-text">RTX 4060</div>
		<div class="sku-attribute-text">Windows 11</div>
	</div>
	<div class="sku-item">
		<div class="sku-title"><a href="/site/unpriced/456.p">Unpriced Item</a></div>
	</div>
	</body></html>`

	items := parseBestBuySearch(mustDoc(t, html), testLogger())
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	got := items[0]
	if got.Product.Retailer != bestBuyRetailer {
		t.Errorf("unexpected retailer: %q", got.Product.Retailer)
	}
	if got.Product.Price.String() != "1299.99" {
		t.Errorf("unexpected price: %s", got.Product.Price)
	}
	if got.Product.URL != "https://www.bestbuy.com/site/gaming-laptop/123.p" {
		t.Errorf("relative link not resolved: %q", got.Product.URL)
	}
	if len(got.Product.Specs) != bestBuyMaxSpecs {
		t.Fatalf("expected specs capped at %d, got %d", bestBuyMaxSpecs, len(got.Product.Specs))
	}
	if got.Product.Specs[0].Value != "16GB RAM" {
		t.Errorf("unexpected first spec: %+v", got.Product.Specs[0])
	}
}

func TestParseNeweggSearch(t *testing.T) {
	html := `<html><body>
	<div class="item-cell">
		<a class="item-title" href="https://www.newegg.com/p/N82E1">Mechanical Keyboard RGB</a>
		<div class="price-current">$89.99</div>
		<div class="item-img"><img src="https://img.example.com/kb.jpg"></div>
		<ul class="item-features"><li>Hot-swappable</li><li>USB-C</li></ul>
	</div>
	</body></html>`

	items := parseNeweggSearch(mustDoc(t, html), testLogger())
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	got := items[0]
	if got.Product.Name != "Mechanical Keyboard RGB" {
		t.Errorf("unexpected name: %q", got.Product.Name)
	}
	if len(got.Product.Specs) != 2 || got.Product.Specs[0].Key != "Feature" {
		t.Errorf("unexpected specs: %+v", got.Product.Specs)
	}
}

func TestParseProductPage(t *testing.T) {
	t.Run("amazon detail page", func(t *testing.T) {
		html := `<html><body>
		<span id="productTitle">  Noise Cancelling Headphones  </span>
		<span class="a-price"><span class="a-offscreen">$249.00</span></span>
		<img id="landingImage" src="https://img.example.com/hp.jpg">
		<table id="productDetails_techSpec_section_1">
			<tr><th>Brand</th><td>AudioCo</td></tr>
			<tr><th>Weight</th><td>250g</td></tr>
		</table>
		</body></html>`

		p, err := parseProductPage(mustDoc(t, html), "https://www.amazon.com/dp/B009", amazonRetailer)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name != "Noise Cancelling Headphones" {
			t.Errorf("unexpected name: %q", p.Name)
		}
		if p.Price.String() != "249" {
			t.Errorf("unexpected price: %s", p.Price)
		}
		if len(p.Specs) != 2 || p.Specs[0].Key != "Brand" || p.Specs[0].Value != "AudioCo" {
			t.Errorf("unexpected specs: %+v", p.Specs)
		}
		if p.ID != model.ProductID("Noise Cancelling Headphones", amazonRetailer) {
			t.Errorf("product id mismatch: %q", p.ID)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := parseProductPage(mustDoc(t, "<html><body></body></html>"), "https://x.test/p", "Walmart")
		if err != ErrNoProductName {
			t.Fatalf("expected ErrNoProductName, got %v", err)
		}
	})

	t.Run("missing price", func(t *testing.T) {
		html := `<html><body><h1>Some Product</h1></body></html>`
		_, err := parseProductPage(mustDoc(t, html), "https://x.test/p", "Walmart")
		if err != ErrNoProductPrice {
			t.Fatalf("expected ErrNoProductPrice, got %v", err)
		}
	})

	t.Run("generic retailer fallback selectors", func(t *testing.T) {
		html := `<html><body>
		<h1>Robot Vacuum X1</h1>
		<div class="price-main">$349.00</div>
		</body></html>`
		p, err := parseProductPage(mustDoc(t, html), "https://www.walmart.com/ip/1", walmartRetailer)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Price.String() != "349" {
			t.Errorf("unexpected price: %s", p.Price)
		}
	})
}
