package scraper

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"pricehawk/internal/model"
	"pricehawk/internal/pkg/metrics"
)

// DemoRetailer 演示数据使用的占位零售商标识。
const DemoRetailer = "Demo Store"

var demoPrices = []string{"299.99", "399.99", "199.99"}

// DemoItems 按查询词生成三条占位商品，供所有真实来源都抓不到结果时兜底。
// 占位商品与真实商品走同一条规范化和持久化路径。
func DemoItems(query string) []Item {
	metrics.DemoFallbackTotal.Inc()
	title := titleCase(query)
	upper := strings.ToUpper(query)

	items := make([]Item, 0, len(demoPrices))
	for i, raw := range demoPrices {
		n := i + 1
		name := fmt.Sprintf("%s - Demo Product %d", title, n)
		price, _ := decimal.NewFromString(raw)
		items = append(items, Item{
			Product: model.Product{
				ID:       model.ProductID(name, DemoRetailer),
				Name:     name,
				Retailer: DemoRetailer,
				Price:    price,
				URL:      fmt.Sprintf("https://example.com/product%d", n),
				ImageURL: fmt.Sprintf("https://via.placeholder.com/300x300?text=Product+%d", n),
				Specs: model.SpecList{
					{Key: "Brand", Value: "Demo Brand"},
					{Key: "Model", Value: fmt.Sprintf("%s-%03d", upper, n)},
					{Key: "Condition", Value: "New"},
				},
			},
		})
	}
	return items
}

// titleCase 把查询词按单词首字母大写，仅用于演示商品命名。
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
