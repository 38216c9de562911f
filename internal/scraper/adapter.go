package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"pricehawk/internal/model"
)

// Item 单条抓取结果：规范化后的商品加上可选的观测附加字段。
// Rating/Reviews 仅部分零售商的搜索页提供，缺省时为 nil。
type Item struct {
	Product  model.Product
	Rating   *float64
	Reviews  *int
	Shipping string
}

// SourceAdapter 单个零售商的搜索适配器。
// Search 返回本来源规范化后的结果，失败时返回错误，绝不 panic。
type SourceAdapter interface {
	Retailer() string
	Search(ctx context.Context, query string) ([]Item, error)
}

// Registry 按零售商标识索引的适配器集合。
type Registry struct {
	adapters map[string]SourceAdapter
	order    []string
	logger   *slog.Logger
}

// NewRegistry 创建注册表并装入全部内置零售商适配器。
func NewRegistry(fetcher *Fetcher, logger *slog.Logger) *Registry {
	r := &Registry{
		adapters: make(map[string]SourceAdapter),
		logger:   logger,
	}
	r.Register(newAmazonAdapter(fetcher, logger))
	r.Register(newBestBuyAdapter(fetcher, logger))
	r.Register(newWalmartAdapter(fetcher, logger))
	r.Register(newTargetAdapter(fetcher, logger))
	r.Register(newNeweggAdapter(fetcher, logger))
	return r
}

// Register 注册一个适配器，重复注册按后者覆盖。
func (r *Registry) Register(a SourceAdapter) {
	key := strings.ToLower(a.Retailer())
	if _, ok := r.adapters[key]; !ok {
		r.order = append(r.order, key)
	}
	r.adapters[key] = a
}

// Get 按零售商标识（大小写不敏感）查找适配器。
func (r *Registry) Get(retailer string) (SourceAdapter, bool) {
	a, ok := r.adapters[strings.ToLower(retailer)]
	return a, ok
}

// Known 返回全部已注册的零售商标识，按注册顺序。
func (r *Registry) Known() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// resolveURL 把商品链接补全成绝对地址，已是绝对地址时原样保留。
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
