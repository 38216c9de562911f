package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product 表示从零售平台聚合到的规范化商品。
//
// 商品没有全局唯一的自然主键，ID 由 (name, retailer) 确定性哈希得到，
// 同一商品的重复抓取会折叠到同一条记录上（upsert）。
type Product struct {
	ID        string    `gorm:"type:varchar(48);primaryKey" json:"id"` // 确定性哈希 ID
	CreatedAt time.Time `json:"created_at"`                            // 首次抓取时间
	UpdatedAt time.Time `json:"updated_at"`                            // 最近一次抓取时间

	Name     string          `gorm:"type:varchar(512);not null;uniqueIndex:idx_name_retailer,length:191" json:"name"` // 商品名称
	Retailer string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_name_retailer" json:"retailer"`         // 来源零售商
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`                                        // 最近观测价格（必须 > 0）
	URL      string          `gorm:"type:varchar(1024)" json:"url"`                                                   // 商品详情页链接
	ImageURL string          `gorm:"type:varchar(1024)" json:"image_url,omitempty"`                                   // 主图链接
	Specs    SpecList        `gorm:"type:text" json:"specifications"`                                                 // 规格参数（有序）
}

// Spec 单条规格参数。
type Spec struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SpecList 有序规格列表，整体以 JSON 形式持久化到单列。
type SpecList []Spec

// Value 实现 driver.Valuer。
func (l SpecList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal specs: %w", err)
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner。
func (l *SpecList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported specs column type %T", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// ProductID 计算商品的确定性标识。
//
// 使用 sha256(name + "\x00" + retailer) 的前 24 个十六进制字符，
// 保证同一 (name, retailer) 的重复观测折叠为同一身份。
func ProductID(name, retailer string) string {
	sum := sha256.Sum256([]byte(name + "\x00" + retailer))
	return hex.EncodeToString(sum[:12])
}

// PriceObservation 表示某商品的一次带时间戳的价格观测。
//
// 该表只追加、不修改、不删除，(product_id, observed_at) 唯一，
// 重复写入同一键是无操作而不是错误。字段名与类型是系统唯一的
// 持久化契约，只允许增量演进。
type PriceObservation struct {
	ID         uint            `gorm:"primaryKey" json:"-"`
	ProductID  string          `gorm:"type:varchar(48);not null;uniqueIndex:idx_obs_product_time" json:"product_id"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Retailer   string          `gorm:"type:varchar(64)" json:"retailer"`
	Rating     *float64        `json:"rating,omitempty"`                            // 评分（可缺省）
	Reviews    *int            `json:"reviews,omitempty"`                           // 评论数（可缺省）
	Shipping   string          `gorm:"type:varchar(255)" json:"shipping,omitempty"` // 配送信息（可缺省）
	ObservedAt time.Time       `gorm:"not null;uniqueIndex:idx_obs_product_time" json:"observed_at"`
}

// PriceStats 某商品价格历史的派生统计。
//
// 只作为缓存视图存在，不独立持久化，观测追加后必须失效重算。
type PriceStats struct {
	Highest decimal.Decimal `json:"highest"`
	Lowest  decimal.Decimal `json:"lowest"`
	Average decimal.Decimal `json:"average"`
}

// TrackedProduct 表示用户关注的商品，行存在即表示正在关注。
type TrackedProduct struct {
	ProductID string    `gorm:"type:varchar(48);primaryKey" json:"product_id"`
	TrackedAt time.Time `gorm:"not null" json:"tracked_at"`
}

// TrackedProductView 关注列表的读时富化视图。
//
// PriceChange = 最新观测 - 上一次观测，不足两次观测时为 0。
type TrackedProductView struct {
	Product      Product         `json:"product"`
	TrackedAt    time.Time       `json:"tracked_at"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PriceChange  decimal.Decimal `json:"price_change"`
}

// 告警触发条件。
const (
	ConditionAbove = "above" // 价格升至目标价及以上时触发
	ConditionBelow = "below" // 价格降至目标价及以下时触发
)

// PriceAlert 表示一条用户设置的价格告警。
//
// 同一 (product_id, contact_email) 最多存在一条 active 告警，
// 重复创建会原地更新阈值/条件并清空 last_checked。
type PriceAlert struct {
	ID           string          `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID
	ProductID    string          `gorm:"type:varchar(48);not null;index" json:"product_id"`
	TargetPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"target_price"`
	Condition    string          `gorm:"type:varchar(16);not null" json:"condition"` // above / below
	ContactEmail string          `gorm:"type:varchar(255);not null;index" json:"contact_email"`
	CreatedAt    time.Time       `json:"created_at"`
	LastChecked  *time.Time      `json:"last_checked,omitempty"` // 最近一次评估时间
	IsActive     bool            `gorm:"not null;default:true;index" json:"is_active"`
}

// SearchQuery 最近搜索记录。
type SearchQuery struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Query     string    `gorm:"type:varchar(255);not null" json:"query"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
