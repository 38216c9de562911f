package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	priceStripRe = regexp.MustCompile(`[^0-9.]`)
	floatTokenRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	intTokenRe   = regexp.MustCompile(`[0-9]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ParsePrice 从原始价格字符串中解析正的十进制价格。
//
// 规则：去掉数字和小数点以外的所有字符（货币符号、千分位、空白），
// 再按十进制解析。解析失败或结果不为正时返回 false，绝不返回 0 价格。
//
//	"$1,234.56" -> 1234.56
//	"€99"       -> 99
//	"N/A"       -> 无
func ParsePrice(raw string) (decimal.Decimal, bool) {
	stripped := priceStripRe.ReplaceAllString(raw, "")
	if stripped == "" {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(stripped)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, false
	}
	return price, true
}

// ExtractRating 提取第一个浮点数 token 作为评分。
//
//	"4.5 out of 5 stars" -> 4.5
//	"Rating: 3"          -> 3
func ExtractRating(raw string) (float64, bool) {
	token := floatTokenRe.FindString(raw)
	if token == "" {
		return 0, false
	}
	rating, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return rating, true
}

// ExtractReviewCount 提取第一个整数 token 作为评论数，千分位分隔符先剥离。
//
//	"1,024 ratings" -> 1024
func ExtractReviewCount(raw string) (int, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	token := intTokenRe.FindString(cleaned)
	if token == "" {
		return 0, false
	}
	count, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return count, true
}

// cleanText 压缩空白并去掉首尾空格，用于选择器提取出的文本。
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
