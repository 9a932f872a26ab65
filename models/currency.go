package models

import "strings"

// Currency 可选币种
type Currency struct {
	Code   string `json:"code" example:"USD"`
	Name   string `json:"name" example:"US Dollar"`
	Symbol string `json:"symbol" example:"$"`
}

// 按代码排序
var supportedCurrencies = []Currency{
	{"AUD", "Australian Dollar", "A$"},
	{"CAD", "Canadian Dollar", "C$"},
	{"CHF", "Swiss Franc", "CHF"},
	{"CNY", "Chinese Yuan", "¥"},
	{"EUR", "Euro", "€"},
	{"GBP", "British Pound", "£"},
	{"INR", "Indian Rupee", "₹"},
	{"JPY", "Japanese Yen", "¥"},
	{"SGD", "Singapore Dollar", "S$"},
	{"USD", "US Dollar", "$"},
}

// Currencies 返回支持的币种列表副本
func Currencies() []Currency {
	out := make([]Currency, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// IsSupportedCurrency 币种代码是否受支持，大小写不敏感
func IsSupportedCurrency(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range supportedCurrencies {
		if c.Code == code {
			return true
		}
	}
	return false
}
