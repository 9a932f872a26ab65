package api

import "strings"

// escapeLikeValue 转义 LIKE 查询中的通配符 % 和 _，防止用户输入改变匹配语义
func escapeLikeValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// likePattern 去掉首尾空白后生成包含匹配的模式，空输入返回 false
func likePattern(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return "%" + escapeLikeValue(s) + "%", true
}

// normalizePage 默认第 1 页，每页 20 条，最多 100 条
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
