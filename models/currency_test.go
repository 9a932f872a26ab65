package models

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrencies(t *testing.T) {
	list := Currencies()
	assert.Len(t, list, 10)
	assert.True(t, sort.SliceIsSorted(list, func(i, j int) bool { return list[i].Code < list[j].Code }))

	// 返回副本，调用方修改不影响后续结果
	list[0].Code = "XXX"
	assert.Equal(t, "AUD", Currencies()[0].Code)
}

func TestIsSupportedCurrency(t *testing.T) {
	assert.True(t, IsSupportedCurrency(DefaultCurrency))
	assert.True(t, IsSupportedCurrency("eur"))
	assert.True(t, IsSupportedCurrency(" JPY "))
	assert.False(t, IsSupportedCurrency("RP"))
	assert.False(t, IsSupportedCurrency("XYZ"))
	assert.False(t, IsSupportedCurrency(""))
}
