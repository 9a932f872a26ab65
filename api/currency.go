package api

import (
	"bookkeeping/models"

	"github.com/gin-gonic/gin"
)

// CurrencyHandler 币种
type CurrencyHandler struct{}

// NewCurrencyHandler 创建币种处理器
func NewCurrencyHandler() *CurrencyHandler {
	return &CurrencyHandler{}
}

// List 获取支持的币种
// @Summary 获取支持的币种
// @Description 用户资料中的币种只能取这些值
// @Tags 币种
// @Produce json
// @Success 200 {object} Response{data=[]models.Currency} "获取成功"
// @Router /api/v1/currencies [get]
func (h *CurrencyHandler) List(c *gin.Context) {
	Success(c, models.Currencies())
}
