package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bookkeeping/database"
	"bookkeeping/middleware"
	"bookkeeping/models"
	"bookkeeping/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CategoryHandler 收支类别管理
type CategoryHandler struct {
	svc *service.Services
}

// NewCategoryHandler 创建类别处理器
func NewCategoryHandler(svc *service.Services) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

// CategoryCreateRequest 创建类别请求
type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100" example:"Food & Dining"`
	Type        string `json:"type" binding:"required,oneof=income expense" example:"expense"`
	Icon        string `json:"icon" binding:"omitempty,max=10" example:"🍔"`
	Color       string `json:"color" binding:"omitempty,max=7" example:"#FF6B6B"`
	Description string `json:"description"`
}

// CategoryUpdateRequest 更新类别请求，类型不可修改
type CategoryUpdateRequest struct {
	Name        string  `json:"name" binding:"omitempty,min=1,max=100"`
	Icon        *string `json:"icon" binding:"omitempty,max=10"`
	Color       *string `json:"color" binding:"omitempty,max=7"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// List 获取类别列表
// @Summary 获取类别列表
// @Description 获取当前用户的类别，支持按类型、启用状态和名称筛选
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param type query string false "类型 income/expense"
// @Param is_active query bool false "是否启用"
// @Param search query string false "名称模糊搜索"
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	query := database.DB.Where("user_id = ?", userID)
	if typ := c.Query("type"); typ != "" {
		if !models.TransactionType(typ).Valid() {
			BadRequest(c, "类型必须为 income 或 expense")
			return
		}
		query = query.Where("type = ?", typ)
	}
	if active := c.Query("is_active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			BadRequest(c, "is_active 参数错误")
			return
		}
		query = query.Where("is_active = ?", v)
	}
	if like, ok := likePattern(c.Query("search")); ok {
		query = query.Where("name LIKE ?", like)
	}

	var list []models.Category
	if err := query.Order("type ASC, name ASC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}

// ListByType 按类型获取启用的类别
// @Summary 按类型获取类别
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param kind path string true "类型 income/expense"
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Failure 400 {object} Response "类型错误"
// @Router /api/v1/categories/type/{kind} [get]
func (h *CategoryHandler) ListByType(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	kind := models.TransactionType(c.Param("kind"))
	if !kind.Valid() {
		BadRequest(c, "类型必须为 income 或 expense")
		return
	}

	var list []models.Category
	if err := database.DB.Where("user_id = ? AND type = ? AND is_active = ?", userID, kind, true).
		Order("name ASC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}

// Create 创建类别
// @Summary 创建类别
// @Tags 类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "类别信息"
// @Success 200 {object} Response{data=models.Category} "创建成功"
// @Failure 400 {object} Response "参数错误或类别已存在"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "名称不能为空")
		return
	}

	// 同一用户下 (name, type) 唯一
	var existing models.Category
	if err := database.DB.Where("user_id = ? AND name = ? AND type = ?", userID, req.Name, req.Type).
		First(&existing).Error; err == nil {
		BadRequest(c, "类别已存在")
		return
	}

	cat := models.Category{
		UserID:      userID,
		Name:        req.Name,
		Type:        models.TransactionType(req.Type),
		Icon:        req.Icon,
		Color:       req.Color,
		Description: req.Description,
		IsActive:    true,
	}
	if cat.Icon == "" {
		cat.Icon = "📋"
	}
	if cat.Color == "" {
		cat.Color = "#6B7280"
	}
	if err := database.DB.Create(&cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建失败"))
		return
	}
	SuccessWithMessage(c, "创建成功", cat)
}

// Get 获取单个类别
// @Summary 获取类别详情
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Success 200 {object} Response{data=models.Category} "获取成功"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	cat, ok := h.load(c)
	if !ok {
		return
	}
	Success(c, cat)
}

// Update 更新类别
// @Summary 更新类别
// @Tags 类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Param request body CategoryUpdateRequest true "类别信息"
// @Success 200 {object} Response{data=models.Category} "更新成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	cat, ok := h.load(c)
	if !ok {
		return
	}

	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" && name != cat.Name {
		var dup models.Category
		if err := database.DB.Where("user_id = ? AND name = ? AND type = ? AND id <> ?", cat.UserID, name, cat.Type, cat.ID).
			First(&dup).Error; err == nil {
			BadRequest(c, "类别已存在")
			return
		}
		updates["name"] = name
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		Success(c, cat)
		return
	}

	if err := database.DB.Model(cat).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	// 汇总中的类别名随之变化
	h.svc.Summaries.Invalidate(c.Request.Context(), cat.UserID)
	SuccessWithMessage(c, "更新成功", cat)
}

// Delete 删除类别，有关联收支记录时拒绝删除
// @Summary 删除类别
// @Description 类别下仍有收支记录时不允许删除，可改为停用
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "类别下仍有收支记录"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	cat, ok := h.load(c)
	if !ok {
		return
	}

	var count int64
	if err := database.DB.Model(&models.Transaction{}).Where("category_id = ?", cat.ID).Count(&count).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	if count > 0 {
		Error(c, http.StatusBadRequest, "该类别下仍有 "+strconv.FormatInt(count, 10)+" 条收支记录，无法删除，可改为停用")
		return
	}

	// 物理删除，释放 (user_id, name, type) 唯一索引，同名类别可以重新创建
	if err := database.DB.Unscoped().Delete(cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	h.svc.Summaries.Invalidate(c.Request.Context(), cat.UserID)
	SuccessWithMessage(c, "删除成功", nil)
}

// load 按路径 ID 加载当前用户的类别，失败时已写入响应
func (h *CategoryHandler) load(c *gin.Context) (*models.Category, bool) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return nil, false
	}

	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", id, userID).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "类别不存在")
		} else {
			InternalError(c, SafeErrorMessage(err, "查询失败"))
		}
		return nil, false
	}
	return &cat, true
}
