package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"bookkeeping/database"
	"bookkeeping/middleware"
	"bookkeeping/models"
	"bookkeeping/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionHandler 收支记录处理器
type TransactionHandler struct {
	svc *service.Services
}

// NewTransactionHandler 创建收支记录处理器
func NewTransactionHandler(svc *service.Services) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// TransactionRequest 创建/更新收支记录请求
type TransactionRequest struct {
	Title       string                 `json:"title" binding:"required,max=200" example:"Lunch"`
	Description string                 `json:"description" example:"with team"`
	Amount      *decimal.Decimal       `json:"amount" swaggertype:"string" example:"25.50"`
	Type        string                 `json:"type" binding:"required" example:"expense"`
	CategoryID  uint                   `json:"category_id" binding:"required" example:"1"`
	Date        string                 `json:"date" binding:"required" example:"2024-01-15"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// TransactionListRequest 收支记录列表请求
type TransactionListRequest struct {
	Page      int    `form:"page" example:"1"`
	PageSize  int    `form:"page_size" example:"20"`
	Type      string `form:"type" example:"expense"`
	Category  string `form:"category" example:"Travel"`
	StartDate string `form:"start_date" example:"2024-01-01"`
	EndDate   string `form:"end_date" example:"2024-12-31"`
	Search    string `form:"search"`
}

// validate 校验请求并加载类别
func (r *TransactionRequest) validate(userID uint) (*models.Category, time.Time, error) {
	var errs service.ValidationErrors
	if r.Amount == nil {
		errs = append(errs, service.NewValidationError("amount", "金额不能为空"))
	} else if r.Amount.IsNegative() {
		errs = append(errs, service.NewValidationError("amount", "金额不能为负数"))
	}
	date, err := time.ParseInLocation(service.DateLayout, r.Date, time.Local)
	if err != nil {
		errs = append(errs, service.NewValidationError("date", "日期格式错误，应为 YYYY-MM-DD"))
	}
	if len(errs) > 0 {
		return nil, time.Time{}, errs
	}

	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", r.CategoryID, userID).First(&cat).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, err
		}
		return nil, time.Time{}, service.ValidateTransactionCategory(nil, models.TransactionType(r.Type))
	}
	if err := service.ValidateTransactionCategory(&cat, models.TransactionType(r.Type)); err != nil {
		return nil, time.Time{}, err
	}
	return &cat, date, nil
}

// Create 创建收支记录
// @Summary 创建收支记录
// @Description 记录类型必须与类别类型一致；创建后生成通知并重新评估预算
// @Tags 收支记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransactionRequest true "收支记录"
// @Success 200 {object} Response{data=models.Transaction} "创建成功"
// @Failure 400 {object} Response{data=ValidationErrorData} "参数校验失败"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	cat, date, err := req.validate(userID)
	if err != nil {
		HandleServiceError(c, err, "创建失败")
		return
	}

	tx := models.Transaction{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Amount:      req.Amount.Round(2),
		Type:        cat.Type,
		CategoryID:  cat.ID,
		Date:        date,
		Metadata:    req.Metadata,
	}
	if err := database.DB.Omit("Category", "User").Create(&tx).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建失败"))
		return
	}
	tx.Category = cat

	ctx := c.Request.Context()
	h.svc.Notifier.AfterTransactionCreated(ctx, &tx)
	h.svc.Summaries.Invalidate(ctx, userID)

	SuccessWithMessage(c, "创建成功", tx)
}

// List 获取收支记录列表
// @Summary 获取收支记录列表
// @Description 支持按类型、类别名称、日期区间和关键字筛选，按日期倒序分页
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Param type query string false "类型 income/expense"
// @Param category query string false "类别名称"
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Param search query string false "标题或描述关键字"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Transaction}} "获取成功"
// @Failure 400 {object} Response{data=ValidationErrorData} "参数校验失败"
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	var req TransactionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	h.list(c, req)
}

// ListByType 按类型获取收支记录
// @Summary 按类型获取收支记录
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param kind path string true "类型 income/expense"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Transaction}} "获取成功"
// @Router /api/v1/transactions/type/{kind} [get]
func (h *TransactionHandler) ListByType(c *gin.Context) {
	var req TransactionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Type = c.Param("kind")
	h.list(c, req)
}

// ListByCategory 按类别名称获取收支记录
// @Summary 按类别获取收支记录
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param name path string true "类别名称"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Transaction}} "获取成功"
// @Router /api/v1/transactions/category/{name} [get]
func (h *TransactionHandler) ListByCategory(c *gin.Context) {
	var req TransactionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Category = c.Param("name")
	h.list(c, req)
}

func (h *TransactionHandler) list(c *gin.Context, req TransactionListRequest) {
	userID := middleware.GetCurrentUserID(c)

	if req.Type != "" && !models.TransactionType(req.Type).Valid() {
		ValidationFailed(c, service.ValidationErrors{service.NewValidationError("type", "类型必须为 income 或 expense")})
		return
	}
	r, err := service.ParseDateRange(req.StartDate, req.EndDate, time.Local)
	if err != nil {
		HandleServiceError(c, err, "参数错误")
		return
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)

	query := database.DB.Model(&models.Transaction{}).Where("transactions.user_id = ?", userID)
	if req.Type != "" {
		query = query.Where("transactions.type = ?", req.Type)
	}
	if req.Category != "" {
		query = query.Joins("JOIN categories ON categories.id = transactions.category_id").
			Where("categories.name = ?", req.Category)
	}
	if r.Start != nil {
		query = query.Where("transactions.date >= ?", *r.Start)
	}
	if r.End != nil {
		query = query.Where("transactions.date <= ?", *r.End)
	}
	if like, ok := likePattern(req.Search); ok {
		query = query.Where("(transactions.title LIKE ? OR transactions.description LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	var list []models.Transaction
	if err := query.Preload("Category", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("transactions.date DESC, transactions.created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		List:     list,
	})
}

// Get 获取单条收支记录
// @Summary 获取收支记录详情
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param id path int true "记录ID"
// @Success 200 {object} Response{data=models.Transaction} "获取成功"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	tx, ok := h.load(c)
	if !ok {
		return
	}
	Success(c, tx)
}

// Update 更新收支记录
// @Summary 更新收支记录
// @Description 记录类型必须与类别类型一致；更新后重新评估预算
// @Tags 收支记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "记录ID"
// @Param request body TransactionRequest true "收支记录"
// @Success 200 {object} Response{data=models.Transaction} "更新成功"
// @Failure 400 {object} Response{data=ValidationErrorData} "参数校验失败"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [put]
func (h *TransactionHandler) Update(c *gin.Context) {
	tx, ok := h.load(c)
	if !ok {
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	cat, date, err := req.validate(tx.UserID)
	if err != nil {
		HandleServiceError(c, err, "更新失败")
		return
	}

	tx.Title = strings.TrimSpace(req.Title)
	tx.Description = req.Description
	tx.Amount = req.Amount.Round(2)
	tx.Type = cat.Type
	tx.CategoryID = cat.ID
	tx.Date = date
	if req.Metadata != nil {
		tx.Metadata = req.Metadata
	}
	tx.Category = nil
	if err := database.DB.Omit("Category", "User").Save(tx).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	tx.Category = cat

	ctx := c.Request.Context()
	h.svc.Notifier.AfterBudgetInputsChanged(ctx, tx.UserID)
	h.svc.Summaries.Invalidate(ctx, tx.UserID)

	SuccessWithMessage(c, "更新成功", tx)
}

// Delete 删除收支记录
// @Summary 删除收支记录
// @Description 删除后生成删除通知并重新评估预算，已有通知不会被撤回
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param id path int true "记录ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *gin.Context) {
	tx, ok := h.load(c)
	if !ok {
		return
	}

	snap := service.SnapshotOf(tx)
	if err := database.DB.Delete(&models.Transaction{}, tx.ID).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}

	ctx := c.Request.Context()
	h.svc.Notifier.AfterTransactionDeleted(ctx, tx.UserID, snap)
	h.svc.Summaries.Invalidate(ctx, tx.UserID)

	SuccessWithMessage(c, "删除成功", nil)
}

// Summary 收支汇总
// @Summary 收支汇总
// @Description 统计区间内的收入、支出、结余、分类与月度明细及最近 5 条记录，不传日期则统计全部
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "开始日期 (YYYY-MM-DD)"
// @Param end_date query string false "结束日期 (YYYY-MM-DD)"
// @Success 200 {object} Response{data=service.Summary} "获取成功"
// @Failure 400 {object} Response{data=ValidationErrorData} "日期参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions/summary [get]
func (h *TransactionHandler) Summary(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	r, err := service.ParseDateRange(c.Query("start_date"), c.Query("end_date"), time.Local)
	if err != nil {
		HandleServiceError(c, err, "参数错误")
		return
	}

	summary, err := h.svc.Summaries.Summarize(c.Request.Context(), userID, r)
	if err != nil {
		HandleServiceError(c, err, "统计失败")
		return
	}
	Success(c, summary)
}

// load 按路径 ID 加载当前用户的收支记录（含已删除的类别）
func (h *TransactionHandler) load(c *gin.Context) (*models.Transaction, bool) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return nil, false
	}

	var tx models.Transaction
	err = database.DB.Preload("Category", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("id = ? AND user_id = ?", id, userID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "记录不存在")
		} else {
			InternalError(c, SafeErrorMessage(err, "查询失败"))
		}
		return nil, false
	}
	return &tx, true
}
