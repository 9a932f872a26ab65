package api

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bookkeeping/database"
	"bookkeeping/middleware"
	"bookkeeping/models"
	"bookkeeping/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	svc *service.Services
	now func() time.Time
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(svc *service.Services) *NotificationHandler {
	return &NotificationHandler{svc: svc, now: time.Now}
}

// NotificationListRequest 通知列表请求
type NotificationListRequest struct {
	Page           int    `form:"page" example:"1"`
	PageSize       int    `form:"page_size" example:"20"`
	IsRead         *bool  `form:"is_read"`
	IsArchived     *bool  `form:"is_archived"`
	Type           string `form:"type" example:"budget"`
	Priority       string `form:"priority" example:"high"`
	Search         string `form:"search"`
	StartDate      string `form:"start_date" example:"2024-01-01"`
	EndDate        string `form:"end_date" example:"2024-12-31"`
	IncludeExpired bool   `form:"include_expired"`
	Ordering       string `form:"ordering" example:"-created_at"`
}

// NotificationUpdateRequest 更新通知状态请求
type NotificationUpdateRequest struct {
	IsRead     *bool `json:"is_read"`
	IsArchived *bool `json:"is_archived"`
}

// BulkActionRequest 批量操作请求
type BulkActionRequest struct {
	NotificationIDs []uint `json:"notification_ids" binding:"required,min=1"`
	Action          string `json:"action" binding:"required,oneof=mark_read mark_unread archive unarchive delete" example:"mark_read"`
}

// NotificationStats 通知统计
type NotificationStats struct {
	Total       int64                 `json:"total"`
	Unread      int64                 `json:"unread"`
	Read        int64                 `json:"read"`
	Archived    int64                 `json:"archived"`
	ByType      map[string]int64      `json:"by_type"`
	ByPriority  map[string]int64      `json:"by_priority"`
	RecentItems []models.Notification `json:"recent_notifications"`
}

// NotificationTypesResponse 可用的通知类型与优先级
type NotificationTypesResponse struct {
	Types      []models.NotificationType `json:"types"`
	Priorities []models.Priority         `json:"priorities"`
}

var orderingColumns = map[string]string{
	"created_at": "created_at",
	"title":      "title",
	"priority":   "FIELD(priority, 'low', 'medium', 'high', 'urgent')",
}

var quietHoursPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// List 获取通知列表
// @Summary 获取通知列表
// @Description 默认不包含已过期的通知，按创建时间倒序分页
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Param is_read query bool false "是否已读"
// @Param is_archived query bool false "是否归档"
// @Param type query string false "通知类型"
// @Param priority query string false "优先级"
// @Param search query string false "标题或内容关键字"
// @Param start_date query string false "创建日期起 (YYYY-MM-DD)"
// @Param end_date query string false "创建日期止 (YYYY-MM-DD)"
// @Param include_expired query bool false "是否包含已过期"
// @Param ordering query string false "排序: created_at/title/priority，前缀 - 表示倒序"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Notification}} "获取成功"
// @Failure 400 {object} Response{data=ValidationErrorData} "参数校验失败"
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var errs service.ValidationErrors
	if req.Type != "" && !models.NotificationType(req.Type).Valid() {
		errs = append(errs, service.NewValidationError("type", "未知的通知类型"))
	}
	if req.Priority != "" && !models.Priority(req.Priority).Valid() {
		errs = append(errs, service.NewValidationError("priority", "未知的优先级"))
	}
	order, ok := notificationOrder(req.Ordering)
	if !ok {
		errs = append(errs, service.NewValidationError("ordering", "不支持的排序字段"))
	}
	r, err := service.ParseDateRange(req.StartDate, req.EndDate, time.Local)
	if err != nil {
		if verrs, ok := service.AsValidation(err); ok {
			errs = append(errs, verrs...)
		}
	}
	if len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	query := database.DB.Model(&models.Notification{}).Where("user_id = ?", userID)
	if req.IsRead != nil {
		query = query.Where("is_read = ?", *req.IsRead)
	}
	if req.IsArchived != nil {
		query = query.Where("is_archived = ?", *req.IsArchived)
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}
	if like, ok := likePattern(req.Search); ok {
		query = query.Where("(title LIKE ? OR message LIKE ?)", like, like)
	}
	if r.Start != nil {
		query = query.Where("created_at >= ?", *r.Start)
	}
	if r.End != nil {
		// 包含结束日期当天
		query = query.Where("created_at < ?", r.End.AddDate(0, 0, 1))
	}
	if !req.IncludeExpired {
		query = query.Where("(expires_at IS NULL OR expires_at > ?)", h.now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	var list []models.Notification
	if err := query.Order(order).Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, PageResponse{Total: total, Page: page, PageSize: pageSize, List: list})
}

// notificationOrder 将 ordering 参数转换为 ORDER BY 子句
func notificationOrder(ordering string) (string, bool) {
	if ordering == "" {
		return "created_at DESC", true
	}
	dir := "ASC"
	field := ordering
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
		field = ordering[1:]
	}
	col, ok := orderingColumns[field]
	if !ok {
		return "", false
	}
	return col + " " + dir, true
}

// Get 获取通知详情
// @Summary 获取通知详情
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Success 200 {object} Response{data=models.Notification} "获取成功"
// @Failure 404 {object} Response "通知不存在"
// @Router /api/v1/notifications/{id} [get]
func (h *NotificationHandler) Get(c *gin.Context) {
	n, ok := h.load(c)
	if !ok {
		return
	}
	Success(c, n)
}

// Update 更新通知已读/归档状态
// @Summary 更新通知状态
// @Description 只允许修改已读与归档标记；标记未读会清空已读时间
// @Tags 通知
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Param request body NotificationUpdateRequest true "状态"
// @Success 200 {object} Response{data=models.Notification} "更新成功"
// @Failure 404 {object} Response "通知不存在"
// @Router /api/v1/notifications/{id} [put]
func (h *NotificationHandler) Update(c *gin.Context) {
	n, ok := h.load(c)
	if !ok {
		return
	}

	var req NotificationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	if req.IsRead != nil {
		if *req.IsRead {
			n.MarkRead(h.now())
		} else {
			n.MarkUnread()
		}
	}
	if req.IsArchived != nil {
		n.IsArchived = *req.IsArchived
	}

	if err := database.DB.Model(n).Select("is_read", "read_at", "is_archived").Updates(n).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	SuccessWithMessage(c, "更新成功", n)
}

// MarkRead 标记单条通知为已读
// @Summary 标记通知已读
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Success 200 {object} Response{data=models.Notification} "标记成功"
// @Failure 404 {object} Response "通知不存在"
// @Router /api/v1/notifications/{id}/mark-read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	n, ok := h.load(c)
	if !ok {
		return
	}
	if !n.IsRead {
		n.MarkRead(h.now())
		if err := database.DB.Model(n).Select("is_read", "read_at").Updates(n).Error; err != nil {
			InternalError(c, SafeErrorMessage(err, "更新失败"))
			return
		}
	}
	SuccessWithMessage(c, "已标记为已读", n)
}

// MarkAllRead 全部标记为已读
// @Summary 全部标记已读
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=map[string]int64} "返回更新数量"
// @Router /api/v1/notifications/mark-all-read [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	result := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": h.now()})
	if result.Error != nil {
		InternalError(c, SafeErrorMessage(result.Error, "更新失败"))
		return
	}
	SuccessWithMessage(c, fmt.Sprintf("已将 %d 条通知标记为已读", result.RowsAffected),
		gin.H{"updated_count": result.RowsAffected})
}

// BulkAction 批量操作
// @Summary 批量操作通知
// @Description 对当前用户的多条通知执行 mark_read/mark_unread/archive/unarchive/delete，不属于当前用户的 ID 会被忽略
// @Tags 通知
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkActionRequest true "批量操作"
// @Success 200 {object} Response{data=map[string]int64} "返回影响数量"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/notifications/bulk-action [post]
func (h *NotificationHandler) BulkAction(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	query := database.DB.Model(&models.Notification{}).Where("user_id = ? AND id IN ?", userID, req.NotificationIDs)

	var result *gorm.DB
	switch req.Action {
	case "mark_read":
		result = query.Where("is_read = ?", false).
			Updates(map[string]interface{}{"is_read": true, "read_at": h.now()})
	case "mark_unread":
		result = query.Updates(map[string]interface{}{"is_read": false, "read_at": nil})
	case "archive":
		result = query.Update("is_archived", true)
	case "unarchive":
		result = query.Update("is_archived", false)
	case "delete":
		result = database.DB.Where("user_id = ? AND id IN ?", userID, req.NotificationIDs).
			Delete(&models.Notification{})
	}
	if result.Error != nil {
		InternalError(c, SafeErrorMessage(result.Error, "批量操作失败"))
		return
	}
	SuccessWithMessage(c, "操作成功", gin.H{"affected_count": result.RowsAffected})
}

// Delete 删除通知
// @Summary 删除通知
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "通知不存在"
// @Router /api/v1/notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	n, ok := h.load(c)
	if !ok {
		return
	}
	if err := database.DB.Delete(n).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// Stats 通知统计
// @Summary 通知统计
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=NotificationStats} "获取成功"
// @Router /api/v1/notifications/stats [get]
func (h *NotificationHandler) Stats(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	base := func() *gorm.DB {
		return database.DB.Model(&models.Notification{}).Where("user_id = ?", userID)
	}

	stats := NotificationStats{
		ByType:     map[string]int64{},
		ByPriority: map[string]int64{},
	}
	type groupCount struct {
		Key   string
		Count int64
	}
	var byType, byPriority []groupCount

	steps := []func() error{
		func() error { return base().Count(&stats.Total).Error },
		func() error { return base().Where("is_read = ?", false).Count(&stats.Unread).Error },
		func() error { return base().Where("is_archived = ?", true).Count(&stats.Archived).Error },
		func() error {
			return base().Select("type AS `key`, COUNT(*) AS count").Group("type").Scan(&byType).Error
		},
		func() error {
			return base().Select("priority AS `key`, COUNT(*) AS count").Group("priority").Scan(&byPriority).Error
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			InternalError(c, SafeErrorMessage(err, "统计失败"))
			return
		}
	}
	stats.Read = stats.Total - stats.Unread

	for _, g := range byType {
		stats.ByType[g.Key] = g.Count
	}
	for _, g := range byPriority {
		stats.ByPriority[g.Key] = g.Count
	}

	if err := base().Order("created_at DESC").Limit(5).Find(&stats.RecentItems).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "统计失败"))
		return
	}
	Success(c, stats)
}

// Types 可用的通知类型与优先级
// @Summary 通知类型与优先级
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=NotificationTypesResponse} "获取成功"
// @Router /api/v1/notifications/types [get]
func (h *NotificationHandler) Types(c *gin.Context) {
	Success(c, NotificationTypesResponse{
		Types:      models.NotificationTypes,
		Priorities: models.Priorities,
	})
}

// GetPreferences 获取通知偏好
// @Summary 获取通知偏好
// @Description 尚未设置时按默认值创建
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.NotificationPreference} "获取成功"
// @Router /api/v1/notifications/preferences [get]
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	pref, err := h.svc.Notifier.Preference(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, pref)
}

// UpdatePreferences 更新通知偏好
// @Summary 更新通知偏好
// @Description 请求体为扁平对象，如 {"in_app_budget": false, "quiet_hours_enabled": true, "quiet_hours_start": "22:00"}
// @Tags 通知
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body map[string]interface{} true "偏好字段"
// @Success 200 {object} Response{data=models.NotificationPreference} "更新成功"
// @Failure 400 {object} Response{data=ValidationErrorData} "参数校验失败"
// @Router /api/v1/notifications/preferences [put]
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	pref, err := h.svc.Notifier.Preference(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	if errs := applyPreferenceUpdate(pref, req); len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	if err := database.DB.Model(pref).Where("user_id = ?", userID).Select("*").Omit("id", "user_id", "created_at").Updates(pref).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	SuccessWithMessage(c, "更新成功", pref)
}

// applyPreferenceUpdate 将扁平的字段更新应用到偏好上
func applyPreferenceUpdate(pref *models.NotificationPreference, req map[string]interface{}) service.ValidationErrors {
	var errs service.ValidationErrors
	for key, raw := range req {
		switch key {
		case "quiet_hours_enabled":
			v, ok := raw.(bool)
			if !ok {
				errs = append(errs, service.NewValidationError(key, "必须为布尔值"))
				continue
			}
			pref.QuietHoursEnabled = v
		case "quiet_hours_start", "quiet_hours_end":
			v, ok := raw.(string)
			if !ok || !quietHoursPattern.MatchString(v) {
				errs = append(errs, service.NewValidationError(key, "时间格式应为 HH:MM"))
				continue
			}
			if key == "quiet_hours_start" {
				pref.QuietHoursStart = v
			} else {
				pref.QuietHoursEnd = v
			}
		default:
			v, ok := raw.(bool)
			if !ok {
				errs = append(errs, service.NewValidationError(key, "必须为布尔值"))
				continue
			}
			if !pref.ApplyFlag(key, v) {
				errs = append(errs, service.NewValidationError(key, "未知的偏好字段"))
			}
		}
	}
	return errs
}

// load 按路径 ID 加载当前用户的通知
func (h *NotificationHandler) load(c *gin.Context) (*models.Notification, bool) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return nil, false
	}

	var n models.Notification
	if err := database.DB.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "通知不存在")
		} else {
			InternalError(c, SafeErrorMessage(err, "查询失败"))
		}
		return nil, false
	}
	return &n, true
}
