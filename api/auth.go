package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bookkeeping/config"
	"bookkeeping/database"
	"bookkeeping/middleware"
	"bookkeeping/models"
	"bookkeeping/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg *config.Config
	svc *service.Services
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, svc *service.Services) *AuthHandler {
	return &AuthHandler{cfg: cfg, svc: svc}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50" example:"testuser"`
	Password string `json:"password" binding:"required,min=6,max=50" example:"password123"`
	Email    string `json:"email" binding:"omitempty,email" example:"test@example.com"`
}

// LoginRequest 登录请求（支持用户名或邮箱）
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"testuser"` // 可为用户名或邮箱
	Password string `json:"password" binding:"required" example:"password123"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string      `json:"token"`
	UserInfo models.User `json:"user_info"`
}

// ProfileResponse 当前用户信息
type ProfileResponse struct {
	User    models.User         `json:"user"`
	Profile *models.UserProfile `json:"profile"`
}

// UpdateProfileRequest 更新资料请求
type UpdateProfileRequest struct {
	Email         *string          `json:"email" binding:"omitempty,email" example:"test@example.com"`
	Currency      *string          `json:"currency" binding:"omitempty,len=3" example:"USD"`
	MonthlyBudget *decimal.Decimal `json:"monthly_budget" swaggertype:"string" example:"1000.00"`
	ClearBudget   bool             `json:"clear_budget"` // 为 true 时清空月度预算
	PhoneNumber   *string          `json:"phone_number" binding:"omitempty,max=20"`
	DateOfBirth   *string          `json:"date_of_birth" example:"1990-01-01"`
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建新用户，同时创建用户资料、默认通知偏好、默认类别与欢迎通知
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 200 {object} Response{data=models.User} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	// 检查用户名是否已存在
	var existingUser models.User
	if err := database.DB.Where("username = ?", req.Username).First(&existingUser).Error; err == nil {
		BadRequest(c, "用户名已存在")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	user := models.User{
		Username: req.Username,
		Password: string(hashedPassword),
		Email:    req.Email,
		Status:   models.UserStatusActive,
	}

	// 用户、资料、通知偏好在同一事务中创建
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := models.UserProfile{UserID: user.ID, Currency: models.DefaultCurrency}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		user.Profile = &profile
		return tx.Create(models.DefaultNotificationPreference(user.ID)).Error
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "创建用户失败"))
		return
	}

	ctx := c.Request.Context()
	if _, err := service.SeedDefaultCategories(ctx, database.DB, user.ID); err != nil {
		logger(c).Warn("初始化默认类别失败", "user_id", user.ID, "error", err)
	}
	if _, err := h.svc.Notifier.Welcome(ctx, user.ID); err != nil {
		logger(c).Warn("创建欢迎通知失败", "user_id", user.ID, "error", err)
	}

	SuccessWithMessage(c, "注册成功", user)
}

// Login 用户登录
// @Summary 用户登录
// @Description 用户登录获取 JWT token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Failure 403 {object} Response "账号已锁定"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var user models.User
	if err := database.DB.Where("username = ? OR email = ?", req.Username, req.Username).First(&user).Error; err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	if user.Status == models.UserStatusLocked {
		Error(c, http.StatusForbidden, "账号已锁定")
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Username, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}

	Success(c, LoginResponse{
		Token:    token,
		UserInfo: user,
	})
}

// GetProfile 获取用户信息
// @Summary 获取当前用户信息
// @Description 获取当前登录用户信息及预算资料
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=ProfileResponse} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	profile, err := h.svc.Store.GetProfile(c.Request.Context(), userID, false)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询用户资料失败"))
		return
	}

	Success(c, ProfileResponse{User: user, Profile: profile})
}

// UpdateProfile 更新用户资料
// @Summary 更新当前用户资料
// @Description 更新邮箱、币种、月度预算等；币种须为 /api/v1/currencies 中的代码；提交预算后立即重新评估预算提醒
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "资料信息"
// @Success 200 {object} Response{data=ProfileResponse} "更新成功"
// @Failure 400 {object} Response{data=ValidationErrorData} "参数校验失败"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var errs service.ValidationErrors
	if req.Currency != nil && !models.IsSupportedCurrency(*req.Currency) {
		errs = append(errs, service.NewValidationError("currency", "不支持的币种"))
	}
	if req.MonthlyBudget != nil && req.MonthlyBudget.IsNegative() {
		errs = append(errs, service.NewValidationError("monthly_budget", "月度预算不能为负数"))
	}
	var dob *time.Time
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		t, err := time.ParseInLocation(service.DateLayout, *req.DateOfBirth, time.Local)
		if err != nil {
			errs = append(errs, service.NewValidationError("date_of_birth", "日期格式错误，应为 YYYY-MM-DD"))
		} else {
			dob = &t
		}
	}
	if len(errs) > 0 {
		ValidationFailed(c, errs)
		return
	}

	var (
		user    models.User
		profile models.UserProfile
	)
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		if req.Email != nil {
			user.Email = strings.TrimSpace(*req.Email)
			if err := tx.Model(&user).Update("email", user.Email).Error; err != nil {
				return err
			}
		}

		if err := tx.Where(models.UserProfile{UserID: userID}).
			Attrs(models.UserProfile{Currency: models.DefaultCurrency}).
			FirstOrCreate(&profile).Error; err != nil {
			return err
		}
		if req.Currency != nil {
			profile.Currency = strings.ToUpper(*req.Currency)
		}
		if req.MonthlyBudget != nil {
			profile.MonthlyBudget = decimal.NewNullDecimal(req.MonthlyBudget.Round(2))
		}
		if req.ClearBudget {
			profile.MonthlyBudget = decimal.NullDecimal{}
		}
		if req.PhoneNumber != nil {
			profile.PhoneNumber = *req.PhoneNumber
		}
		if dob != nil {
			profile.DateOfBirth = dob
		}
		return tx.Save(&profile).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "用户不存在")
			return
		}
		InternalError(c, SafeErrorMessage(err, "更新资料失败"))
		return
	}

	if req.MonthlyBudget != nil {
		h.svc.Notifier.AfterBudgetInputsChanged(c.Request.Context(), userID)
	}

	SuccessWithMessage(c, "更新成功", ProfileResponse{User: user, Profile: &profile})
}
