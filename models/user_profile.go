package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency 新用户默认币种
const DefaultCurrency = "USD"

// UserProfile 用户资料，保存月度预算与币种
type UserProfile struct {
	ID            uint                `json:"id" gorm:"primaryKey"`
	UserID        uint                `json:"user_id" gorm:"uniqueIndex;not null"`
	Currency      string              `json:"currency" gorm:"size:3;not null;default:USD"`
	MonthlyBudget decimal.NullDecimal `json:"monthly_budget" gorm:"type:decimal(12,2)"` // NULL 表示未设置预算
	PhoneNumber   string              `json:"phone_number" gorm:"size:20"`
	DateOfBirth   *time.Time          `json:"date_of_birth" gorm:"type:date"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TableName 设置表名
func (UserProfile) TableName() string {
	return "user_profiles"
}

// HasBudget 是否设置了有效（大于 0）的月度预算
func (p *UserProfile) HasBudget() bool {
	return p != nil && p.MonthlyBudget.Valid && p.MonthlyBudget.Decimal.IsPositive()
}
