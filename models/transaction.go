package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType 收支类型
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid 是否为合法的收支类型
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Transaction 收支记录
type Transaction struct {
	ID          uint                   `json:"id" gorm:"primaryKey"`
	UserID      uint                   `json:"user_id" gorm:"not null;index:idx_transaction_user_date,priority:1"`
	Title       string                 `json:"title" gorm:"size:200;not null"`
	Description string                 `json:"description" gorm:"type:text"`
	Amount      decimal.Decimal        `json:"amount" gorm:"type:decimal(12,2);not null"`
	Type        TransactionType        `json:"type" gorm:"size:7;not null;index"`
	CategoryID  uint                   `json:"category_id" gorm:"not null;index"`
	Date        time.Time              `json:"date" gorm:"type:date;not null;index:idx_transaction_user_date,priority:2"`
	Metadata    map[string]interface{} `json:"metadata" gorm:"serializer:json;type:json"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	User     User      `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Transaction) TableName() string {
	return "transactions"
}

// CategoryName 返回类别名称，类别已被删除时返回 "Unknown"
func (t *Transaction) CategoryName() string {
	if t.Category == nil || t.Category.DeletedAt.Valid {
		return "Unknown"
	}
	return t.Category.Name
}

// DB 钩子仅做字段规整，业务副作用由调用方显式触发
func (t *Transaction) BeforeSave(tx *gorm.DB) error {
	t.Date = time.Date(t.Date.Year(), t.Date.Month(), t.Date.Day(), 0, 0, 0, 0, t.Date.Location())
	return nil
}
