package models

import (
	"time"

	"gorm.io/gorm"
)

// Category 收支类别，归属于用户
// 同一用户下 (name, type) 唯一
type Category struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"not null;uniqueIndex:idx_category_user_name_type,priority:1"`
	Name        string          `json:"name" gorm:"size:100;not null;uniqueIndex:idx_category_user_name_type,priority:2"`
	Type        TransactionType `json:"type" gorm:"size:7;not null;uniqueIndex:idx_category_user_name_type,priority:3"`
	Icon        string          `json:"icon" gorm:"size:10;default:'📋'"`
	Color       string          `json:"color" gorm:"size:7;default:#6B7280"`
	Description string          `json:"description" gorm:"type:text"`
	IsActive    bool            `json:"is_active" gorm:"default:true;index"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (Category) TableName() string {
	return "categories"
}

// DefaultCategory 默认类别模板
type DefaultCategory struct {
	Name  string
	Type  TransactionType
	Icon  string
	Color string
}

// GetDefaultCategories 新用户的默认类别
func GetDefaultCategories() []DefaultCategory {
	return []DefaultCategory{
		{"Food & Dining", TransactionExpense, "🍔", "#FF6B6B"},
		{"Transportation", TransactionExpense, "🚗", "#4ECDC4"},
		{"Shopping", TransactionExpense, "🛍️", "#45B7D1"},
		{"Entertainment", TransactionExpense, "🎬", "#FFA07A"},
		{"Bills & Utilities", TransactionExpense, "📄", "#98D8C8"},
		{"Healthcare", TransactionExpense, "🏥", "#F7DC6F"},
		{"Education", TransactionExpense, "📚", "#BB8FCE"},
		{"Travel", TransactionExpense, "✈️", "#85C1E9"},
		{"Salary", TransactionIncome, "💰", "#58D68D"},
		{"Freelance", TransactionIncome, "💻", "#5DADE2"},
		{"Investment", TransactionIncome, "📈", "#F8C471"},
		{"Business", TransactionIncome, "🏢", "#AF7AC5"},
		{"Gift", TransactionIncome, "🎁", "#F1948A"},
		{"Other Income", TransactionIncome, "💡", "#82E0AA"},
	}
}
