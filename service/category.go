package service

import (
	"context"
	"fmt"

	"bookkeeping/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValidateTransactionCategory 收支记录的类型必须与类别类型一致，且类别处于启用状态
func ValidateTransactionCategory(cat *models.Category, typ models.TransactionType) error {
	var errs ValidationErrors
	if !typ.Valid() {
		errs = append(errs, NewValidationError("type", "类型必须为 income 或 expense"))
	}
	switch {
	case cat == nil:
		errs = append(errs, NewValidationError("category_id", "类别不存在"))
	case !cat.IsActive:
		errs = append(errs, NewValidationError("category_id", "类别已停用"))
	case typ.Valid() && cat.Type != typ:
		errs = append(errs, NewValidationError("category_id",
			fmt.Sprintf("类别 %q 的类型为 %s，与记录类型 %s 不一致", cat.Name, cat.Type, typ)))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SeedDefaultCategories 为用户补齐默认类别，已存在的同名同类型类别保持不变
// 返回新建的数量
func SeedDefaultCategories(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	defaults := models.GetDefaultCategories()
	cats := make([]models.Category, 0, len(defaults))
	for _, d := range defaults {
		cats = append(cats, models.Category{
			UserID:   userID,
			Name:     d.Name,
			Type:     d.Type,
			Icon:     d.Icon,
			Color:    d.Color,
			IsActive: true,
		})
	}

	result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cats)
	if result.Error != nil {
		return 0, fmt.Errorf("初始化默认类别失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
