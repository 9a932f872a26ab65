package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 汇总、预算评估与通知所需的数据访问
type Store interface {
	// ListTransactions 按日期倒序返回用户在区间内的收支记录，类别已删除的记录同样返回
	ListTransactions(ctx context.Context, userID uint, r DateRange) ([]models.Transaction, error)
	// SummaryRows 按 (月份, 类别名, 类型) 分组统计区间内的收支
	SummaryRows(ctx context.Context, userID uint, r DateRange) ([]SummaryRow, error)
	// RecentTransactions 区间内最近的 limit 条记录
	RecentTransactions(ctx context.Context, userID uint, r DateRange, limit int) ([]models.Transaction, error)
	// SumExpenses 统计 [from, to) 内的支出总额
	SumExpenses(ctx context.Context, userID uint, from, to time.Time) (decimal.Decimal, error)
	// GetProfile 获取用户资料，不存在时返回 nil, nil；lock 为 true 时加行锁
	GetProfile(ctx context.Context, userID uint, lock bool) (*models.UserProfile, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	// HasNotificationSince 是否存在 created_at 严格晚于 since 的指定类型通知
	HasNotificationSince(ctx context.Context, userID uint, typ models.NotificationType, since time.Time) (bool, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	// GetPreference 获取通知偏好，不存在时返回 nil, nil
	GetPreference(ctx context.Context, userID uint) (*models.NotificationPreference, error)
	CreatePreference(ctx context.Context, p *models.NotificationPreference) error
	// InTx 在同一个数据库事务中执行 fn
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// GormStore 基于 gorm 的 Store 实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// transactionQuery 用户在区间内的收支记录，类别按 Unscoped 预加载
func (s *GormStore) transactionQuery(ctx context.Context, userID uint, r DateRange) *gorm.DB {
	query := s.db.WithContext(ctx).
		Preload("Category", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("user_id = ?", userID)
	if r.Start != nil {
		query = query.Where("date >= ?", *r.Start)
	}
	if r.End != nil {
		query = query.Where("date <= ?", *r.End)
	}
	return query
}

func (s *GormStore) ListTransactions(ctx context.Context, userID uint, r DateRange) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := s.transactionQuery(ctx, userID, r).Order("date DESC, created_at DESC").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("查询收支记录失败: %w", err)
	}
	return txs, nil
}

func (s *GormStore) RecentTransactions(ctx context.Context, userID uint, r DateRange, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.transactionQuery(ctx, userID, r).
		Where("type IN ?", []models.TransactionType{models.TransactionIncome, models.TransactionExpense}).
		Order("date DESC, created_at DESC, id DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("查询最近收支记录失败: %w", err)
	}
	return txs, nil
}

func (s *GormStore) SummaryRows(ctx context.Context, userID uint, r DateRange) ([]SummaryRow, error) {
	query := s.db.WithContext(ctx).Table("transactions AS t").
		Select("DATE_FORMAT(t.date, '%Y-%m') AS month, " +
			"CASE WHEN c.id IS NULL OR c.deleted_at IS NOT NULL THEN 'Unknown' ELSE c.name END AS category_name, " +
			"t.type AS type, COALESCE(SUM(t.amount), 0) AS total, COUNT(*) AS count").
		Joins("LEFT JOIN categories c ON c.id = t.category_id").
		Where("t.user_id = ? AND t.type IN ?", userID, []models.TransactionType{models.TransactionIncome, models.TransactionExpense})
	if r.Start != nil {
		query = query.Where("t.date >= ?", *r.Start)
	}
	if r.End != nil {
		query = query.Where("t.date <= ?", *r.End)
	}

	var rows []SummaryRow
	if err := query.Group("month, category_name, t.type").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("统计收支汇总失败: %w", err)
	}
	return rows, nil
}

func (s *GormStore) SumExpenses(ctx context.Context, userID uint, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("SUM(amount)").
		Where("user_id = ? AND type = ? AND date >= ? AND date < ?", userID, models.TransactionExpense, from, to).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("统计月度支出失败: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *GormStore) GetProfile(ctx context.Context, userID uint, lock bool) (*models.UserProfile, error) {
	query := s.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var profile models.UserProfile
	if err := query.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户资料失败: %w", err)
	}
	return &profile, nil
}

func (s *GormStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

func (s *GormStore) HasNotificationSince(ctx context.Context, userID uint, typ models.NotificationType, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND type = ? AND created_at > ?", userID, typ, since).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询历史通知失败: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("创建通知失败: %w", err)
	}
	return nil
}

func (s *GormStore) GetPreference(ctx context.Context, userID uint) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询通知偏好失败: %w", err)
	}
	return &pref, nil
}

func (s *GormStore) CreatePreference(ctx context.Context, p *models.NotificationPreference) error {
	// 并发首次访问时以已存在的记录为准
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("创建通知偏好失败: %w", err)
	}
	return nil
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
