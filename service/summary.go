package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"bookkeeping/metrics"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

// DateLayout 接口层统一的日期格式
const DateLayout = "2006-01-02"

// recentLimit 汇总中最近记录的条数
const recentLimit = 5

// DateRange 闭区间日期过滤，Start/End 为 nil 表示不限
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// ParseDateRange 解析 YYYY-MM-DD 格式的起止日期，空字符串表示不限
func ParseDateRange(start, end string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.Local
	}
	var (
		r    DateRange
		errs ValidationErrors
	)
	if start != "" {
		t, err := time.ParseInLocation(DateLayout, start, loc)
		if err != nil {
			errs = append(errs, NewValidationError("start_date", "日期格式错误，应为 YYYY-MM-DD"))
		} else {
			r.Start = &t
		}
	}
	if end != "" {
		t, err := time.ParseInLocation(DateLayout, end, loc)
		if err != nil {
			errs = append(errs, NewValidationError("end_date", "日期格式错误，应为 YYYY-MM-DD"))
		} else {
			r.End = &t
		}
	}
	if len(errs) > 0 {
		return DateRange{}, errs
	}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate 起始日期不能晚于结束日期
func (r DateRange) Validate() error {
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return NewValidationError("date_range", "开始日期不能晚于结束日期")
	}
	return nil
}

// Contains 判断日期是否落在区间内（按日历日比较）
func (r DateRange) Contains(d time.Time) bool {
	day := d.Format(DateLayout)
	if r.Start != nil && day < r.Start.Format(DateLayout) {
		return false
	}
	if r.End != nil && day > r.End.Format(DateLayout) {
		return false
	}
	return true
}

// Echo 以字符串形式回显区间
func (r DateRange) Echo() DateRangeEcho {
	var e DateRangeEcho
	if r.Start != nil {
		s := r.Start.Format(DateLayout)
		e.StartDate = &s
	}
	if r.End != nil {
		s := r.End.Format(DateLayout)
		e.EndDate = &s
	}
	return e
}

// DateRangeEcho 汇总响应中回显的日期区间
type DateRangeEcho struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// CategoryTotal 按类别汇总
type CategoryTotal struct {
	CategoryName string                 `json:"category_name"`
	CategoryType models.TransactionType `json:"category_type"`
	Total        decimal.Decimal        `json:"total"`
	Count        int                    `json:"count"`
}

// MonthTotal 按月汇总
type MonthTotal struct {
	Month    string          `json:"month"` // YYYY-MM
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

// Summary 收支汇总
type Summary struct {
	TotalIncome         decimal.Decimal      `json:"total_income"`
	TotalExpenses       decimal.Decimal      `json:"total_expenses"`
	Balance             decimal.Decimal      `json:"balance"`
	TotalTransactions   int                  `json:"total_transactions"`
	IncomeTransactions  int                  `json:"income_transactions"`
	ExpenseTransactions int                  `json:"expense_transactions"`
	RecentTransactions  []models.Transaction `json:"recent_transactions"`
	CategoryBreakdown   []CategoryTotal      `json:"category_breakdown"`
	MonthlyBreakdown    []MonthTotal         `json:"monthly_breakdown"`
	DateRange           DateRangeEcho        `json:"date_range"`
}

// SummaryRow 按 (月份, 类别名, 类型) 分组后的合计
type SummaryRow struct {
	Month        string                 `gorm:"column:month"` // YYYY-MM
	CategoryName string                 `gorm:"column:category_name"`
	Type         models.TransactionType `gorm:"column:type"`
	Total        decimal.Decimal        `gorm:"column:total"`
	Count        int                    `gorm:"column:count"`
}

// AggregateTransactions 在内存中分组，结果与 GormStore.SummaryRows 的 GROUP BY 一致
// 区间外和类型非法的记录会被忽略
func AggregateTransactions(txs []models.Transaction, r DateRange) []SummaryRow {
	type rowKey struct {
		month string
		name  string
		typ   models.TransactionType
	}
	index := make(map[rowKey]int)
	var rows []SummaryRow
	for _, tx := range txs {
		if !tx.Type.Valid() || !r.Contains(tx.Date) {
			continue
		}
		key := rowKey{month: tx.Date.Format("2006-01"), name: tx.CategoryName(), typ: tx.Type}
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, SummaryRow{Month: key.month, CategoryName: key.name, Type: key.typ, Total: decimal.Zero})
		}
		rows[i].Total = rows[i].Total.Add(tx.Amount)
		rows[i].Count++
	}
	return rows
}

// LatestTransactions 区间内最近的 limit 条记录
// 按日期倒序，同日按创建时间倒序，再按 ID 倒序
func LatestTransactions(txs []models.Transaction, r DateRange, limit int) []models.Transaction {
	matched := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Type.Valid() && r.Contains(tx.Date) {
			matched = append(matched, tx)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// BuildSummary 对给定收支记录做汇总，不访问存储
// 区间外的记录会被忽略
func BuildSummary(txs []models.Transaction, r DateRange) *Summary {
	return AssembleSummary(AggregateTransactions(txs, r), LatestTransactions(txs, r, recentLimit), r)
}

// AssembleSummary 由分组合计与最近记录组装汇总结果
func AssembleSummary(rows []SummaryRow, recent []models.Transaction, r DateRange) *Summary {
	s := &Summary{
		TotalIncome:        decimal.Zero,
		TotalExpenses:      decimal.Zero,
		RecentTransactions: []models.Transaction{},
		CategoryBreakdown:  []CategoryTotal{},
		MonthlyBreakdown:   []MonthTotal{},
		DateRange:          r.Echo(),
	}

	type categoryKey struct {
		name string
		typ  models.TransactionType
	}
	byCategory := make(map[categoryKey]*CategoryTotal)
	byMonth := make(map[string]*MonthTotal)

	for _, row := range rows {
		if !row.Type.Valid() {
			continue
		}

		mt, ok := byMonth[row.Month]
		if !ok {
			mt = &MonthTotal{Month: row.Month, Income: decimal.Zero, Expenses: decimal.Zero}
			byMonth[row.Month] = mt
		}

		switch row.Type {
		case models.TransactionIncome:
			s.TotalIncome = s.TotalIncome.Add(row.Total)
			s.IncomeTransactions += row.Count
			mt.Income = mt.Income.Add(row.Total)
		case models.TransactionExpense:
			s.TotalExpenses = s.TotalExpenses.Add(row.Total)
			s.ExpenseTransactions += row.Count
			mt.Expenses = mt.Expenses.Add(row.Total)
		}

		key := categoryKey{name: row.CategoryName, typ: row.Type}
		ct, ok := byCategory[key]
		if !ok {
			ct = &CategoryTotal{CategoryName: key.name, CategoryType: key.typ, Total: decimal.Zero}
			byCategory[key] = ct
		}
		ct.Total = ct.Total.Add(row.Total)
		ct.Count += row.Count
	}

	s.TotalTransactions = s.IncomeTransactions + s.ExpenseTransactions
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)

	for _, ct := range byCategory {
		s.CategoryBreakdown = append(s.CategoryBreakdown, *ct)
	}
	sort.Slice(s.CategoryBreakdown, func(i, j int) bool {
		a, b := s.CategoryBreakdown[i], s.CategoryBreakdown[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		if a.CategoryName != b.CategoryName {
			return a.CategoryName < b.CategoryName
		}
		return a.CategoryType < b.CategoryType
	})

	for _, mt := range byMonth {
		mt.Balance = mt.Income.Sub(mt.Expenses)
		s.MonthlyBreakdown = append(s.MonthlyBreakdown, *mt)
	}
	sort.Slice(s.MonthlyBreakdown, func(i, j int) bool {
		return s.MonthlyBreakdown[i].Month < s.MonthlyBreakdown[j].Month
	})

	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	s.RecentTransactions = append(s.RecentTransactions, recent...)

	return s
}

// SummaryService 收支汇总
type SummaryService struct {
	store Store
	cache *SummaryCache
	log   *slog.Logger
}

// NewSummaryService 创建汇总服务，cache 可以为 nil
func NewSummaryService(store Store, cache *SummaryCache, log *slog.Logger) *SummaryService {
	if log == nil {
		log = slog.Default()
	}
	return &SummaryService{store: store, cache: cache, log: log}
}

// Summarize 汇总用户在区间内的收支，没有记录时返回全零结果
func (s *SummaryService) Summarize(ctx context.Context, userID uint, r DateRange) (*Summary, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID, r)
		switch {
		case err != nil:
			metrics.RecordSummaryCache(metrics.CacheError)
			s.log.Warn("读取汇总缓存失败", "user_id", userID, "error", err)
		case cached != nil:
			metrics.RecordSummaryCache(metrics.CacheHit)
			return cached, nil
		default:
			metrics.RecordSummaryCache(metrics.CacheMiss)
		}
	}

	// 合计与分组在数据库中完成，只有最近几条记录会整行读出
	rows, err := s.store.SummaryRows(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentTransactions(ctx, userID, r, recentLimit)
	if err != nil {
		return nil, err
	}
	summary := AssembleSummary(rows, recent, r)

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, r, summary); err != nil {
			s.log.Warn("写入汇总缓存失败", "user_id", userID, "error", err)
		}
	}
	return summary, nil
}

// Invalidate 用户数据变更后使汇总缓存失效
func (s *SummaryService) Invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("清理汇总缓存失败", "user_id", userID, "error", err)
	}
}
