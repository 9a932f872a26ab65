package service

import (
	"context"
	"time"

	"bookkeeping/metrics"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

// DefaultDedupWindow 预算提醒去重窗口
const DefaultDedupWindow = 24 * time.Hour

// Band 预算消耗档位
type Band string

const (
	BandNone      Band = "none"
	BandAlert75   Band = "alert_75"
	BandWarning90 Band = "warning_90"
	BandExceeded  Band = "exceeded"
)

// 由高到低匹配，命中即返回
var bandThresholds = []struct {
	band    Band
	percent int64
}{
	{BandExceeded, 100},
	{BandWarning90, 90},
	{BandAlert75, 75},
}

// Priority 档位对应的通知优先级
func (b Band) Priority() models.Priority {
	switch b {
	case BandExceeded:
		return models.PriorityHigh
	case BandWarning90:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// ClassifyBand 按 expenses*100 与 budget*阈值 精确比较，预算不大于 0 时返回 BandNone
func ClassifyBand(expenses, budget decimal.Decimal) Band {
	if !budget.IsPositive() {
		return BandNone
	}
	scaled := expenses.Mul(decimal.NewFromInt(100))
	for _, t := range bandThresholds {
		if scaled.GreaterThanOrEqual(budget.Mul(decimal.NewFromInt(t.percent))) {
			return t.band
		}
	}
	return BandNone
}

// PercentageUsed 预算使用百分比，保留两位小数
func PercentageUsed(expenses, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	return expenses.Mul(decimal.NewFromInt(100)).Div(budget).Round(2)
}

// MonthBounds asOf 所在自然月的 [月初, 下月初)
func MonthBounds(asOf time.Time) (time.Time, time.Time) {
	start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	return start, start.AddDate(0, 1, 0)
}

// ThresholdEvent 预算档位事件
type ThresholdEvent struct {
	Band            Band            `json:"band"`
	PercentageUsed  decimal.Decimal `json:"percentage_used"`
	MonthlyExpenses decimal.Decimal `json:"monthly_expenses"`
	MonthlyBudget   decimal.Decimal `json:"monthly_budget"`
	AsOf            time.Time       `json:"as_of"`
}

// BudgetEvaluator 月度预算评估
type BudgetEvaluator struct {
	store  Store
	window time.Duration
}

// NewBudgetEvaluator 创建预算评估器，window <= 0 时使用 24 小时
func NewBudgetEvaluator(store Store, window time.Duration) *BudgetEvaluator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &BudgetEvaluator{store: store, window: window}
}

// WithStore 返回使用另一个 Store（通常是事务）的评估器
func (e *BudgetEvaluator) WithStore(store Store) *BudgetEvaluator {
	return &BudgetEvaluator{store: store, window: e.window}
}

// Window 去重窗口
func (e *BudgetEvaluator) Window() time.Duration {
	return e.window
}

// EvaluateBudget 评估 asOf 所在月份的预算使用情况
// 未设置预算、未达到 75%、或窗口内已有预算通知时返回 nil, nil
func (e *BudgetEvaluator) EvaluateBudget(ctx context.Context, userID uint, asOf time.Time) (*ThresholdEvent, error) {
	profile, err := e.store.GetProfile(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, userID, profile, asOf)
}

func (e *BudgetEvaluator) evaluate(ctx context.Context, userID uint, profile *models.UserProfile, asOf time.Time) (*ThresholdEvent, error) {
	if !profile.HasBudget() {
		metrics.RecordBudgetSuppressed(metrics.ReasonNoBudget)
		return nil, nil
	}
	budget := profile.MonthlyBudget.Decimal

	from, to := MonthBounds(asOf)
	expenses, err := e.store.SumExpenses(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	band := ClassifyBand(expenses, budget)
	if band == BandNone {
		metrics.RecordBudgetSuppressed(metrics.ReasonBelowBand)
		return nil, nil
	}

	// 窗口内任意档位的预算通知都会抑制本次提醒
	recent, err := e.store.HasNotificationSince(ctx, userID, models.NotificationBudget, asOf.Add(-e.window))
	if err != nil {
		return nil, err
	}
	if recent {
		metrics.RecordBudgetSuppressed(metrics.ReasonDeduplicated)
		return nil, nil
	}

	return &ThresholdEvent{
		Band:            band,
		PercentageUsed:  PercentageUsed(expenses, budget),
		MonthlyExpenses: expenses,
		MonthlyBudget:   budget,
		AsOf:            asOf,
	}, nil
}
