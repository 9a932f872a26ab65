package service

import (
	"log/slog"

	"bookkeeping/config"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services 接口层使用的核心服务集合
type Services struct {
	Store     *GormStore
	Summaries *SummaryService
	Evaluator *BudgetEvaluator
	Notifier  *Notifier
}

// NewServices 组装核心服务，rdb 为 nil 时不启用汇总缓存
func NewServices(db *gorm.DB, cfg *config.Config, rdb *redis.Client, log *slog.Logger) *Services {
	if log == nil {
		log = slog.Default()
	}

	var (
		window   = DefaultDedupWindow
		cacheTTL = defaultSummaryCacheTTL
	)
	if cfg != nil {
		window = cfg.Budget.DedupWindow
		if cfg.Budget.SummaryCacheTTL > 0 {
			cacheTTL = cfg.Budget.SummaryCacheTTL
		}
	}

	store := NewGormStore(db)
	evaluator := NewBudgetEvaluator(store, window)
	notifier := NewNotifier(store, evaluator, log.With("component", "notifier"))
	if cfg != nil && cfg.Email.Enabled {
		notifier.WithMailer(NewEmailService(&cfg.Email))
	}

	var cache *SummaryCache
	if rdb != nil {
		cache = NewSummaryCache(rdb, cacheTTL)
	}

	return &Services{
		Store:     store,
		Summaries: NewSummaryService(store, cache, log.With("component", "summary")),
		Evaluator: evaluator,
		Notifier:  notifier,
	}
}
