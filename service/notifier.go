package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookkeeping/metrics"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

// BudgetMailer 预算提醒邮件
type BudgetMailer interface {
	SendBudgetAlert(to, username string, n *models.Notification) error
}

// TransactionSnapshot 删除前保留的收支记录快照
type TransactionSnapshot struct {
	ID           uint
	Title        string
	Type         models.TransactionType
	Amount       decimal.Decimal
	CategoryName string
}

// SnapshotOf 生成快照，类别已删除时类别名为 "Unknown"
func SnapshotOf(tx *models.Transaction) TransactionSnapshot {
	return TransactionSnapshot{
		ID:           tx.ID,
		Title:        tx.Title,
		Type:         tx.Type,
		Amount:       tx.Amount,
		CategoryName: tx.CategoryName(),
	}
}

// Notifier 通知生成
// 所有入口都由调用方在数据变更后显式调用
type Notifier struct {
	store     Store
	evaluator *BudgetEvaluator
	mailer    BudgetMailer
	log       *slog.Logger
	now       func() time.Time
}

// NewNotifier 创建通知服务
func NewNotifier(store Store, evaluator *BudgetEvaluator, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		store:     store,
		evaluator: evaluator,
		log:       log,
		now:       time.Now,
	}
}

// WithMailer 设置预算提醒邮件发送方
func (n *Notifier) WithMailer(m BudgetMailer) *Notifier {
	n.mailer = m
	return n
}

// ShouldNotify 根据用户偏好判断是否允许在指定渠道发送指定类型的通知
// 用户还没有偏好记录时按默认值创建
func (n *Notifier) ShouldNotify(ctx context.Context, userID uint, ch models.Channel, typ models.NotificationType) (bool, error) {
	pref, err := n.preference(ctx, n.store, userID)
	if err != nil {
		return false, err
	}
	return pref.Allows(ch, typ), nil
}

// Preference 获取用户通知偏好，不存在时按默认值创建
func (n *Notifier) Preference(ctx context.Context, userID uint) (*models.NotificationPreference, error) {
	return n.preference(ctx, n.store, userID)
}

func (n *Notifier) preference(ctx context.Context, st Store, userID uint) (*models.NotificationPreference, error) {
	pref, err := st.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref != nil {
		return pref, nil
	}
	pref = models.DefaultNotificationPreference(userID)
	if err := st.CreatePreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

// Emit 写入一条通知，不检查偏好
func (n *Notifier) Emit(ctx context.Context, userID uint, typ models.NotificationType, title, message string, priority models.Priority, metadata map[string]interface{}) (*models.Notification, error) {
	return n.emit(ctx, n.store, &models.Notification{
		UserID:   userID,
		Type:     typ,
		Title:    title,
		Message:  message,
		Priority: priority,
		Metadata: metadata,
	})
}

func (n *Notifier) emit(ctx context.Context, st Store, notification *models.Notification) (*models.Notification, error) {
	if notification.Metadata == nil {
		notification.Metadata = map[string]interface{}{}
	}
	if err := st.CreateNotification(ctx, notification); err != nil {
		return nil, err
	}
	metrics.RecordNotification(string(notification.Type))
	n.log.Debug("通知已创建",
		"user_id", notification.UserID,
		"type", notification.Type,
		"priority", notification.Priority,
		"notification_id", notification.ID)
	return notification, nil
}

// TransactionCreated 新增收支记录的通知，in_app × transaction 关闭时返回 nil, nil
func (n *Notifier) TransactionCreated(ctx context.Context, tx *models.Transaction) (*models.Notification, error) {
	ok, err := n.ShouldNotify(ctx, tx.UserID, models.ChannelInApp, models.NotificationTransaction)
	if err != nil || !ok {
		return nil, err
	}

	category := tx.CategoryName()
	return n.Emit(ctx, tx.UserID, models.NotificationTransaction,
		fmt.Sprintf("New %s Added", typeTitle(tx.Type)),
		fmt.Sprintf("You've added a %s of %s for %s: %s", tx.Type, tx.Amount.StringFixed(2), category, tx.Title),
		models.PriorityLow,
		map[string]interface{}{
			"transaction_id":   tx.ID,
			"transaction_type": string(tx.Type),
			"amount":           tx.Amount.StringFixed(2),
			"category":         category,
		})
}

// TransactionDeleted 删除收支记录的通知，记录删除前的快照
func (n *Notifier) TransactionDeleted(ctx context.Context, userID uint, snap TransactionSnapshot) (*models.Notification, error) {
	ok, err := n.ShouldNotify(ctx, userID, models.ChannelInApp, models.NotificationTransaction)
	if err != nil || !ok {
		return nil, err
	}

	category := snap.CategoryName
	if category == "" {
		category = "Unknown"
	}
	return n.Emit(ctx, userID, models.NotificationTransaction,
		"Transaction Deleted",
		fmt.Sprintf("Transaction '%s' (%s of %s) has been deleted.", snap.Title, snap.Type, snap.Amount.StringFixed(2)),
		models.PriorityLow,
		map[string]interface{}{
			"deleted_transaction": map[string]interface{}{
				"title":    snap.Title,
				"type":     string(snap.Type),
				"amount":   snap.Amount.StringFixed(2),
				"category": category,
			},
		})
}

// BudgetThreshold 将预算事件转换为通知，in_app × budget 关闭时返回 nil, nil
// 去重已由 EvaluateBudget 完成
func (n *Notifier) BudgetThreshold(ctx context.Context, userID uint, ev *ThresholdEvent) (*models.Notification, error) {
	return n.budgetThreshold(ctx, n.store, userID, ev)
}

func (n *Notifier) budgetThreshold(ctx context.Context, st Store, userID uint, ev *ThresholdEvent) (*models.Notification, error) {
	if ev == nil || ev.Band == BandNone {
		return nil, nil
	}
	pref, err := n.preference(ctx, st, userID)
	if err != nil {
		return nil, err
	}
	if !pref.Allows(models.ChannelInApp, models.NotificationBudget) {
		metrics.RecordBudgetSuppressed(metrics.ReasonPreference)
		return nil, nil
	}
	return n.emit(ctx, st, BudgetNotification(userID, ev))
}

// BudgetNotification 按档位生成预算通知内容
func BudgetNotification(userID uint, ev *ThresholdEvent) *models.Notification {
	budget := ev.MonthlyBudget.StringFixed(2)
	expenses := ev.MonthlyExpenses.StringFixed(2)

	var title, message string
	switch ev.Band {
	case BandExceeded:
		title = "Budget Exceeded!"
		message = fmt.Sprintf("You've exceeded your monthly budget of %s. Current expenses: %s (%s%%)",
			budget, expenses, ev.PercentageUsed.StringFixed(1))
	case BandWarning90:
		title = "Budget Warning: 90% Used"
		message = fmt.Sprintf("You've used 90%% of your monthly budget. Budget: %s, Spent: %s", budget, expenses)
	default:
		title = "Budget Alert: 75% Used"
		message = fmt.Sprintf("You've used 75%% of your monthly budget. Budget: %s, Spent: %s", budget, expenses)
	}

	return &models.Notification{
		UserID:   userID,
		Type:     models.NotificationBudget,
		Title:    title,
		Message:  message,
		Priority: ev.Band.Priority(),
		Metadata: map[string]interface{}{
			"budget":     budget,
			"expenses":   expenses,
			"percentage": ev.PercentageUsed.InexactFloat64(),
			"status":     string(ev.Band),
		},
	}
}

// Welcome 新用户欢迎通知，不受偏好控制
func (n *Notifier) Welcome(ctx context.Context, userID uint) (*models.Notification, error) {
	return n.Emit(ctx, userID, models.NotificationSystem,
		"Welcome to Expense Tracker!",
		"Welcome! Start tracking your expenses and income to better manage your finances. Add your first transaction to get started.",
		models.PriorityMedium,
		map[string]interface{}{"welcome": true, "onboarding": true})
}

// CheckBudget 在一个事务内锁定用户资料行、评估预算并写入通知
// 并发写入时后提交的一方会看到先写入的通知而不再提醒
func (n *Notifier) CheckBudget(ctx context.Context, userID uint, asOf time.Time) (*models.Notification, error) {
	var (
		created *models.Notification
		pref    *models.NotificationPreference
	)
	err := n.store.InTx(ctx, func(tx Store) error {
		profile, err := tx.GetProfile(ctx, userID, true)
		if err != nil {
			return err
		}
		ev, err := n.evaluator.WithStore(tx).evaluate(ctx, userID, profile, asOf)
		if err != nil || ev == nil {
			return err
		}
		created, err = n.budgetThreshold(ctx, tx, userID, ev)
		if err != nil || created == nil {
			return err
		}
		pref, err = tx.GetPreference(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("预算检查失败: %w", err)
	}

	if created != nil && pref != nil {
		n.mailBudgetAlert(ctx, userID, pref, created, asOf)
	}
	return created, nil
}

func (n *Notifier) mailBudgetAlert(ctx context.Context, userID uint, pref *models.NotificationPreference, notification *models.Notification, asOf time.Time) {
	if n.mailer == nil || !pref.Allows(models.ChannelEmail, models.NotificationBudget) || pref.InQuietHours(asOf) {
		return
	}
	user, err := n.store.GetUser(ctx, userID)
	if err != nil {
		n.log.Warn("查询用户邮箱失败", "user_id", userID, "error", err)
		return
	}
	if user.Email == "" {
		return
	}
	if err := n.mailer.SendBudgetAlert(user.Email, user.Username, notification); err != nil {
		n.log.Warn("发送预算提醒邮件失败", "user_id", userID, "error", err)
	}
}

// AfterTransactionCreated 新增收支记录后的通知与预算检查，错误只记录日志
func (n *Notifier) AfterTransactionCreated(ctx context.Context, tx *models.Transaction) {
	if _, err := n.TransactionCreated(ctx, tx); err != nil {
		n.log.Error("创建收支通知失败", "user_id", tx.UserID, "transaction_id", tx.ID, "error", err)
	}
	n.AfterBudgetInputsChanged(ctx, tx.UserID)
}

// AfterTransactionDeleted 删除收支记录后的通知与预算检查，错误只记录日志
func (n *Notifier) AfterTransactionDeleted(ctx context.Context, userID uint, snap TransactionSnapshot) {
	if _, err := n.TransactionDeleted(ctx, userID, snap); err != nil {
		n.log.Error("创建删除通知失败", "user_id", userID, "transaction_id", snap.ID, "error", err)
	}
	n.AfterBudgetInputsChanged(ctx, userID)
}

// AfterBudgetInputsChanged 月度支出或预算变化后重新评估预算，错误只记录日志
func (n *Notifier) AfterBudgetInputsChanged(ctx context.Context, userID uint) {
	if _, err := n.CheckBudget(ctx, userID, n.now()); err != nil {
		n.log.Error("预算检查失败", "user_id", userID, "error", err)
	}
}

func typeTitle(t models.TransactionType) string {
	s := string(t)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
