package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotificationTransaction NotificationType = "transaction"
	NotificationBudget      NotificationType = "budget"
	NotificationReminder    NotificationType = "reminder"
	NotificationSystem      NotificationType = "system"
	NotificationAchievement NotificationType = "achievement"
	NotificationSecurity    NotificationType = "security"
)

// NotificationTypes 全部通知类型，顺序即展示顺序
var NotificationTypes = []NotificationType{
	NotificationTransaction,
	NotificationBudget,
	NotificationReminder,
	NotificationSystem,
	NotificationAchievement,
	NotificationSecurity,
}

// Valid 是否为合法的通知类型
func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Priority 通知优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities 全部优先级，由低到高
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid 是否为合法的优先级
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

// Notification 站内通知
// 创建后只允许修改已读/归档标记或删除
type Notification struct {
	ID         uint                   `json:"id" gorm:"primaryKey"`
	UserID     uint                   `json:"user_id" gorm:"not null;index:idx_notification_user_type_created,priority:1"`
	Title      string                 `json:"title" gorm:"size:200;not null"`
	Message    string                 `json:"message" gorm:"type:text;not null"`
	Type       NotificationType       `json:"type" gorm:"size:20;not null;default:system;index:idx_notification_user_type_created,priority:2"`
	Priority   Priority               `json:"priority" gorm:"size:10;not null;default:medium"`
	IsRead     bool                   `json:"is_read" gorm:"default:false;index"`
	ReadAt     *time.Time             `json:"read_at"`
	IsArchived bool                   `json:"is_archived" gorm:"default:false"`
	ActionURL  string                 `json:"action_url" gorm:"size:500"`
	Metadata   map[string]interface{} `json:"metadata" gorm:"serializer:json;type:json"`
	ExpiresAt  *time.Time             `json:"expires_at"`
	CreatedAt  time.Time              `json:"created_at" gorm:"index:idx_notification_user_type_created,priority:3"`
	UpdatedAt  time.Time              `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Notification) TableName() string {
	return "notifications"
}

// IsExpired 是否已过期，过期只影响默认列表，不会自动删除
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// MarkRead 标记为已读
func (n *Notification) MarkRead(now time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &now
}

// MarkUnread 标记为未读，同时清空已读时间
func (n *Notification) MarkUnread() {
	n.IsRead = false
	n.ReadAt = nil
}

// BeforeCreate 补全默认值
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.Type == "" {
		n.Type = NotificationSystem
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	return nil
}
