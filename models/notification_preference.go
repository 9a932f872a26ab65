package models

import (
	"time"
)

// Channel 通知渠道
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Channels 全部渠道
var Channels = []Channel{ChannelEmail, ChannelPush, ChannelInApp}

// PreferenceKey 渠道 × 通知类型
type PreferenceKey struct {
	Channel Channel
	Type    NotificationType
}

// NotificationPreference 用户通知偏好，每个用户一条
type NotificationPreference struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"uniqueIndex;not null"`

	EmailEnabled     bool `json:"email_enabled" gorm:"default:true"`
	EmailTransaction bool `json:"email_transaction" gorm:"default:true"`
	EmailBudget      bool `json:"email_budget" gorm:"default:true"`
	EmailReminder    bool `json:"email_reminder" gorm:"default:true"`
	EmailSystem      bool `json:"email_system" gorm:"default:true"`
	EmailAchievement bool `json:"email_achievement" gorm:"default:true"`
	EmailSecurity    bool `json:"email_security" gorm:"default:true"`

	PushEnabled     bool `json:"push_enabled" gorm:"default:true"`
	PushTransaction bool `json:"push_transaction" gorm:"default:true"`
	PushBudget      bool `json:"push_budget" gorm:"default:true"`
	PushReminder    bool `json:"push_reminder" gorm:"default:true"`
	PushSystem      bool `json:"push_system" gorm:"default:false"`
	PushAchievement bool `json:"push_achievement" gorm:"default:true"`
	PushSecurity    bool `json:"push_security" gorm:"default:true"`

	InAppEnabled     bool `json:"in_app_enabled" gorm:"default:true"`
	InAppTransaction bool `json:"in_app_transaction" gorm:"default:true"`
	InAppBudget      bool `json:"in_app_budget" gorm:"default:true"`
	InAppReminder    bool `json:"in_app_reminder" gorm:"default:true"`
	InAppSystem      bool `json:"in_app_system" gorm:"default:true"`
	InAppAchievement bool `json:"in_app_achievement" gorm:"default:true"`
	InAppSecurity    bool `json:"in_app_security" gorm:"default:true"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled" gorm:"default:false"`
	QuietHoursStart   string `json:"quiet_hours_start" gorm:"size:5;default:22:00"` // HH:MM
	QuietHoursEnd     string `json:"quiet_hours_end" gorm:"size:5;default:08:00"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 设置表名
func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// DefaultNotificationPreference 默认偏好：除 push × system 外全部开启
func DefaultNotificationPreference(userID uint) *NotificationPreference {
	p := &NotificationPreference{
		UserID:          userID,
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "08:00",
	}
	for _, ch := range Channels {
		*p.enabledField(ch) = true
		for _, t := range NotificationTypes {
			*p.flagField(ch, t) = true
		}
	}
	p.PushSystem = false
	return p
}

type flagAccessor func(p *NotificationPreference) *bool

var (
	enabledFields = map[Channel]flagAccessor{
		ChannelEmail: func(p *NotificationPreference) *bool { return &p.EmailEnabled },
		ChannelPush:  func(p *NotificationPreference) *bool { return &p.PushEnabled },
		ChannelInApp: func(p *NotificationPreference) *bool { return &p.InAppEnabled },
	}

	flagFields = map[PreferenceKey]flagAccessor{
		{ChannelEmail, NotificationTransaction}: func(p *NotificationPreference) *bool { return &p.EmailTransaction },
		{ChannelEmail, NotificationBudget}:      func(p *NotificationPreference) *bool { return &p.EmailBudget },
		{ChannelEmail, NotificationReminder}:    func(p *NotificationPreference) *bool { return &p.EmailReminder },
		{ChannelEmail, NotificationSystem}:      func(p *NotificationPreference) *bool { return &p.EmailSystem },
		{ChannelEmail, NotificationAchievement}: func(p *NotificationPreference) *bool { return &p.EmailAchievement },
		{ChannelEmail, NotificationSecurity}:    func(p *NotificationPreference) *bool { return &p.EmailSecurity },

		{ChannelPush, NotificationTransaction}: func(p *NotificationPreference) *bool { return &p.PushTransaction },
		{ChannelPush, NotificationBudget}:      func(p *NotificationPreference) *bool { return &p.PushBudget },
		{ChannelPush, NotificationReminder}:    func(p *NotificationPreference) *bool { return &p.PushReminder },
		{ChannelPush, NotificationSystem}:      func(p *NotificationPreference) *bool { return &p.PushSystem },
		{ChannelPush, NotificationAchievement}: func(p *NotificationPreference) *bool { return &p.PushAchievement },
		{ChannelPush, NotificationSecurity}:    func(p *NotificationPreference) *bool { return &p.PushSecurity },

		{ChannelInApp, NotificationTransaction}: func(p *NotificationPreference) *bool { return &p.InAppTransaction },
		{ChannelInApp, NotificationBudget}:      func(p *NotificationPreference) *bool { return &p.InAppBudget },
		{ChannelInApp, NotificationReminder}:    func(p *NotificationPreference) *bool { return &p.InAppReminder },
		{ChannelInApp, NotificationSystem}:      func(p *NotificationPreference) *bool { return &p.InAppSystem },
		{ChannelInApp, NotificationAchievement}: func(p *NotificationPreference) *bool { return &p.InAppAchievement },
		{ChannelInApp, NotificationSecurity}:    func(p *NotificationPreference) *bool { return &p.InAppSecurity },
	}
)

func (p *NotificationPreference) enabledField(ch Channel) *bool {
	if f, ok := enabledFields[ch]; ok {
		return f(p)
	}
	return new(bool)
}

func (p *NotificationPreference) flagField(ch Channel, t NotificationType) *bool {
	if f, ok := flagFields[PreferenceKey{ch, t}]; ok {
		return f(p)
	}
	return new(bool)
}

// Flags 渠道 × 类型 的开关快照（不含渠道总开关）
func (p *NotificationPreference) Flags() map[PreferenceKey]bool {
	flags := make(map[PreferenceKey]bool, len(flagFields))
	for key, f := range flagFields {
		flags[key] = *f(p)
	}
	return flags
}

// ChannelEnabled 渠道总开关
func (p *NotificationPreference) ChannelEnabled(ch Channel) bool {
	return *p.enabledField(ch)
}

// Allows 渠道总开关与类型开关同时开启才允许发送
// 未知的渠道或类型一律返回 false
func (p *NotificationPreference) Allows(ch Channel, t NotificationType) bool {
	return p.ChannelEnabled(ch) && *p.flagField(ch, t)
}

// Set 修改某个渠道 × 类型的开关，未知组合返回 false
func (p *NotificationPreference) Set(ch Channel, t NotificationType, on bool) bool {
	f, ok := flagFields[PreferenceKey{ch, t}]
	if !ok {
		return false
	}
	*f(p) = on
	return true
}

// InQuietHours 判断 now 是否处于免打扰时段，支持跨零点（如 22:00-08:00）
func (p *NotificationPreference) InQuietHours(now time.Time) bool {
	if !p.QuietHoursEnabled {
		return false
	}
	start, err1 := time.Parse("15:04", p.QuietHoursStart)
	end, err2 := time.Parse("15:04", p.QuietHoursEnd)
	if err1 != nil || err2 != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	if s == e {
		return false
	}
	if s < e {
		return cur >= s && cur < e
	}
	return cur >= s || cur < e
}

// ApplyFlag 按字段名（如 in_app_budget、email_enabled）修改开关，未知字段返回 false
func (p *NotificationPreference) ApplyFlag(name string, on bool) bool {
	for _, ch := range Channels {
		if name == string(ch)+"_enabled" {
			*p.enabledField(ch) = on
			return true
		}
		for _, t := range NotificationTypes {
			if name == string(ch)+"_"+string(t) {
				return p.Set(ch, t, on)
			}
		}
	}
	return false
}
