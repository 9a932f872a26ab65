package service

import (
	"fmt"
	"html"

	"bookkeeping/config"
	"bookkeeping/models"

	"gopkg.in/gomail.v2"
)

// EmailService 邮件服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendBudgetAlert 发送预算提醒邮件
func (s *EmailService) SendBudgetAlert(to, username string, n *models.Notification) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用，请配置 BOOKKEEPING_EMAIL_ENABLED=true")
	}

	subject := fmt.Sprintf("【记账本】%s", n.Title)
	return s.sendEmail(to, subject, s.generateBudgetAlertBody(username, n))
}

// generateBudgetAlertBody 生成预算提醒邮件内容
func (s *EmailService) generateBudgetAlertBody(username string, n *models.Notification) string {
	color := "#f59e0b"
	switch n.Priority {
	case models.PriorityHigh, models.PriorityUrgent:
		color = "#ef4444"
	case models.PriorityLow:
		color = "#3b82f6"
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: %s; color: white; padding: 24px; text-align: center; }
        .header h1 { margin: 0; font-size: 22px; }
        .content { padding: 32px 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 16px; }
        .footer { background: #f8f9fa; padding: 16px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>%s</h1>
        </div>
        <div class="content">
            <p>尊敬的 <strong>%s</strong>，您好！</p>
            <p>%s</p>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复。可在通知偏好中关闭预算邮件提醒。</p>
        </div>
    </div>
</body>
</html>
`, color, html.EscapeString(n.Title), html.EscapeString(username), html.EscapeString(n.Message))
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	return nil
}
