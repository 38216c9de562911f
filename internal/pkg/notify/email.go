package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"pricehawk/internal/config"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// Dispatch 发送告警邮件。
//
// SMTP 未配置或收件人为空时跳过而不是报错，保证告警状态机不被
// 邮件配置问题阻塞。
func (n *EmailNotifier) Dispatch(ctx context.Context, event Event) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification",
			slog.String("alert_id", event.AlertID))
		return nil
	}
	if strings.TrimSpace(event.ContactEmail) == "" {
		n.logger.Warn("email recipient empty, skip notification",
			slog.String("alert_id", event.AlertID))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", event.ContactEmail)
	m.SetHeader("Subject", "[PriceHawk] Price alert triggered")
	m.SetBody("text/html", n.buildHTMLBody(event))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("alert notification sent",
		slog.String("alert_id", event.AlertID),
		slog.String("to", event.ContactEmail))
	return nil
}

func (n *EmailNotifier) buildHTMLBody(event Event) string {
	name := "your tracked product"
	link := ""
	image := ""
	if event.Product != nil {
		name = event.Product.Name
		link = event.Product.URL
		image = event.Product.ImageURL
	}

	direction := "dropped to"
	if event.Condition == "above" {
		direction = "rose to"
	}

	hero := ""
	if image != "" {
		hero = fmt.Sprintf(`<div class="hero"><img src="%s" alt="Product Image" /></div>`, image)
	}
	cta := ""
	if link != "" {
		cta = fmt.Sprintf(`<div style="text-align:center; margin-bottom: 12px;">
        <a class="cta" href="%s" target="_blank">View product</a>
      </div>`, link)
	}

	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .hero img { width: 100%%; max-width: 520px; display: block; margin: 0 auto 16px; border-radius: 8px; }
  .price { font-size: 26px; font-weight: bold; color: #ef4444; margin: 8px 0 12px; }
  .title { font-size: 16px; margin-bottom: 16px; }
  .cta { display: inline-block; padding: 12px 20px; background: #22c55e; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[PriceHawk] Price alert</div>
    <div class="content">
      %s
      <div class="price">$%s</div>
      <div class="title">%s %s $%s (target: $%s)</div>
      %s
      <div class="footer">Alert ID: %s</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template,
		hero,
		event.TriggeringPrice.StringFixed(2),
		name,
		direction,
		event.TriggeringPrice.StringFixed(2),
		event.TargetPrice.StringFixed(2),
		cta,
		event.AlertID,
	)
}
