// Package notify mails the operator when a scheduled sync fails.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const report_send = "send"

var tracer = otel.Tracer("vkusync.internal.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
	// Recipients get every failure notice.
	Recipients []string `json:"recipients"`
}

// Configured reports whether there is a server and somebody to notify.
func (c SmtpConfig) Configured() bool {
	return c.Server != "" && c.Port != 0 && len(c.Recipients) > 0
}

type Mailer struct {
	cfg  SmtpConfig
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewMailer(cfg SmtpConfig, time chrono.TimeAPI, tel telemetry.API) Mailer {
	return Mailer{
		cfg:  cfg,
		time: time,
		tel:  telemetry.NewScopedAPI("notify", tel),
	}
}

func (m Mailer) compose(owner, message string) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("VKUSync <%s>", m.cfg.EmailAddress)
	mail.To = m.cfg.Recipients
	mail.Subject = fmt.Sprintf("Scheduled sync failed for %s", owner)

	body := fmt.Sprintf(`The scheduled portal sync for %s failed at %s.

%s

If the session expired, capture a new one with: vkusync capture --owner %s`,
		owner,
		m.time.Now().Format("2006-01-02 15:04 MST"),
		message,
		owner,
	)
	mail.Text = []byte(body)
	return mail
}

// SyncFailed sends the failure notice for owner.
func (m Mailer) SyncFailed(ctx context.Context, owner, message string) error {
	_, span := tracer.Start(ctx, "SyncFailed")
	defer span.End()

	if !m.cfg.Configured() {
		return nil
	}

	mail := m.compose(owner, message)
	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	err := mail.Send(addr, smtp.PlainAuth("", m.cfg.EmailAddress, m.cfg.Password, m.cfg.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		m.tel.ReportWarning(report_send, owner, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
