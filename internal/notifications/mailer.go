package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gharbazaar/backend/pkg/config"
	"github.com/gharbazaar/backend/pkg/logger"
)

// Sender delivers transactional payment emails. Callers treat delivery as
// best-effort; a failed send never blocks or fails a payment flow.
type Sender interface {
	SendPaymentReceipt(ctx context.Context, to, name string, amount decimal.Decimal, currency, reference string) error
	SendMembershipActivated(ctx context.Context, to, name, planName string, endDate time.Time) error
	SendMembershipHalted(ctx context.Context, to, name string) error
}

// Mailer sends templated mail over SMTP.
type Mailer struct {
	cfg  config.SMTPConfig
	logg *logger.Logger
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer builds an SMTP mailer. A mailer with no configured host is valid
// and logs instead of sending, so local environments need no mail server.
func NewMailer(cfg config.SMTPConfig, logg *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, logg: logg, send: smtp.SendMail}
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`
<html><body>
<p>Hi {{.Name}},</p>
<p>We received your payment of <strong>{{.Currency}} {{.Amount}}</strong>.</p>
<p>Reference: {{.Reference}}</p>
<p>Thank you for using GharBazaar.</p>
</body></html>`))

var activatedTmpl = template.Must(template.New("activated").Parse(`
<html><body>
<p>Hi {{.Name}},</p>
<p>Your <strong>{{.PlanName}}</strong> membership is now active until {{.EndDate}}.</p>
<p>Happy house hunting!</p>
</body></html>`))

var haltedTmpl = template.Must(template.New("halted").Parse(`
<html><body>
<p>Hi {{.Name}},</p>
<p>We could not renew your membership and it has been paused.</p>
<p>Please update your payment method to restore access.</p>
</body></html>`))

func (m *Mailer) SendPaymentReceipt(ctx context.Context, to, name string, amount decimal.Decimal, currency, reference string) error {
	var body bytes.Buffer
	err := receiptTmpl.Execute(&body, map[string]string{
		"Name":      name,
		"Amount":    amount.StringFixed(2),
		"Currency":  currency,
		"Reference": reference,
	})
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return m.deliver(ctx, to, "Your GharBazaar payment receipt", body.Bytes())
}

func (m *Mailer) SendMembershipActivated(ctx context.Context, to, name, planName string, endDate time.Time) error {
	var body bytes.Buffer
	err := activatedTmpl.Execute(&body, map[string]string{
		"Name":     name,
		"PlanName": planName,
		"EndDate":  endDate.Format("2 January 2006"),
	})
	if err != nil {
		return fmt.Errorf("render activation mail: %w", err)
	}
	return m.deliver(ctx, to, "Your GharBazaar membership is active", body.Bytes())
}

func (m *Mailer) SendMembershipHalted(ctx context.Context, to, name string) error {
	var body bytes.Buffer
	err := haltedTmpl.Execute(&body, map[string]string{"Name": name})
	if err != nil {
		return fmt.Errorf("render halt mail: %w", err)
	}
	return m.deliver(ctx, to, "Action needed: your GharBazaar membership is paused", body.Bytes())
}

func (m *Mailer) deliver(ctx context.Context, to, subject string, html []byte) error {
	if to == "" {
		return fmt.Errorf("recipient address is required")
	}
	if m.cfg.Host == "" {
		if m.logg != nil {
			m.logg.Info(ctx, fmt.Sprintf("smtp disabled, skipping mail %q to %s", subject, to))
		}
		return nil
	}

	from := m.cfg.From
	headers := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n",
		m.cfg.FromName, from, to, subject)

	msg := append([]byte(headers), html...)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
