// Package notify emails the sales team when a lead arrives.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"contratandoplanos/internal/core"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type Mailer struct {
	from string
	to   []string
	send func(...*gomail.Message) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{from: cfg.From, to: cfg.To, send: dialer.DialAndSend}
}

// ParseRecipients splits a comma separated address list, dropping blanks.
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m *Mailer) NotifyLead(ctx context.Context, lead core.Lead) error {
	if len(m.to) == 0 {
		return nil
	}
	if err := m.send(leadMessage(m.from, m.to, lead)); err != nil {
		return fmt.Errorf("send lead notification: %w", err)
	}
	slog.InfoContext(ctx, "Lead notification sent", "lead_id", lead.ID, "recipients", len(m.to))
	return nil
}

func leadMessage(from string, to []string, l core.Lead) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Reply-To", l.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Nova cotação: %s (%s, %d vidas)", l.Name, l.PlanType.Label(), l.Lives))

	plain := fmt.Sprintf("Nome: %s\nE-mail: %s\nTelefone: %s\nCidade: %s\nPlano: %s\nVidas: %d\n\n%s\n",
		l.Name, l.Email, core.FormatPhone(l.Phone), l.City, l.PlanType.Label(), l.Lives, l.Message)
	msg.SetBody("text/plain", plain)

	e := html.EscapeString
	body := fmt.Sprintf(`<html><body>
<h2>Nova solicitação de cotação</h2>
<p><strong>Nome:</strong> %s<br>
<strong>E-mail:</strong> %s<br>
<strong>Telefone:</strong> %s<br>
<strong>Cidade:</strong> %s<br>
<strong>Plano:</strong> %s<br>
<strong>Vidas:</strong> %d</p>
<p>%s</p>
</body></html>`,
		e(l.Name), e(l.Email), e(core.FormatPhone(l.Phone)), e(l.City), e(l.PlanType.Label()), l.Lives, e(l.Message))
	msg.AddAlternative("text/html", body)
	return msg
}
