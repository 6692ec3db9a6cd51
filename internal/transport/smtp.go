package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport delivers reminders as HTML email over SMTP with STARTTLS.
type SMTPTransport struct {
	config SMTPConfig
	addr   string
	auth   smtp.Auth
}

// emailTemplate mirrors the habit tracker's reminder mail layout.
var emailTemplate = template.Must(template.New("reminder").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #3B82F6;">Habit Reminder</h2>
  <div style="background-color: #F3F4F6; padding: 20px; border-radius: 8px; margin: 20px 0;">
{{- range .Lines}}
    <p style="margin: 0; color: #1F2937;">{{.}}</p>
{{- end}}
  </div>
  <p>Keep up the great work building healthy habits!</p>
  <hr style="border: none; border-top: 1px solid #E5E7EB; margin: 30px 0;">
  <p style="font-size: 12px; color: #9CA3AF;">
    This reminder was sent because you have notifications enabled for this habit.
    You can manage your reminders in your habit tracker app.
  </p>
</div>`))

// NewSMTP creates an SMTP transport.
func NewSMTP(config SMTPConfig) *SMTPTransport {
	t := &SMTPTransport{
		config: config,
		addr:   fmt.Sprintf("%s:%d", config.Host, config.Port),
	}
	if config.Username != "" {
		t.auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return t
}

// Deliver sends one email. The context deadline bounds the whole SMTP
// conversation.
func (t *SMTPTransport) Deliver(ctx context.Context, recipient, subject, body string) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", t.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	client, err := smtp.NewClient(conn, t.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: t.config.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if t.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(t.auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(t.config.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp rcpt to %s: %w", recipient, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg, err := BuildMessage(t.config.From, recipient, subject, body)
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

// BuildMessage assembles the full RFC 5322 message with an HTML body.
func BuildMessage(from, to, subject, body string) ([]byte, error) {
	var html bytes.Buffer
	data := struct{ Lines []string }{Lines: strings.Split(body, "\n")}
	if err := emailTemplate.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render email body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(html.Bytes())
	msg.WriteString("\r\n")
	return msg.Bytes(), nil
}
