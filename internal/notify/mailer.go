package notify

import (
	"fmt"
	"time"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"
)

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM" default:"library@example.org"`
	// UserDomain turns a username into a recipient address.
	UserDomain string `envconfig:"SMTP_USER_DOMAIN" default:"example.org"`
	Enabled    bool   `envconfig:"SMTP_ENABLED" default:"false"`
}

// Mailer renders circulation events into plain-text emails. It sits behind
// the Kafka consumer, so a slow SMTP server never touches request latency.
type Mailer struct {
	dialer *mail.Dialer
	cfg    SMTPConfig
	log    *zap.Logger
}

func NewMailer(cfg SMTPConfig, log *zap.Logger) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 15 * time.Second
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	return &Mailer{
		dialer: d,
		cfg:    cfg,
		log:    log.Named("mailer"),
	}
}

func (m *Mailer) Send(e Event) error {
	subject, body := m.render(e)
	if subject == "" {
		m.log.Warn("unknown event type", zap.String("type", string(e.Type)))
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", fmt.Sprintf("%s@%s", e.Username, m.cfg.UserDomain))
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return m.dialer.DialAndSend(msg)
}

func (m *Mailer) render(e Event) (subject, body string) {
	switch e.Type {
	case EventReservationConfirmed:
		return "Reservation confirmed",
			fmt.Sprintf("Your reservation %s is queued. You will be notified as soon as a copy is ready for pickup.",
				e.ReservationUid)
	case EventReservationAssigned:
		exp := ""
		if e.ExpirationDate != nil {
			exp = e.ExpirationDate.Format("2006-01-02")
		}
		return "Your book is ready for pickup",
			fmt.Sprintf("Copy %s is reserved for you. Please pick it up before %s or the reservation expires.",
				e.CopyLocation, exp)
	case EventPickupConfirmed:
		due := ""
		if e.DueDate != nil {
			due = e.DueDate.Format("2006-01-02")
		}
		return "Borrowing confirmed",
			fmt.Sprintf("Enjoy your book! It is due back on %s.", due)
	case EventReturnConfirmed:
		return "Return confirmed",
			"Thanks for returning your book."
	case EventDueSoon:
		due := ""
		if e.DueDate != nil {
			due = e.DueDate.Format("2006-01-02")
		}
		return "Your book is due soon",
			fmt.Sprintf("Reminder: your borrowed book is due on %s. You can renew it from your account.", due)
	case EventOverdue:
		due := ""
		if e.DueDate != nil {
			due = e.DueDate.Format("2006-01-02")
		}
		return "Your book is overdue",
			fmt.Sprintf("Your borrowed book was due on %s. Please return it as soon as possible.", due)
	}
	return "", ""
}
