// Package notify delivers payment reminder emails. The core engine only
// supplies the next-installment predicate; everything about delivery lives
// here, behind the Sender interface so tests and dev runs use the no-op.
package notify

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/openfun/payplan/payment"
)

// Sender delivers an upcoming-debit reminder for one installment.
type Sender interface {
	SendPaymentReminder(to string, orderID string, inst payment.Installment) error
}

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	SenderEmail string
}

// SMTPSender sends reminders via SMTP.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *logrus.Logger
}

func NewSMTPSender(cfg SMTPConfig, logger *logrus.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SendPaymentReminder emails the user that an installment will be debited on
// its due date.
func (s *SMTPSender) SendPaymentReminder(to string, orderID string, inst payment.Installment) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Upcoming installment payment"

	body := fmt.Sprintf(
		"An installment of %s for your order %s will be debited on %s.\n"+
			"Please ensure your payment method is valid.\n",
		inst.Amount, orderID, inst.DueDate,
	)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send reminder to %s: %v", to, err)
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	s.logger.Infof("Reminder sent to %s for order %s", to, orderID)
	return nil
}

// NopSender discards reminders. Used in dev and tests.
type NopSender struct{}

func (NopSender) SendPaymentReminder(string, string, payment.Installment) error { return nil }
