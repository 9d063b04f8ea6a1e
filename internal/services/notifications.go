package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/mail"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/harentsoaR/doctors-portal/internal/models"
)

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NotificationService e-mails booking confirmations to patients. Sending
// happens in the background so a slow or failing SMTP server never delays
// the booking response.
type NotificationService struct {
	sender MailSender
	from   string
	log    *slog.Logger
	wg     sync.WaitGroup
}

// NewNotificationService returns a service sending through cfg.
func NewNotificationService(cfg SMTPConfig, log *slog.Logger) *NotificationService {
	return NewNotificationServiceWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, log)
}

func NewNotificationServiceWithSender(sender MailSender, from string, log *slog.Logger) *NotificationService {
	return &NotificationService{sender: sender, from: from, log: log}
}

var confirmationBody = template.Must(template.New("confirmation").Parse(`<p>Dear {{if .PatientName}}{{.PatientName}}{{else}}patient{{end}},</p>
<p>Your appointment is booked.</p>
<ul>
	<li><strong>Treatment:</strong> {{.Treatment}}</li>
	<li><strong>Date:</strong> {{.Date}}</li>
	<li><strong>Time:</strong> {{.Slot}}</li>
</ul>
<p>If you need to reschedule, contact the clinic as soon as possible.</p>`))

// BookingConfirmed queues a confirmation for b. Patients identified by
// something other than an e-mail address are skipped.
func (s *NotificationService) BookingConfirmed(_ context.Context, b models.Booking) {
	addr, err := mail.ParseAddress(b.Patient)
	if err != nil {
		s.log.Debug("confirmation not sent: patient is not an e-mail address", "patient", b.Patient)
		return
	}

	msg, err := s.confirmation(addr.Address, b)
	if err != nil {
		s.log.Error("build confirmation", "error", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sender.DialAndSend(msg); err != nil {
			s.log.Error("send confirmation", "to", addr.Address, "error", err)
			return
		}
		s.log.Info("confirmation sent", "to", addr.Address, "treatment", b.Treatment, "date", b.Date)
	}()
}

func (s *NotificationService) confirmation(to string, b models.Booking) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := confirmationBody.Execute(&body, b); err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Appointment confirmed: %s on %s", b.Treatment, b.Date))
	m.SetBody("text/html", body.String())
	return m, nil
}

// Wait blocks until queued messages have been handed to the SMTP server.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}
