package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// EmailOptions configures SMTP delivery.
type EmailOptions struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FeedbackTo string
	HRTo       string
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

// Mailer sends reports as plain-text email over STARTTLS.
type Mailer struct {
	client     mailSender
	from       string
	feedbackTo string
	hrTo       string
}

// NewMailer builds a Mailer. Auth is used only when a username is set.
func NewMailer(opts EmailOptions) (*Mailer, error) {
	if opts.Host == "" || opts.From == "" {
		return nil, errors.New("notify: smtp host and from address are required")
	}
	mopts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(20 * time.Second),
	}
	if opts.Username != "" {
		mopts = append(mopts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}
	c, err := mail.NewClient(opts.Host, mopts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	return &Mailer{client: c, from: opts.From, feedbackTo: opts.FeedbackTo, hrTo: opts.HRTo}, nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("notify: from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("notify: to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}

func (m *Mailer) Feedback(ctx context.Context, r FeedbackReport) error {
	if m.feedbackTo == "" {
		return nil
	}
	if err := m.send(ctx, m.feedbackTo, FeedbackSubject(r), FeedbackBody(r)); err != nil {
		return err
	}
	slog.Info("feedback email sent", "sender_id", r.Employee.SenderID)
	return nil
}

func (m *Mailer) HRTicket(ctx context.Context, t Ticket) error {
	if m.hrTo == "" {
		return errors.New("notify: no HR recipient configured")
	}
	if err := m.send(ctx, m.hrTo, TicketSubject(t), TicketBody(t)); err != nil {
		return err
	}
	slog.Info("hr email sent", "sender_id", t.Employee.SenderID, "urgency", t.Urgency)
	return nil
}
