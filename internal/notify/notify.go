// Package notify delivers employee feedback and HR tickets to people and
// systems outside the chat: email and an AMQP event bus.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/pkg/protocol"
)

// FeedbackReport is one employee's verdict on an answer.
type FeedbackReport struct {
	Employee  identity.Identity
	Query     string
	Answer    string
	Helpful   bool
	Comment   string
	MessageID string // WhatsApp message that completed the feedback
	At        time.Time
}

// Ticket is a query forwarded to HR.
type Ticket struct {
	Employee  identity.Identity
	Query     string
	Urgency   string // protocol.UrgencyStandard or protocol.UrgencyUrgent
	MessageID string
	At        time.Time
}

// Notifier delivers reports.
type Notifier interface {
	Feedback(ctx context.Context, r FeedbackReport) error
	HRTicket(ctx context.Context, t Ticket) error
}

// Multi fans out to every notifier. All are attempted; the first error
// is returned.
type Multi []Notifier

func (m Multi) Feedback(ctx context.Context, r FeedbackReport) error {
	var first error
	for _, n := range m {
		if err := n.Feedback(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) HRTicket(ctx context.Context, t Ticket) error {
	var first error
	for _, n := range m {
		if err := n.HRTicket(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ErrDisabled is returned by Nop so handlers can tell the employee that
// nothing was delivered.
var ErrDisabled = errors.New("notify: no notification channel configured")

// Nop is used when neither email nor events are configured.
type Nop struct{}

func (Nop) Feedback(context.Context, FeedbackReport) error { return ErrDisabled }
func (Nop) HRTicket(context.Context, Ticket) error         { return ErrDisabled }

func displayName(id identity.Identity) string {
	if id.DisplayName == "" {
		return "Unknown User"
	}
	return id.DisplayName
}

// FeedbackSubject is the email subject of a feedback report.
func FeedbackSubject(r FeedbackReport) string {
	status := "Not Helpful"
	if r.Helpful {
		status = "Helpful"
	}
	q := r.Query
	if utf8.RuneCountInString(q) > 50 {
		q = string([]rune(q)[:50]) + "..."
	}
	return fmt.Sprintf("Feedback: %s - Query: %s", status, q)
}

// FeedbackBody is the plain-text email body of a feedback report.
func FeedbackBody(r FeedbackReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: %s (%s)\n", displayName(r.Employee), r.Employee.SenderID)
	fmt.Fprintf(&b, "Role: %s\n", r.Employee.Role)
	fmt.Fprintf(&b, "Company: %s\n\n", r.Employee.TenantID)
	fmt.Fprintf(&b, "Query: %s\n\n", r.Query)
	fmt.Fprintf(&b, "Answer: %s\n\n", r.Answer)
	helpful := "No"
	if r.Helpful {
		helpful = "Yes"
	}
	fmt.Fprintf(&b, "Helpful: %s\n\n", helpful)
	comment := r.Comment
	if comment == "" {
		comment = "None"
	}
	fmt.Fprintf(&b, "Comment: %s\n", comment)
	return b.String()
}

func urgencyLabel(u string) string {
	if u == protocol.UrgencyUrgent {
		return "Urgent"
	}
	return "Standard"
}

// TicketSubject is the email subject of an HR ticket.
func TicketSubject(t Ticket) string {
	return fmt.Sprintf("HR Query from %s (%s) - Urgency: %s",
		displayName(t.Employee), t.Employee.SenderID, urgencyLabel(t.Urgency))
}

// TicketBody is the plain-text email body of an HR ticket.
func TicketBody(t Ticket) string {
	return fmt.Sprintf("User: %s (%s)\nRole: %s\nCompany: %s\nUrgency: %s\n\nQuery: %s",
		displayName(t.Employee), t.Employee.SenderID, t.Employee.Role, t.Employee.TenantID,
		urgencyLabel(t.Urgency), t.Query)
}
