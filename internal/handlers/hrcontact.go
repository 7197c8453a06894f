package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/notify"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
	"github.com/nextlevelbuilder/hrdesk/pkg/protocol"
)

const (
	hrPromptText    = "What's your query or issue for HR? Reply with details or type 'skip' to cancel."
	hrUrgentText    = "Marked as urgent ⚡ Please type your query for HR."
	hrCancelledText = "HR contact cancelled. Type 'menu' for main options."
	hrSentText      = "Your query has been sent to HR! They'll contact you soon."
	hrFailedText    = "Error sending your query. Please try again or contact HR directly."
	hrLoggedAnswer  = "Sent to HR"
)

var hrButtons = []channels.Button{
	{ID: btnHRUrgent, Title: "Mark Urgent ⚡"},
	{ID: btnHRCancel, Title: "Cancel"},
}

// HRContact forwards a free-text query to HR as a ticket.
type HRContact struct {
	deps Deps
}

func (*HRContact) Name() string  { return "hr_contact" }
func (*HRContact) Priority() int { return PriorityHRContact }

func (*HRContact) OwnedFlows() []session.Flow {
	return []session.Flow{session.FlowAwaitingHRQuery}
}

// Gate takes text only while a ticket is being written.
func (*HRContact) Gate(t *router.Turn) bool {
	return t.Event.Kind != router.KindText || t.State.Flow == session.FlowAwaitingHRQuery
}

func (h *HRContact) HandleInteractive(ctx context.Context, t *router.Turn, sel router.Selection) (bool, error) {
	if sel.Type != router.SelectionButton {
		return false, nil
	}
	switch sel.ID {
	case btnHR:
		err := t.Update(ctx, func(st *session.State) {
			st.SetFlow(session.FlowAwaitingHRQuery)
			st.Urgency = protocol.UrgencyStandard
		})
		if err != nil {
			return true, err
		}
		return true, t.Out.SendButtons(ctx, t.Sender(), hrPromptText, hrButtons)
	case btnHRUrgent:
		if t.State.Flow != session.FlowAwaitingHRQuery {
			return false, nil
		}
		err := t.Update(ctx, func(st *session.State) {
			if st.Flow == session.FlowAwaitingHRQuery {
				st.Urgency = protocol.UrgencyUrgent
			}
		})
		if err != nil {
			return true, err
		}
		return true, t.Out.SendText(ctx, t.Sender(), hrUrgentText)
	case btnHRCancel:
		return true, h.cancel(ctx, t)
	}
	return false, nil
}

func (h *HRContact) HandleText(ctx context.Context, t *router.Turn, text string) (bool, error) {
	if t.State.Flow != session.FlowAwaitingHRQuery {
		return false, nil
	}
	if strings.EqualFold(strings.TrimSpace(text), "skip") {
		return true, h.cancel(ctx, t)
	}

	urgency := t.State.Urgency
	if urgency == "" {
		urgency = protocol.UrgencyStandard
	}
	t.State.ClearFlow()
	if err := t.Save(ctx); err != nil {
		return true, err
	}

	ticket := notify.Ticket{
		Employee:  t.Identity,
		Query:     text,
		Urgency:   urgency,
		MessageID: t.Event.MessageID,
		At:        t.Event.ReceivedAt,
	}
	if err := h.deps.Notifier.HRTicket(ctx, ticket); err != nil {
		slog.Error("hr ticket delivery failed", "sender_id", t.Sender(), "error", err)
		return true, t.Out.SendText(ctx, t.Sender(), hrFailedText)
	}
	slog.Info("hr ticket sent", "sender_id", t.Sender(), "urgency", urgency)
	logQuery(ctx, h.deps.Queries, t, text, hrLoggedAnswer)
	return true, t.Out.SendText(ctx, t.Sender(), hrSentText)
}

func (*HRContact) cancel(ctx context.Context, t *router.Turn) error {
	if t.State.Flow == session.FlowAwaitingHRQuery {
		if err := t.Update(ctx, (*session.State).ClearFlow); err != nil {
			return err
		}
	}
	return t.Out.SendText(ctx, t.Sender(), hrCancelledText)
}
