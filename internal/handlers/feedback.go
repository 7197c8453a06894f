package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/hrdesk/internal/notify"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

const (
	feedbackYesText  = "Great to hear! Any suggestions for improvement or why it was helpful? Reply or type 'skip'."
	feedbackNoText   = "Sorry to hear that. Please provide more details or type 'skip'."
	feedbackDoneText = "Feedback noted. Thanks!"
)

// Feedback collects the verdict and an optional comment on the last
// answer, then reports it.
type Feedback struct {
	deps Deps
}

func (*Feedback) Name() string  { return "feedback" }
func (*Feedback) Priority() int { return PriorityFeedback }

func (*Feedback) OwnedFlows() []session.Flow {
	return []session.Flow{session.FlowAwaitingFeedbackComment}
}

func (*Feedback) Gate(t *router.Turn) bool {
	return t.Event.Kind != router.KindText || t.State.Flow == session.FlowAwaitingFeedbackComment
}

func (f *Feedback) HandleInteractive(ctx context.Context, t *router.Turn, sel router.Selection) (bool, error) {
	if sel.Type != router.SelectionButton || (sel.ID != btnFeedbackYes && sel.ID != btnFeedbackNo) {
		return false, nil
	}
	if t.State.PendingFeedback == nil {
		return false, nil
	}
	helpful := sel.ID == btnFeedbackYes
	t.State.PendingFeedback.Helpful = &helpful
	t.State.SetFlow(session.FlowAwaitingFeedbackComment)
	if err := t.Save(ctx); err != nil {
		return true, err
	}

	reply := feedbackNoText
	if helpful {
		reply = feedbackYesText
	}
	return true, t.Out.SendText(ctx, t.Sender(), reply)
}

func (f *Feedback) HandleText(ctx context.Context, t *router.Turn, text string) (bool, error) {
	if t.State.Flow != session.FlowAwaitingFeedbackComment {
		return false, nil
	}
	pending := t.State.PendingFeedback
	if pending == nil {
		// Nothing left to comment on; leave the flow so the text is
		// treated as a fresh message next time.
		t.State.ClearFlow()
		return false, t.Save(ctx)
	}

	report := notify.FeedbackReport{
		Employee:  t.Identity,
		Query:     pending.Query,
		Answer:    pending.Answer,
		Helpful:   pending.Helpful != nil && *pending.Helpful,
		MessageID: t.Event.MessageID,
		At:        t.Event.ReceivedAt,
	}
	if c := strings.TrimSpace(text); !strings.EqualFold(c, "skip") {
		report.Comment = c
	}

	t.State.PendingFeedback = nil
	t.State.ClearFlow()
	if err := t.Save(ctx); err != nil {
		return true, err
	}

	if err := f.deps.Notifier.Feedback(ctx, report); err != nil {
		slog.Warn("feedback delivery failed", "sender_id", t.Sender(), "error", err)
	} else {
		slog.Info("feedback recorded", "sender_id", t.Sender(), "helpful", report.Helpful)
	}
	if err := t.Out.SendText(ctx, t.Sender(), feedbackDoneText); err != nil {
		return true, err
	}
	return true, sendMainMenu(ctx, t)
}
