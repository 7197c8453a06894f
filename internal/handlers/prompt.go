package handlers

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// Button ids shared between handlers.
const (
	btnDocuments    = "docs_btn"
	btnAsk          = "ask_btn"
	btnHR           = "hr_btn"
	btnMainMenu     = "main_menu_btn"
	btnFeedbackYes  = "feedback_yes"
	btnFeedbackNo   = "feedback_no"
	btnHRUrgent     = "hr_urgent"
	btnHRCancel     = "hr_cancel"
	rowPolicies     = "doc_policies"
	rowTypePrefix   = "doc_type_"
	rowFilePrefix   = "doc_file_"
	mainMenuText    = "Welcome to ProQuery HR Bot!\n\nPlease select an option:"
	feedbackPrompt  = "Was this helpful?"
	moreOptionsText = "More options:"
)

var mainMenuButtons = []channels.Button{
	{ID: btnDocuments, Title: "Documents 📄"},
	{ID: btnAsk, Title: "Ask a Question ❓"},
	{ID: btnHR, Title: "Contact HR 📞"},
}

var feedbackButtons = []channels.Button{
	{ID: btnFeedbackYes, Title: "Yes 👍"},
	{ID: btnFeedbackNo, Title: "No 👎"},
	{ID: btnMainMenu, Title: "Back to Menu ↩️"},
}

var moreOptionsButtons = []channels.Button{
	{ID: btnDocuments, Title: "Documents 📄"},
	{ID: btnMainMenu, Title: "Main Menu ↩️"},
}

func sendMainMenu(ctx context.Context, t *router.Turn) error {
	return t.Out.SendButtons(ctx, t.Sender(), mainMenuText, mainMenuButtons)
}

// offerFeedback remembers the answer the next Yes/No tap refers to and
// then asks for it. A newer answer replaces an unanswered one.
func offerFeedback(ctx context.Context, t *router.Turn, query, answer string) error {
	err := t.Update(ctx, func(st *session.State) {
		st.PendingFeedback = &session.PendingFeedback{Query: query, Answer: answer}
	})
	if err != nil {
		return err
	}
	return t.Out.SendButtons(ctx, t.Sender(), feedbackPrompt, feedbackButtons)
}

// logQuery records an answered question. Failures are logged only.
func logQuery(ctx context.Context, q session.QueryLog, t *router.Turn, query, answer string) {
	rec := session.QueryRecord{Key: t.Key, Query: query, Answer: answer, At: t.Event.ReceivedAt}
	if err := q.LogQuery(ctx, rec); err != nil {
		slog.Warn("query log write failed", "sender_id", t.Sender(), "error", err)
	}
}

// sendChunks sends text split to the provider's body limit.
func sendChunks(ctx context.Context, t *router.Turn, text string) error {
	for _, part := range channels.SplitText(text, channels.MaxTextBody) {
		if err := t.Out.SendText(ctx, t.Sender(), part); err != nil {
			return err
		}
	}
	return nil
}
