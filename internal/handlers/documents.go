package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/docs"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

const (
	docsNoneText     = "No documents found for you."
	docsPoliciesText = "Query like 'recruitment policy' for details!"
	docsMissingText  = "File not found. Contact HR."
	docsSendErrText  = "Error sending file. Try again."
	docsListErrText  = "Couldn't load your documents right now. Please try again later."
)

// invalidator is implemented by stores that cache listings.
type invalidator interface {
	Invalidate(prefix string)
}

var docsRequest = regexp.MustCompile(`\b(documents|docs)\b`)

// Documents browses the employee's personal files and sends them as
// download links.
type Documents struct {
	deps Deps
}

func (*Documents) Name() string  { return "documents" }
func (*Documents) Priority() int { return PriorityDocuments }

// Gate declines free text while another handler's flow is waiting for it.
func (*Documents) Gate(t *router.Turn) bool {
	return t.Event.Kind != router.KindText || !t.State.Flow.Active()
}

func (d *Documents) HandleInteractive(ctx context.Context, t *router.Turn, sel router.Selection) (bool, error) {
	switch {
	case sel.Type == router.SelectionButton && sel.ID == btnDocuments:
		return true, d.sendCategories(ctx, t)
	case sel.Type != router.SelectionList:
		return false, nil
	case sel.ID == rowPolicies:
		if err := t.Update(ctx, func(st *session.State) { st.SetFlow(session.FlowAwaitingQuery) }); err != nil {
			return true, err
		}
		return true, t.Out.SendText(ctx, t.Sender(), docsPoliciesText)
	case strings.HasPrefix(sel.ID, rowTypePrefix):
		cat, ok := docs.CategoryBySlug(strings.TrimPrefix(sel.ID, rowTypePrefix))
		if !ok {
			return false, nil
		}
		return true, d.sendCategory(ctx, t, cat)
	case strings.HasPrefix(sel.ID, rowFilePrefix):
		name := strings.TrimPrefix(sel.ID, rowFilePrefix)
		if name == "" || strings.Contains(name, "/") {
			return false, nil
		}
		_, err := d.sendFile(ctx, t, docs.PersonalKey(t.Key.TenantID, t.Key.SenderID, name))
		return true, err
	}
	return false, nil
}

func (d *Documents) HandleText(ctx context.Context, t *router.Turn, text string) (bool, error) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if docsRequest.MatchString(lowered) {
		return true, d.sendCategories(ctx, t)
	}
	cat, filter, ok := docs.MatchRequest(lowered)
	if !ok {
		return false, nil
	}

	keys, err := d.personalPDFs(ctx, t)
	if err != nil {
		return true, d.listFailed(ctx, t, err)
	}
	keys = docs.FilterKeys(keysIn(keys, cat), filter)
	switch {
	case len(keys) == 0 && filter != "":
		return true, t.Out.SendText(ctx, t.Sender(), fmt.Sprintf("No %s found for %s.", categoryNoun(cat), filter))
	case len(keys) == 0:
		return true, t.Out.SendText(ctx, t.Sender(), fmt.Sprintf("No %s found.", cat.Title))
	case len(keys) > 1:
		return true, d.sendFileList(ctx, t, cat, keys)
	}

	sent, err := d.sendFile(ctx, t, keys[0])
	if err != nil || !sent {
		return true, err
	}
	return true, offerFeedback(ctx, t, text, "Sent "+docs.Filename(keys[0]))
}

func (d *Documents) personalPDFs(ctx context.Context, t *router.Turn) ([]string, error) {
	objs, err := d.deps.Docs.List(ctx, docs.PersonalPrefix(t.Key.TenantID, t.Key.SenderID))
	if err != nil {
		return nil, fmt.Errorf("list personal documents: %w", err)
	}
	var out []string
	for _, k := range docs.Keys(objs) {
		if docs.IsPDF(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// listFailed tells the user their documents could not be listed and
// puts the main menu back in front of them.
func (d *Documents) listFailed(ctx context.Context, t *router.Turn, err error) error {
	slog.Error("document listing failed", "sender_id", t.Sender(), "error", err)
	if err := t.Out.SendText(ctx, t.Sender(), docsListErrText); err != nil {
		return err
	}
	return sendMainMenu(ctx, t)
}

func (d *Documents) sendCategories(ctx context.Context, t *router.Turn) error {
	keys, err := d.personalPDFs(ctx, t)
	if err != nil {
		return d.listFailed(ctx, t, err)
	}
	groups := docs.GroupPDFs(keys)
	if len(groups) == 0 {
		return t.Out.SendText(ctx, t.Sender(), docsNoneText)
	}
	rows := make([]channels.Row, 0, len(groups)+1)
	for _, g := range groups {
		rows = append(rows, channels.Row{
			ID:          rowTypePrefix + g.Category.Slug,
			Title:       channels.Fit(g.Category.Title, channels.MaxRowTitle),
			Description: fmt.Sprintf("%d available", len(g.Keys)),
		})
	}
	rows = append(rows, channels.Row{
		ID:          rowPolicies,
		Title:       "Company Policies/SOPs 📜",
		Description: "Query company policies",
	})
	return t.Out.SendList(ctx, t.Sender(), channels.List{
		Header:   "Documents 📄",
		Body:     "Select a document type:",
		Footer:   "Back to menu? Type 'menu'",
		Sections: []channels.Section{{Title: "Document Types", Rows: rows}},
	})
}

func (d *Documents) sendCategory(ctx context.Context, t *router.Turn, cat docs.Category) error {
	keys, err := d.personalPDFs(ctx, t)
	if err != nil {
		return d.listFailed(ctx, t, err)
	}
	keys = keysIn(keys, cat)
	switch len(keys) {
	case 0:
		return t.Out.SendText(ctx, t.Sender(), fmt.Sprintf("No %s found.", cat.Title))
	case 1:
		_, err := d.sendFile(ctx, t, keys[0])
		return err
	}
	return d.sendFileList(ctx, t, cat, keys)
}

// sendFileList lists the newest files of a category, as many as one
// list message can carry.
func (d *Documents) sendFileList(ctx context.Context, t *router.Turn, cat docs.Category, keys []string) error {
	sorted := append([]string(nil), keys...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	if len(sorted) > channels.MaxRowsPerSection {
		sorted = sorted[:channels.MaxRowsPerSection]
	}
	rows := make([]channels.Row, len(sorted))
	for i, k := range sorted {
		name := docs.Filename(k)
		rows[i] = channels.Row{
			ID:          rowFilePrefix + name,
			Title:       channels.Fit(name, channels.MaxRowTitle),
			Description: "Tap to download",
		}
	}
	return t.Out.SendList(ctx, t.Sender(), channels.List{
		Header:   channels.Fit(cat.Title, channels.MaxHeaderText),
		Body:     "Select a file:",
		Footer:   "Back to menu? Type 'menu'",
		Sections: []channels.Section{{Title: channels.Fit(cat.Title, channels.MaxRowTitle), Rows: rows}},
	})
}

// sendFile sends key as a document. sent is false when the user got an
// error text instead.
func (d *Documents) sendFile(ctx context.Context, t *router.Turn, key string) (sent bool, err error) {
	name := docs.Filename(key)
	ok, err := d.deps.Docs.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	if !ok {
		if c, ok := d.deps.Docs.(invalidator); ok {
			c.Invalidate(docs.PersonalPrefix(t.Key.TenantID, t.Key.SenderID))
		}
		return false, t.Out.SendText(ctx, t.Sender(), docsMissingText)
	}
	link, err := d.deps.Docs.PresignGet(ctx, key, name, d.deps.PresignTTL)
	if errors.Is(err, docs.ErrNotFound) {
		return false, t.Out.SendText(ctx, t.Sender(), docsMissingText)
	}
	if err != nil {
		return false, fmt.Errorf("presign %s: %w", key, err)
	}
	if err := t.Out.SendDocument(ctx, t.Sender(), channels.Document{Link: link, Filename: name, Caption: "Your " + name}); err != nil {
		slog.Warn("document send failed", "sender_id", t.Sender(), "file", name, "error", err)
		return false, t.Out.SendText(ctx, t.Sender(), docsSendErrText)
	}
	slog.Info("document sent", "sender_id", t.Sender(), "file", name)
	return true, nil
}

// keysIn keeps the keys whose filename falls in cat.
func keysIn(keys []string, cat docs.Category) []string {
	var out []string
	for _, k := range keys {
		if docs.Categorize(docs.Filename(k)).Slug == cat.Slug {
			out = append(out, k)
		}
	}
	return out
}

// categoryNoun is the plain lower-case name of a category, without emoji.
func categoryNoun(cat docs.Category) string {
	if len(cat.Keywords) > 0 {
		return cat.Keywords[0]
	}
	return strings.ToLower(cat.Title)
}
