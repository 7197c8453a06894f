package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/hrdesk/internal/answer"
	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/docs"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

const (
	askPromptText     = "What would you like to know? Ask about company policies, benefits or your own documents."
	queryTooLongText  = "Your question is too long. Please keep it under %d characters."
	queryStartText    = "ProQuery: AI driven efficiency. Incoming 🚀"
	querySelectText   = "Filtering relevant files with AI..."
	querySummaryText  = "Generating summaries..."
	queryInterpreted  = "Interpreted '%s' as '%s' for better results. If incorrect, rerun with exact spelling."
	queryNoMatchText  = "No matching documents found. Check your Benefits Guide or Employee Handbook in Documents menu."
	queryNothingText  = "Nothing related for your search query. Check your Benefits Guide or Employee Handbook in Documents menu."
	queryDownText     = "ProQuery down try again later and let me know via email (info@proquery.live)"
	personalErrText   = "Couldn't fetch your documents right now. Please try again later."
	personalNoneFmt   = "No %s found. Contact HR or check Documents menu."
	personalLatestFmt = "Here's your latest %s (%s). For more, check Documents menu."
	snippetLen        = 200
)

// errPipeline marks failures that reach the user as queryDownText.
var errPipeline = errors.New("query pipeline failed")

// Query answers free-text questions from the employee's files and the
// company policies.
type Query struct {
	deps Deps
}

func (*Query) Name() string  { return "query" }
func (*Query) Priority() int { return PriorityQuery }

func (*Query) OwnedFlows() []session.Flow {
	return []session.Flow{session.FlowAwaitingQuery}
}

// Gate takes text when no flow is active or a question was asked for.
func (*Query) Gate(t *router.Turn) bool {
	if t.Event.Kind != router.KindText {
		return true
	}
	return !t.State.Flow.Active() || t.State.Flow == session.FlowAwaitingQuery
}

func (q *Query) HandleInteractive(ctx context.Context, t *router.Turn, sel router.Selection) (bool, error) {
	if sel.Type != router.SelectionButton || sel.ID != btnAsk {
		return false, nil
	}
	if err := t.Update(ctx, func(st *session.State) { st.SetFlow(session.FlowAwaitingQuery) }); err != nil {
		return true, err
	}
	return true, t.Out.SendText(ctx, t.Sender(), askPromptText)
}

func (q *Query) HandleText(ctx context.Context, t *router.Turn, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}
	if utf8.RuneCountInString(text) > q.deps.MaxQueryLen {
		return true, t.Out.SendText(ctx, t.Sender(), fmt.Sprintf(queryTooLongText, q.deps.MaxQueryLen))
	}
	if t.State.Flow == session.FlowAwaitingQuery {
		t.State.ClearFlow()
		if err := t.Save(ctx); err != nil {
			return true, err
		}
	}

	scope, err := q.deps.Engine.Classify(ctx, text)
	if err != nil {
		slog.Warn("query classification failed", "sender_id", t.Sender(), "error", err)
	}
	log := slog.With("sender_id", t.Sender(), "scope", scope)
	log.Info("answering query", "query", text)

	if scope == answer.ScopePersonal {
		return true, q.answerPersonal(ctx, t, text)
	}
	return true, q.answerGlobal(ctx, t, text)
}

// answerPersonal sends the newest matching file from the employee's own
// folder. Payslips are assumed unless the question names a category.
func (q *Query) answerPersonal(ctx context.Context, t *router.Turn, text string) error {
	cat, ok := docs.CategoryBySlug("payslips")
	if c, _, matched := docs.MatchRequest(text); matched {
		cat = c
	} else if !ok {
		return errors.New("payslips category missing")
	}

	objs, err := q.deps.Docs.List(ctx, docs.PersonalPrefix(t.Key.TenantID, t.Key.SenderID))
	if err != nil {
		return q.personalFailed(ctx, t, text, fmt.Errorf("list personal documents: %w", err))
	}
	var pdfs []string
	for _, k := range docs.Keys(objs) {
		if docs.IsPDF(k) {
			pdfs = append(pdfs, k)
		}
	}

	reply := fmt.Sprintf(personalNoneFmt, categoryNoun(cat))
	if latest, found := docs.Latest(keysIn(pdfs, cat)); found {
		name := docs.Filename(latest)
		link, err := q.deps.Docs.PresignGet(ctx, latest, name, q.deps.PresignTTL)
		if err != nil {
			return q.personalFailed(ctx, t, text, fmt.Errorf("presign %s: %w", latest, err))
		}
		noun := singular(categoryNoun(cat))
		reply = fmt.Sprintf(personalLatestFmt, noun, strings.TrimSuffix(name, ".pdf"))
		if err := t.Out.SendText(ctx, t.Sender(), reply); err != nil {
			return err
		}
		caption := "Latest " + capitalizeWords(noun)
		if err := t.Out.SendDocument(ctx, t.Sender(), channels.Document{Link: link, Filename: name, Caption: caption}); err != nil {
			return err
		}
		reply = "Sent " + name
	} else if err := t.Out.SendText(ctx, t.Sender(), reply); err != nil {
		return err
	}

	if err := t.Out.SendButtons(ctx, t.Sender(), moreOptionsText, moreOptionsButtons); err != nil {
		return err
	}
	logQuery(ctx, q.deps.Queries, t, text, reply)
	return offerFeedback(ctx, t, text, reply)
}

// personalFailed reports a document store failure in plain words and
// still asks for feedback on the exchange.
func (q *Query) personalFailed(ctx context.Context, t *router.Turn, text string, cause error) error {
	slog.Error("personal document lookup failed", "sender_id", t.Sender(), "error", cause)
	if err := t.Out.SendText(ctx, t.Sender(), personalErrText); err != nil {
		return err
	}
	return offerFeedback(ctx, t, text, personalErrText)
}

// answerGlobal runs the search pipeline: interpret, select, summarize,
// then deliver the answer and the PDFs behind it.
func (q *Query) answerGlobal(ctx context.Context, t *router.Turn, text string) error {
	if err := t.Out.SendText(ctx, t.Sender(), queryStartText); err != nil {
		return err
	}

	sums, err := q.search(ctx, t, text)
	if err != nil {
		msg := queryDownText
		var ue userError
		if errors.As(err, &ue) {
			msg = string(ue)
		} else {
			slog.Error("query pipeline failed", "sender_id", t.Sender(), "error", err)
		}
		if err := t.Out.SendText(ctx, t.Sender(), msg); err != nil {
			return err
		}
		return offerFeedback(ctx, t, text, msg)
	}

	combined := answer.Combine(sums)
	if err := sendChunks(ctx, t, combined); err != nil {
		return err
	}
	q.sendRelated(ctx, t, sums, combined)
	logQuery(ctx, q.deps.Queries, t, text, combined)
	return offerFeedback(ctx, t, text, combined)
}

// userError is a pipeline outcome with its own reply text.
type userError string

func (e userError) Error() string { return string(e) }

func (q *Query) search(ctx context.Context, t *router.Turn, text string) ([]answer.Summary, error) {
	interpreted, err := q.deps.Engine.Interpret(ctx, text)
	if err != nil {
		slog.Warn("query interpretation failed", "sender_id", t.Sender(), "error", err)
		interpreted = text
	}
	if interpreted = strings.TrimSpace(interpreted); interpreted == "" {
		interpreted = text
	}
	if !strings.EqualFold(interpreted, text) {
		if err := t.Out.SendText(ctx, t.Sender(), fmt.Sprintf(queryInterpreted, text, interpreted)); err != nil {
			return nil, err
		}
	}

	cands, err := q.candidates(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errPipeline, err)
	}
	if len(cands) == 0 {
		return nil, userError(queryNoMatchText)
	}

	if err := t.Out.SendText(ctx, t.Sender(), querySelectText); err != nil {
		return nil, err
	}
	selected, err := q.deps.Engine.Select(ctx, interpreted, cands, q.deps.MaxSelect)
	if err != nil {
		slog.Warn("document selection failed", "sender_id", t.Sender(), "error", err)
	}
	if len(selected) == 0 {
		return nil, userError(queryNoMatchText)
	}

	if err := t.Out.SendText(ctx, t.Sender(), querySummaryText); err != nil {
		return nil, err
	}
	sums := q.summarize(ctx, interpreted, selected)
	if len(sums) == 0 {
		return nil, userError(queryNothingText)
	}
	return answer.Rank(sums), nil
}

// candidates lists the JSON extracts the model may choose from, the
// employee's own first, each with a short content snippet.
func (q *Query) candidates(ctx context.Context, t *router.Turn) ([]answer.Candidate, error) {
	var keys []string
	seen := make(map[string]bool)
	for _, prefix := range []string{
		docs.PersonalPrefix(t.Key.TenantID, t.Key.SenderID),
		docs.SharedPrefix(t.Key.TenantID),
	} {
		objs, err := q.deps.Docs.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, k := range docs.Keys(objs) {
			if !strings.HasSuffix(k, ".json") || docs.IsBookkeeping(k) || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}

	cands := make([]answer.Candidate, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.deps.Parallelism)
	for i, k := range keys {
		g.Go(func() error {
			cands[i] = answer.Candidate{Key: k, Title: docs.CleanTitle(k)}
			raw, err := q.deps.Docs.Get(gctx, k)
			if err != nil {
				slog.Warn("snippet read failed", "key", k, "error", err)
				return nil
			}
			content := []rune(docs.Content(raw))
			if len(content) > snippetLen {
				content = content[:snippetLen]
			}
			cands[i].Snippet = string(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cands, nil
}

// summarize summarizes each selected document concurrently, keeping
// selection order.
func (q *Query) summarize(ctx context.Context, query string, keys []string) []answer.Summary {
	sums := make([]answer.Summary, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.deps.Parallelism)
	for i, k := range keys {
		g.Go(func() error {
			title := docs.CleanTitle(k)
			raw, err := q.deps.Docs.Get(gctx, k)
			if err != nil {
				slog.Warn("document read failed", "key", k, "error", err)
				sums[i] = answer.Summary{
					Key: k, Title: title, Relevance: answer.RelevanceUnknown, Failed: true,
					Text: fmt.Sprintf("**%s** - Error: Document unavailable.", title),
				}
				return nil
			}
			sums[i] = q.deps.Engine.Summarize(gctx, query, k, title, docs.Content(raw))
			return nil
		})
	}
	_ = g.Wait()
	return sums
}

// sendRelated sends the PDF behind each summarized document and any SOP
// the answer mentions. Missing files are skipped.
func (q *Query) sendRelated(ctx context.Context, t *router.Turn, sums []answer.Summary, combined string) {
	sent := make(map[string]bool)
	send := func(key, caption string) {
		if sent[key] {
			return
		}
		sent[key] = true
		ok, err := q.deps.Docs.Exists(ctx, key)
		if err != nil || !ok {
			if err != nil {
				slog.Warn("related pdf lookup failed", "key", key, "error", err)
			}
			return
		}
		name := docs.Filename(key)
		link, err := q.deps.Docs.PresignGet(ctx, key, name, q.deps.PresignTTL)
		if err != nil {
			slog.Warn("related pdf presign failed", "key", key, "error", err)
			return
		}
		if err := t.Out.SendDocument(ctx, t.Sender(), channels.Document{Link: link, Filename: name, Caption: caption}); err != nil {
			slog.Warn("related pdf send failed", "key", key, "error", err)
		}
	}

	for _, s := range sums {
		if !s.Failed {
			send(docs.PDFTwin(s.Key), "Relevant PDF")
		}
	}
	for _, ref := range answer.SOPReferences(combined) {
		send(docs.SOPKey(t.Key.TenantID, ref), "Mentioned: "+ref)
	}
}

func singular(noun string) string {
	if strings.HasSuffix(noun, "s") && !strings.HasSuffix(noun, "ss") {
		return strings.TrimSuffix(noun, "s")
	}
	return noun
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
