package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/hrdesk/internal/answer"
	"github.com/nextlevelbuilder/hrdesk/internal/channels/channeltest"
	"github.com/nextlevelbuilder/hrdesk/internal/docs"
	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/notify"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
	"github.com/nextlevelbuilder/hrdesk/internal/store/memstore"
	"github.com/nextlevelbuilder/hrdesk/pkg/protocol"
)

const employee = "27820000001"

var acmeKey = session.Key{TenantID: "acme", SenderID: employee}

type fakeEngine struct {
	mu         sync.Mutex
	scope      answer.Scope
	interpret  map[string]string
	selected   []string
	selectErr  error
	summaries  map[string]string
	candidates []answer.Candidate
}

func (f *fakeEngine) Classify(context.Context, string) (answer.Scope, error) {
	if f.scope == "" {
		return answer.ScopeGlobal, nil
	}
	return f.scope, nil
}

func (f *fakeEngine) Interpret(_ context.Context, q string) (string, error) {
	if c, ok := f.interpret[q]; ok {
		return c, nil
	}
	return q, nil
}

func (f *fakeEngine) Select(_ context.Context, _ string, cands []answer.Candidate, max int) ([]string, error) {
	f.mu.Lock()
	f.candidates = cands
	f.mu.Unlock()
	if len(f.selected) > max {
		return f.selected[:max], f.selectErr
	}
	return f.selected, f.selectErr
}

func (f *fakeEngine) Summarize(_ context.Context, _, key, title, _ string) answer.Summary {
	text, ok := f.summaries[key]
	if !ok {
		return answer.Summary{Key: key, Title: title, Text: "**" + title + "** - Error: Summary failed.", Relevance: answer.RelevanceUnknown, Failed: true}
	}
	rel := answer.RelevanceLow
	if strings.Contains(text, "Relevance: High") {
		rel = answer.RelevanceHigh
	}
	return answer.Summary{Key: key, Title: title, Text: text, Relevance: rel}
}

type fakeNotifier struct {
	feedback []notify.FeedbackReport
	tickets  []notify.Ticket
	err      error
}

func (f *fakeNotifier) Feedback(_ context.Context, r notify.FeedbackReport) error {
	f.feedback = append(f.feedback, r)
	return f.err
}

func (f *fakeNotifier) HRTicket(_ context.Context, t notify.Ticket) error {
	f.tickets = append(f.tickets, t)
	return f.err
}

// failingDocs fails every listing.
type failingDocs struct{ *docs.MemStore }

func (failingDocs) List(context.Context, string) ([]docs.Object, error) {
	return nil, errors.New("s3 unavailable")
}

type harness struct {
	r      *router.Router
	mem    *memstore.Store
	out    *channeltest.Recorder
	docs   *docs.MemStore
	engine *fakeEngine
	notes  *fakeNotifier
	now    time.Time
	seq    int
}

func newHarness(t *testing.T, store docs.Store) *harness {
	t.Helper()
	h := &harness{
		mem:    memstore.New(),
		out:    &channeltest.Recorder{},
		docs:   docs.NewMemStore(nil),
		engine: &fakeEngine{},
		notes:  &fakeNotifier{},
		now:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	if store == nil {
		store = h.docs
	}
	_, _, err := h.mem.SyncEmployees(context.Background(), []identity.Identity{
		{SenderID: employee, TenantID: "acme", Role: "engineer", DisplayName: "Thandi"},
	})
	if err != nil {
		t.Fatalf("SyncEmployees: %v", err)
	}
	hs, err := All(Deps{Docs: store, Engine: h.engine, Notifier: h.notes, Queries: h.mem})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	r, err := router.New(router.Options{
		Directory: h.mem,
		Sessions:  h.mem,
		Processed: h.mem,
		Messenger: h.out,
		Now:       func() time.Time { return h.now },
	}, hs...)
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	h.r = r
	return h
}

func (h *harness) dispatch(t *testing.T, ev router.Event) router.Outcome {
	t.Helper()
	h.seq++
	h.now = h.now.Add(10 * time.Second)
	ev.SenderID = employee
	ev.MessageID = fmt.Sprintf("wamid.%d", h.seq)
	ev.ReceivedAt = h.now
	out, err := h.r.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	return out
}

func (h *harness) text(t *testing.T, s string) router.Outcome {
	t.Helper()
	return h.dispatch(t, router.Event{Kind: router.KindText, Text: s})
}

func (h *harness) button(t *testing.T, id string) router.Outcome {
	t.Helper()
	return h.dispatch(t, router.Event{Kind: router.KindInteractive, Selection: router.Selection{Type: router.SelectionButton, ID: id}})
}

func (h *harness) row(t *testing.T, id string) router.Outcome {
	t.Helper()
	return h.dispatch(t, router.Event{Kind: router.KindInteractive, Selection: router.Selection{Type: router.SelectionList, ID: id}})
}

func (h *harness) state(t *testing.T) *session.State {
	t.Helper()
	st, err := h.mem.Load(context.Background(), acmeKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return st
}

func personal(name string) string { return docs.PersonalKey("acme", employee, name) }

func buttonIDs(s channeltest.Sent) []string {
	ids := make([]string, len(s.Buttons))
	for i, b := range s.Buttons {
		ids[i] = b.ID
	}
	return ids
}

// --- registry tests ---

func TestRegistryOrder(t *testing.T) {
	h := newHarness(t, nil)
	var names []string
	for _, hd := range h.r.Handlers() {
		names = append(names, hd.Name())
	}
	if got := strings.Join(names, ","); got != "menu,documents,hr_contact,query,feedback" {
		t.Fatalf("order = %s", got)
	}
}

func TestAllRequiresCollaborators(t *testing.T) {
	if _, err := All(Deps{}); err == nil {
		t.Fatal("expected error")
	}
}

// --- greeting tests ---

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"hi", true},
		{"Hello!", true},
		{"  good   morning ", true},
		{"Main Menu", true},
		{"helo", true},
		{"hallo", true},
		{"greetngs", true},
		{"hii", true},
		{"hi there", true},
		{"Hello, HR bot", true},
		{"heyy", true},
		{"good morning team", true},
		{"he", false},
		{"hr", false},
		{"yes", false},
		{"help", false},
		{"payslips", false},
		{"", false},
		{"!!!", false},
		{"what is the leave policy", false},
		{"hi what is the leave policy", false},
		{"good morning where is my latest payslip", false},
	}
	for _, tt := range tests {
		if got := isGreeting(tt.in); got != tt.want {
			t.Errorf("isGreeting(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// --- scenario tests ---

func TestPayslipFeedbackScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.docs.Put(personal("Payslip_Dec.pdf"), []byte("%PDF"))

	if out := h.text(t, "hi"); out != router.OutcomeHandled {
		t.Fatalf("hi outcome = %v", out)
	}
	menu := h.out.Last()
	if menu.Text != mainMenuText || strings.Join(buttonIDs(menu), ",") != "docs_btn,ask_btn,hr_btn" {
		t.Fatalf("menu = %+v", menu)
	}

	h.button(t, btnDocuments)
	list := h.out.Last().List
	if list == nil || len(list.Sections) != 1 {
		t.Fatalf("expected documents list, got %+v", h.out.Last())
	}
	rows := list.Sections[0].Rows
	if len(rows) != 2 || rows[0].ID != "doc_type_payslips" || rows[0].Description != "1 available" || rows[1].ID != rowPolicies {
		t.Fatalf("rows = %+v", rows)
	}

	h.out.Reset()
	h.text(t, "payslips")
	sent := h.out.Sent()
	if len(sent) != 2 || sent[0].Kind != "document" || sent[1].Text != feedbackPrompt {
		t.Fatalf("sent = %+v", sent)
	}
	if doc := sent[0].Document; doc.Filename != "Payslip_Dec.pdf" || doc.Caption != "Your Payslip_Dec.pdf" || !strings.HasPrefix(doc.Link, "https://docs.invalid/") {
		t.Fatalf("document = %+v", doc)
	}
	if pf := h.state(t).PendingFeedback; pf == nil || pf.Query != "payslips" {
		t.Fatalf("pending feedback = %+v", pf)
	}

	h.button(t, btnFeedbackNo)
	if got := h.out.Last().Text; got != feedbackNoText {
		t.Fatalf("reply = %q", got)
	}
	if st := h.state(t); st.Flow != session.FlowAwaitingFeedbackComment || st.PendingFeedback.Helpful == nil || *st.PendingFeedback.Helpful {
		t.Fatalf("state = %+v", st)
	}

	h.out.Reset()
	h.text(t, "too old")
	if len(h.notes.feedback) != 1 {
		t.Fatalf("feedback reports = %d", len(h.notes.feedback))
	}
	rep := h.notes.feedback[0]
	if rep.Helpful || rep.Comment != "too old" || rep.Query != "payslips" || rep.Employee.DisplayName != "Thandi" {
		t.Fatalf("report = %+v", rep)
	}
	sent = h.out.Sent()
	if len(sent) != 2 || sent[0].Text != feedbackDoneText || sent[1].Text != mainMenuText {
		t.Fatalf("sent = %+v", sent)
	}
	if st := h.state(t); st.Flow.Active() || st.PendingFeedback != nil {
		t.Fatalf("state not cleared: %+v", st)
	}
}

func TestFeedbackSkipAndYes(t *testing.T) {
	h := newHarness(t, nil)
	h.docs.Put(personal("Payslip_Dec.pdf"), []byte("%PDF"))
	h.text(t, "payslips")
	h.button(t, btnFeedbackYes)
	if got := h.out.Last().Text; got != feedbackYesText {
		t.Fatalf("reply = %q", got)
	}
	h.text(t, "SKIP")
	if len(h.notes.feedback) != 1 || !h.notes.feedback[0].Helpful || h.notes.feedback[0].Comment != "" {
		t.Fatalf("reports = %+v", h.notes.feedback)
	}
}

func TestFeedbackButtonWithoutPendingFallsBack(t *testing.T) {
	h := newHarness(t, nil)
	if out := h.button(t, btnFeedbackYes); out != router.OutcomeFallback {
		t.Fatalf("outcome = %v", out)
	}
	if got := h.out.Last().Text; got != router.ReplyFallback {
		t.Fatalf("reply = %q", got)
	}
}

func TestFeedbackNotifyFailureStillThanks(t *testing.T) {
	h := newHarness(t, nil)
	h.notes.err = errors.New("smtp down")
	h.docs.Put(personal("Payslip_Dec.pdf"), []byte("%PDF"))
	h.text(t, "payslips")
	h.button(t, btnFeedbackNo)
	h.out.Reset()
	if out := h.text(t, "nope"); out != router.OutcomeHandled {
		t.Fatalf("outcome = %v", out)
	}
	if got := h.out.Texts(); len(got) != 2 || got[0] != feedbackDoneText {
		t.Fatalf("texts = %q", got)
	}
}

// --- hr contact tests ---

func TestHRTicketUrgent(t *testing.T) {
	h := newHarness(t, nil)
	h.button(t, btnHR)
	prompt := h.out.Last()
	if prompt.Text != hrPromptText || strings.Join(buttonIDs(prompt), ",") != "hr_urgent,hr_cancel" {
		t.Fatalf("prompt = %+v", prompt)
	}
	if st := h.state(t); st.Flow != session.FlowAwaitingHRQuery || st.Urgency != protocol.UrgencyStandard {
		t.Fatalf("state = %+v", st)
	}

	h.button(t, btnHRUrgent)
	if st := h.state(t); st.Urgency != protocol.UrgencyUrgent {
		t.Fatalf("urgency = %q", st.Urgency)
	}

	// Category words are captured by the ticket flow, not documents.
	h.text(t, "payslips are wrong since March")
	if len(h.notes.tickets) != 1 {
		t.Fatalf("tickets = %d", len(h.notes.tickets))
	}
	tk := h.notes.tickets[0]
	if tk.Urgency != protocol.UrgencyUrgent || tk.Query != "payslips are wrong since March" || tk.Employee.TenantID != "acme" {
		t.Fatalf("ticket = %+v", tk)
	}
	if got := h.out.Last().Text; got != hrSentText {
		t.Fatalf("reply = %q", got)
	}
	if q := h.mem.Queries(); len(q) != 1 || q[0].Answer != hrLoggedAnswer {
		t.Fatalf("query log = %+v", q)
	}
	if st := h.state(t); st.Flow.Active() || st.Urgency != "" {
		t.Fatalf("state = %+v", st)
	}
}

func TestHRTicketFailureAndCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.notes.err = errors.New("smtp down")
	h.button(t, btnHR)
	h.text(t, "my contract")
	if got := h.out.Last().Text; got != hrFailedText {
		t.Fatalf("reply = %q", got)
	}
	if len(h.mem.Queries()) != 0 {
		t.Fatal("failed ticket must not be logged")
	}
	if h.state(t).Flow.Active() {
		t.Fatal("flow should be cleared after a failed ticket")
	}

	h.button(t, btnHR)
	h.text(t, " skip ")
	if got := h.out.Last().Text; got != hrCancelledText {
		t.Fatalf("reply = %q", got)
	}
	h.button(t, btnHR)
	h.button(t, btnHRCancel)
	if got := h.out.Last().Text; got != hrCancelledText || h.state(t).Flow.Active() {
		t.Fatalf("cancel button: reply %q flow %v", got, h.state(t).Flow)
	}
	if len(h.notes.tickets) != 1 {
		t.Fatalf("tickets = %d", len(h.notes.tickets))
	}
}

func TestUrgentOutsideFlowFallsBack(t *testing.T) {
	h := newHarness(t, nil)
	if out := h.button(t, btnHRUrgent); out != router.OutcomeFallback {
		t.Fatalf("outcome = %v", out)
	}
}

func TestGreetingLeavesFlowKeepsPendingFeedback(t *testing.T) {
	h := newHarness(t, nil)
	h.docs.Put(personal("Payslip_Dec.pdf"), []byte("%PDF"))
	h.text(t, "payslips")
	h.button(t, btnHR)
	h.text(t, "Hello")
	st := h.state(t)
	if st.Flow.Active() || st.PendingFeedback == nil {
		t.Fatalf("state = %+v", st)
	}
	if got := h.out.Last().Text; got != mainMenuText {
		t.Fatalf("reply = %q", got)
	}
}

// --- documents tests ---

func TestDocumentsFiltersAndLists(t *testing.T) {
	h := newHarness(t, nil)
	for _, n := range []string{"Payslip_2025.11.pdf", "Payslip_2025.12.pdf", "Payslip_2025.12.json", "Employee_Handbook.pdf"} {
		h.docs.Put(personal(n), []byte("x"))
	}

	h.text(t, "payslips jan")
	if got := h.out.Last().Text; got != "No payslips found for jan." {
		t.Fatalf("reply = %q", got)
	}

	h.text(t, "payslip")
	list := h.out.Last().List
	if list == nil {
		t.Fatalf("expected file list, got %+v", h.out.Last())
	}
	rows := list.Sections[0].Rows
	if len(rows) != 2 || rows[0].ID != "doc_file_Payslip_2025.12.pdf" || rows[1].Description != "Tap to download" {
		t.Fatalf("rows = %+v", rows)
	}

	h.out.Reset()
	h.row(t, "doc_type_employee")
	if s := h.out.Last(); s.Kind != "document" || s.Document.Filename != "Employee_Handbook.pdf" {
		t.Fatalf("single category file should be sent directly, got %+v", s)
	}

	h.row(t, "doc_file_Payslip_2025.11.pdf")
	if s := h.out.Last(); s.Kind != "document" || s.Document.Caption != "Your Payslip_2025.11.pdf" {
		t.Fatalf("file row = %+v", s)
	}

	h.row(t, "doc_file_Missing.pdf")
	if got := h.out.Last().Text; got != docsMissingText {
		t.Fatalf("reply = %q", got)
	}

	h.row(t, "doc_type_warning")
	if got := h.out.Last().Text; got != "No Warning Letters ⚠️ found." {
		t.Fatalf("reply = %q", got)
	}
}

func TestDocumentsEmptyAndPolicies(t *testing.T) {
	h := newHarness(t, nil)
	h.text(t, "show my docs")
	if got := h.out.Last().Text; got != docsNoneText {
		t.Fatalf("reply = %q", got)
	}
	h.row(t, rowPolicies)
	if got := h.out.Last().Text; got != docsPoliciesText {
		t.Fatalf("reply = %q", got)
	}
	if h.state(t).Flow != session.FlowAwaitingQuery {
		t.Fatal("policies row should wait for a question")
	}
}

func TestDocumentsStoreDownShowsMenu(t *testing.T) {
	for _, tc := range []struct {
		name string
		send func(h *harness, t *testing.T) router.Outcome
	}{
		{"button", func(h *harness, t *testing.T) router.Outcome { return h.button(t, btnDocuments) }},
		{"category text", func(h *harness, t *testing.T) router.Outcome { return h.text(t, "payslips") }},
		{"category row", func(h *harness, t *testing.T) router.Outcome { return h.row(t, "doc_type_payslips") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, failingDocs{docs.NewMemStore(nil)})
			if out := tc.send(h, t); out != router.OutcomeHandled {
				t.Fatalf("outcome = %v", out)
			}
			sent := h.out.Sent()
			if len(sent) != 2 || sent[0].Text != docsListErrText {
				t.Fatalf("sent = %+v", sent)
			}
			if sent[1].Text != mainMenuText || strings.Join(buttonIDs(sent[1]), ",") != "docs_btn,ask_btn,hr_btn" {
				t.Fatalf("menu = %+v", sent[1])
			}
		})
	}
}

func TestDocumentsMissingFileRefreshesListing(t *testing.T) {
	mem := docs.NewMemStore(nil)
	h := newHarness(t, docs.NewCache(mem, time.Hour))
	mem.Put(personal("Payslip_2025.11.pdf"), []byte("%PDF"))
	mem.Put(personal("Payslip_2025.12.pdf"), []byte("%PDF"))

	h.text(t, "payslip")
	h.text(t, "payslip")
	if n := mem.ListCalls(); n != 1 {
		t.Fatalf("list calls = %d, want 1 while cached", n)
	}

	h.row(t, "doc_file_Payslip_2026.01.pdf")
	if got := h.out.Last().Text; got != docsMissingText {
		t.Fatalf("reply = %q", got)
	}
	mem.Put(personal("Payslip_2026.01.pdf"), []byte("%PDF"))

	h.text(t, "payslip")
	if n := mem.ListCalls(); n != 2 {
		t.Fatalf("list calls = %d, want 2 after a missing file", n)
	}
	rows := h.out.Last().List.Sections[0].Rows
	if len(rows) != 3 || rows[0].ID != "doc_file_Payslip_2026.01.pdf" {
		t.Fatalf("rows = %+v", rows)
	}
}

// --- query tests ---

func seedPolicies(h *harness) {
	shared := docs.SharedPrefix("acme")
	h.docs.Put(shared+"Leave_Policy.json", []byte(`{"content":"Employees get 21 days of annual leave."}`))
	h.docs.Put(shared+"Leave_Policy.pdf", []byte("%PDF"))
	h.docs.Put(shared+"SOP-HR-001.pdf", []byte("%PDF"))
	h.docs.Put(shared+"Travel_Policy.json", []byte(`{"content":"Book economy."}`))
	h.docs.Put(personal("Benefits_Guide.json"), []byte(`{"content":"Medical aid."}`))
	h.docs.Put(personal("queries.json"), []byte(`[]`))
}

func TestGlobalQueryPipeline(t *testing.T) {
	h := newHarness(t, nil)
	seedPolicies(h)
	leave := docs.SharedPrefix("acme") + "Leave_Policy.json"
	h.engine.interpret = map[string]string{"leav polcy": "leave policy"}
	h.engine.selected = []string{leave}
	h.engine.summaries = map[string]string{leave: "**Leave policy** - Relevance: High\n21 days. See SOP-HR-001."}

	h.button(t, btnAsk)
	if h.state(t).Flow != session.FlowAwaitingQuery {
		t.Fatal("ask button should start the question flow")
	}
	h.out.Reset()

	if out := h.text(t, "leav polcy"); out != router.OutcomeHandled {
		t.Fatalf("outcome = %v", out)
	}
	texts := h.out.Texts()
	want := []string{
		queryStartText,
		"Interpreted 'leav polcy' as 'leave policy' for better results. If incorrect, rerun with exact spelling.",
		querySelectText,
		querySummaryText,
		"**Leave policy** - Relevance: High\n21 days. See SOP-HR-001.",
		"Relevant PDF",
		"Mentioned: SOP-HR-001",
		feedbackPrompt,
	}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Fatalf("texts =\n%q\nwant\n%q", texts, want)
	}

	cands := h.engine.candidates
	if len(cands) != 3 || cands[0].Key != personal("Benefits_Guide.json") {
		t.Fatalf("candidates = %+v", cands)
	}
	for _, c := range cands {
		if c.Key == leave && c.Snippet != "Employees get 21 days of annual leave." {
			t.Fatalf("snippet = %q", c.Snippet)
		}
	}

	st := h.state(t)
	if st.Flow.Active() || st.PendingFeedback == nil || !strings.Contains(st.PendingFeedback.Answer, "21 days") {
		t.Fatalf("state = %+v", st)
	}
	if q := h.mem.Queries(); len(q) != 1 || q[0].Query != "leav polcy" {
		t.Fatalf("query log = %+v", q)
	}
}

func TestGlobalQueryRanksSummaries(t *testing.T) {
	h := newHarness(t, nil)
	seedPolicies(h)
	shared := docs.SharedPrefix("acme")
	h.engine.selected = []string{shared + "Travel_Policy.json", shared + "Leave_Policy.json"}
	h.engine.summaries = map[string]string{
		shared + "Travel_Policy.json": "travel - Relevance: Low",
		shared + "Leave_Policy.json":  "leave - Relevance: High",
	}
	h.text(t, "what is the leave policy")
	texts := h.out.Texts()
	if texts[3] != "leave - Relevance: High\n\ntravel - Relevance: Low" {
		t.Fatalf("combined = %q", texts[3])
	}
}

func TestGlobalQueryFailures(t *testing.T) {
	t.Run("no selection", func(t *testing.T) {
		h := newHarness(t, nil)
		seedPolicies(h)
		h.engine.selectErr = errors.New("model timeout")
		h.text(t, "parking rules")
		texts := h.out.Texts()
		if texts[len(texts)-2] != queryNoMatchText || texts[len(texts)-1] != feedbackPrompt {
			t.Fatalf("texts = %q", texts)
		}
		if pf := h.state(t).PendingFeedback; pf == nil || pf.Answer != queryNoMatchText {
			t.Fatalf("pending = %+v", pf)
		}
	})
	t.Run("no documents", func(t *testing.T) {
		h := newHarness(t, nil)
		h.text(t, "parking rules")
		if texts := h.out.Texts(); texts[1] != queryNoMatchText {
			t.Fatalf("texts = %q", texts)
		}
	})
	t.Run("store down", func(t *testing.T) {
		h := newHarness(t, failingDocs{docs.NewMemStore(nil)})
		if out := h.text(t, "parking rules"); out != router.OutcomeHandled {
			t.Fatalf("outcome = %v", out)
		}
		if texts := h.out.Texts(); texts[1] != queryDownText {
			t.Fatalf("texts = %q", texts)
		}
	})
}

func TestPersonalQuery(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.scope = answer.ScopePersonal
	h.docs.Put(personal("Payslip_2025.11.pdf"), []byte("%PDF"))
	h.docs.Put(personal("Payslip_2025.12.pdf"), []byte("%PDF"))

	h.text(t, "where is my latest salary slip")
	sent := h.out.Sent()
	if len(sent) != 4 {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].Text != "Here's your latest payslip (Payslip_2025.12). For more, check Documents menu." {
		t.Fatalf("text = %q", sent[0].Text)
	}
	if sent[1].Document == nil || sent[1].Document.Caption != "Latest Payslip" {
		t.Fatalf("document = %+v", sent[1])
	}
	if sent[2].Text != moreOptionsText || sent[3].Text != feedbackPrompt {
		t.Fatalf("buttons = %+v", sent[2:])
	}
}

func TestPersonalQueryWithoutFiles(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.scope = answer.ScopePersonal
	h.text(t, "my salary slip")
	if got := h.out.Texts()[0]; got != "No payslips found. Contact HR or check Documents menu." {
		t.Fatalf("reply = %q", got)
	}
}

func TestPersonalQueryStoreDown(t *testing.T) {
	h := newHarness(t, failingDocs{docs.NewMemStore(nil)})
	h.engine.scope = answer.ScopePersonal
	if out := h.text(t, "where is my latest salary slip"); out != router.OutcomeHandled {
		t.Fatalf("outcome = %v", out)
	}
	sent := h.out.Sent()
	if len(sent) != 2 || sent[0].Text != personalErrText || sent[1].Text != feedbackPrompt {
		t.Fatalf("sent = %+v", sent)
	}
	if pf := h.state(t).PendingFeedback; pf == nil || pf.Answer != personalErrText {
		t.Fatalf("pending = %+v", pf)
	}
}

func TestQueryTooLong(t *testing.T) {
	h := newHarness(t, nil)
	h.text(t, strings.Repeat("why ", 300))
	if got := h.out.Last().Text; !strings.HasPrefix(got, "Your question is too long") {
		t.Fatalf("reply = %q", got)
	}
}
