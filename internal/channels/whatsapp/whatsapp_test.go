package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/config"
)

// --- payload tests ---

func TestButtonsMessageTruncatesTitles(t *testing.T) {
	m, err := ButtonsMessage("27820000001", "Pick one", []channels.Button{
		{ID: "a", Title: "A very long button title indeed"},
		{ID: "b", Title: "Short"},
	})
	if err != nil {
		t.Fatalf("ButtonsMessage: %v", err)
	}
	if m.Type != "interactive" || m.Interactive.Type != "button" || m.MessagingProduct != "whatsapp" {
		t.Fatalf("message = %+v", m)
	}
	title := m.Interactive.Action.Buttons[0].Reply.Title
	if len([]rune(title)) > channels.MaxButtonTitle || !strings.HasSuffix(title, "…") {
		t.Fatalf("title = %q", title)
	}
	if _, err := ButtonsMessage("27820000001", "x", nil); err == nil {
		t.Fatal("expected error for no buttons")
	}
}

func TestListMessageShape(t *testing.T) {
	m, err := ListMessage("27820000001", channels.List{
		Header:   "Documents 📄",
		Body:     "Select a document type:",
		Footer:   "Back to menu? Type 'menu'",
		Sections: []channels.Section{{Title: "Document Types", Rows: []channels.Row{{ID: "doc_type_payslips", Title: "Payslips 💰", Description: "2 available"}}}},
	})
	if err != nil {
		t.Fatalf("ListMessage: %v", err)
	}
	raw, _ := json.Marshal(m)
	for _, want := range []string{
		`"type":"list"`,
		`"button":"Select"`,
		`"header":{"type":"text","text":"Documents 📄"}`,
		`"footer":{"text":"Back to menu? Type 'menu'"}`,
		`"id":"doc_type_payslips"`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("payload missing %s:\n%s", want, raw)
		}
	}
}

// --- cloud tests ---

type graphStub struct {
	mu     sync.Mutex
	bodies []Message
	auth   []string
	paths  []string
	status int
	reply  string
}

func (g *graphStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var m Message
	_ = json.Unmarshal(data, &m)
	g.mu.Lock()
	g.bodies = append(g.bodies, m)
	g.auth = append(g.auth, r.Header.Get("Authorization"))
	g.paths = append(g.paths, r.URL.Path)
	status, reply := g.status, g.reply
	g.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
		reply = `{"messages":[{"id":"wamid.out"}]}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func newTestCloud(t *testing.T, stub *graphStub) *Cloud {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	c, err := NewCloud(CloudOptions{BaseURL: srv.URL, Version: "v21.0", PhoneNumberID: "1055", AccessToken: "tok", SendRate: 100, SendBurst: 10})
	if err != nil {
		t.Fatalf("NewCloud: %v", err)
	}
	return c
}

func TestCloudSends(t *testing.T) {
	stub := &graphStub{}
	c := newTestCloud(t, stub)
	ctx := context.Background()

	if err := c.SendText(ctx, "27820000001", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if err := c.SendDocument(ctx, "27820000001", channels.Document{Link: "https://x/y.pdf", Filename: "y.pdf", Caption: "Your y.pdf"}); err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if err := c.SendButtons(ctx, "27820000001", "Was this helpful?", []channels.Button{{ID: "feedback_yes", Title: "Yes 👍"}}); err != nil {
		t.Fatalf("SendButtons: %v", err)
	}

	if len(stub.bodies) != 3 {
		t.Fatalf("requests = %d", len(stub.bodies))
	}
	if stub.paths[0] != "/v21.0/1055/messages" || stub.auth[0] != "Bearer tok" {
		t.Fatalf("path %q auth %q", stub.paths[0], stub.auth[0])
	}
	if b := stub.bodies[0]; b.Type != "text" || b.Text.Body != "hello" || b.To != "27820000001" {
		t.Fatalf("text body = %+v", b)
	}
	if d := stub.bodies[1].Document; d == nil || d.Filename != "y.pdf" || d.Caption != "Your y.pdf" {
		t.Fatalf("document body = %+v", stub.bodies[1])
	}
}

func TestCloudSplitsLongText(t *testing.T) {
	stub := &graphStub{}
	c := newTestCloud(t, stub)
	long := strings.Repeat("a", channels.MaxTextBody) + "\n\n" + "tail"
	if err := c.SendText(context.Background(), "27820000001", long); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if len(stub.bodies) != 2 || stub.bodies[1].Text.Body != "tail" {
		t.Fatalf("bodies = %d", len(stub.bodies))
	}
}

func TestCloudAPIError(t *testing.T) {
	stub := &graphStub{status: http.StatusBadRequest, reply: `{"error":{"message":"Recipient not in allowed list","code":131030,"fbtrace_id":"Abc"}}`}
	c := newTestCloud(t, stub)
	err := c.SendText(context.Background(), "27820000001", "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Status != 400 || apiErr.Code != 131030 || apiErr.FBTraceID != "Abc" {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestNewCloudRequiresCredentials(t *testing.T) {
	if _, err := NewCloud(CloudOptions{PhoneNumberID: "1"}); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestFactory(t *testing.T) {
	ch, err := New(config.WhatsAppConfig{Transport: "cloud", PhoneNumberID: "1", AccessToken: "t"}, nil)
	if err != nil || ch.Name() != "cloud" {
		t.Fatalf("cloud: %v %v", ch, err)
	}
	ch, err = New(config.WhatsAppConfig{Transport: "bridge", BridgeURL: "ws://127.0.0.1:1/ws"}, nil)
	if err != nil || ch.Name() != "bridge" {
		t.Fatalf("bridge: %v %v", ch, err)
	}
	if _, err := New(config.WhatsAppConfig{Transport: "carrier-pigeon"}, nil); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

// --- bridge tests ---

func TestBridgeRelaysBothWays(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan frame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"webhook","body":{"object":"whatsapp_business_account"}}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if json.Unmarshal(data, &f) == nil {
				frames <- f
			}
		}
	}))
	defer srv.Close()

	inbound := make(chan string, 1)
	b, err := NewBridge("ws"+strings.TrimPrefix(srv.URL, "http"), func(_ context.Context, body []byte) {
		inbound <- string(body)
	})
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case body := <-inbound:
		if body != `{"object":"whatsapp_business_account"}` {
			t.Fatalf("inbound = %s", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound webhook relayed")
	}

	if err := b.SendText(ctx, "27820000001", "hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	select {
	case f := <-frames:
		if f.Type != frameSend || f.Payload == nil || f.Payload.Text.Body != "hi" {
			t.Fatalf("frame = %+v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received by bridge")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := b.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if b.IsRunning() {
		t.Fatal("bridge still running after Stop")
	}
}

func TestBridgeSendWithoutConnection(t *testing.T) {
	b, _ := NewBridge("ws://127.0.0.1:1/ws", nil)
	if err := b.SendText(context.Background(), "27820000001", "hi"); err == nil {
		t.Fatal("expected error when not connected")
	}
}
