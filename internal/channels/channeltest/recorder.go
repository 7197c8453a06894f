// Package channeltest provides a recording Messenger for tests.
package channeltest

import (
	"context"
	"sync"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
)

// Sent is one recorded outbound message. Exactly one of the payload
// fields is set, matching Kind.
type Sent struct {
	Kind     string // "text", "buttons", "list" or "document"
	To       string
	Text     string
	Buttons  []channels.Button
	List     *channels.List
	Document *channels.Document
}

// Recorder implements channels.Messenger by recording every call.
// Fail, when set, is returned from every send after recording it.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail error
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return r.Fail
}

func (r *Recorder) SendText(_ context.Context, to, text string) error {
	return r.record(Sent{Kind: "text", To: to, Text: text})
}

func (r *Recorder) SendButtons(_ context.Context, to, body string, buttons []channels.Button) error {
	if err := channels.ValidateButtons(buttons); err != nil {
		return err
	}
	return r.record(Sent{Kind: "buttons", To: to, Text: body, Buttons: append([]channels.Button(nil), buttons...)})
}

func (r *Recorder) SendList(_ context.Context, to string, list channels.List) error {
	if err := channels.ValidateList(list); err != nil {
		return err
	}
	return r.record(Sent{Kind: "list", To: to, Text: list.Body, List: &list})
}

func (r *Recorder) SendDocument(_ context.Context, to string, doc channels.Document) error {
	return r.record(Sent{Kind: "document", To: to, Text: doc.Caption, Document: &doc})
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// Last returns the most recent message, or a zero Sent.
func (r *Recorder) Last() Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Sent{}
	}
	return r.sent[len(r.sent)-1]
}

// Texts returns the bodies of recorded messages, in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, s := range r.sent {
		out[i] = s.Text
	}
	return out
}
