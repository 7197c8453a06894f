// Package whatsapp implements channels.Channel on top of the WhatsApp
// Cloud API, either directly over HTTPS or through a WebSocket bridge
// that relays the same payloads.
package whatsapp

import (
	"github.com/nextlevelbuilder/hrdesk/internal/channels"
)

// Message is one Cloud API send request body.
type Message struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *Text        `json:"text,omitempty"`
	Interactive      *Interactive `json:"interactive,omitempty"`
	Document         *Document    `json:"document,omitempty"`
}

type Text struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type Interactive struct {
	Type   string            `json:"type"` // "button" or "list"
	Header *Header           `json:"header,omitempty"`
	Body   TextOnly          `json:"body"`
	Footer *TextOnly         `json:"footer,omitempty"`
	Action InteractiveAction `json:"action"`
}

type Header struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type TextOnly struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Buttons  []ReplyButton `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []Section     `json:"sections,omitempty"`
}

type ReplyButton struct {
	Type  string     `json:"type"`
	Reply ButtonInfo `json:"reply"`
}

type ButtonInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Section struct {
	Title string `json:"title,omitempty"`
	Rows  []Row  `json:"rows"`
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Document struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

func newMessage(to, typ string) Message {
	return Message{MessagingProduct: "whatsapp", RecipientType: "individual", To: to, Type: typ}
}

// TextMessage builds a plain text message.
func TextMessage(to, body string) Message {
	m := newMessage(to, "text")
	m.Text = &Text{Body: body}
	return m
}

// ButtonsMessage builds a reply-button message. Titles are cut to the
// provider limit.
func ButtonsMessage(to, body string, buttons []channels.Button) (Message, error) {
	if err := channels.ValidateButtons(buttons); err != nil {
		return Message{}, err
	}
	rb := make([]ReplyButton, len(buttons))
	for i, b := range buttons {
		rb[i] = ReplyButton{Type: "reply", Reply: ButtonInfo{ID: b.ID, Title: channels.Fit(b.Title, channels.MaxButtonTitle)}}
	}
	m := newMessage(to, "interactive")
	m.Interactive = &Interactive{
		Type:   "button",
		Body:   TextOnly{Text: body},
		Action: InteractiveAction{Buttons: rb},
	}
	return m, nil
}

// ListMessage builds an interactive list message.
func ListMessage(to string, l channels.List) (Message, error) {
	if err := channels.ValidateList(l); err != nil {
		return Message{}, err
	}
	label := l.Button
	if label == "" {
		label = "Select"
	}
	secs := make([]Section, len(l.Sections))
	for i, s := range l.Sections {
		rows := make([]Row, len(s.Rows))
		for j, r := range s.Rows {
			rows[j] = Row{
				ID:          r.ID,
				Title:       channels.Fit(r.Title, channels.MaxRowTitle),
				Description: channels.Fit(r.Description, channels.MaxRowDescription),
			}
		}
		secs[i] = Section{Title: channels.Fit(s.Title, channels.MaxRowTitle), Rows: rows}
	}
	in := &Interactive{
		Type:   "list",
		Body:   TextOnly{Text: l.Body},
		Action: InteractiveAction{Button: channels.Fit(label, channels.MaxListButtonLabel), Sections: secs},
	}
	if l.Header != "" {
		in.Header = &Header{Type: "text", Text: channels.Fit(l.Header, channels.MaxHeaderText)}
	}
	if l.Footer != "" {
		in.Footer = &TextOnly{Text: channels.Fit(l.Footer, channels.MaxHeaderText)}
	}
	m := newMessage(to, "interactive")
	m.Interactive = in
	return m, nil
}

// DocumentMessage builds a document message delivered by link.
func DocumentMessage(to string, d channels.Document) Message {
	m := newMessage(to, "document")
	m.Document = &Document{Link: d.Link, Filename: d.Filename, Caption: d.Caption}
	return m
}

// textMessages splits long bodies into several messages.
func textMessages(to, body string) []Message {
	parts := channels.SplitText(body, channels.MaxTextBody)
	if len(parts) == 0 {
		parts = []string{body}
	}
	out := make([]Message, len(parts))
	for i, p := range parts {
		out[i] = TextMessage(to, p)
	}
	return out
}
