package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalization outcomes. Callers acknowledge the webhook in every case.
var (
	ErrMalformed     = errors.New("malformed webhook payload")
	ErrNotMessage    = errors.New("webhook carries no message")
	ErrSelfMessage   = errors.New("message sent by the bot number")
	ErrInvalidSender = errors.New("sender id has an invalid shape")
)

type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []webhookContact  `json:"contacts"`
	Messages         []webhookMessage  `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
	hasMessages      bool
}

func (v *webhookValue) UnmarshalJSON(data []byte) error {
	type plain webhookValue
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, p.hasMessages = keys["messages"]
	*v = webhookValue(p)
	return nil
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	// Quick-reply buttons on template messages arrive as type "button".
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
}

// Normalize turns a raw webhook body into an Event. Only the first message
// of the first change of the first entry is considered.
func Normalize(body []byte, botNumber string) (Event, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return Event{}, fmt.Errorf("%w: no entry/changes", ErrMalformed)
	}
	value := p.Entry[0].Changes[0].Value
	if !value.hasMessages {
		return Event{}, ErrNotMessage
	}
	if len(value.Messages) == 0 {
		return Event{}, fmt.Errorf("%w: empty messages array", ErrMalformed)
	}

	m := value.Messages[0]
	if m.From == "" || m.ID == "" || m.Type == "" || m.Timestamp == "" {
		return Event{}, fmt.Errorf("%w: message missing from/id/type/timestamp", ErrMalformed)
	}
	secs, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, m.Timestamp)
	}

	if botNumber != "" && m.From == botNumber {
		return Event{}, ErrSelfMessage
	}
	if !ValidSender(m.From) {
		return Event{}, ErrInvalidSender
	}

	ev := Event{
		SenderID:   m.From,
		MessageID:  m.ID,
		RawType:    m.Type,
		ReceivedAt: time.Unix(secs, 0),
	}
	for _, c := range value.Contacts {
		if c.WaID == m.From {
			ev.ContactName = c.Profile.Name
			break
		}
	}

	switch m.Type {
	case "text":
		if m.Text == nil {
			return Event{}, fmt.Errorf("%w: text message without body", ErrMalformed)
		}
		ev.Kind = KindText
		ev.Text = m.Text.Body
	case "interactive":
		if m.Interactive == nil {
			return Event{}, fmt.Errorf("%w: interactive message without payload", ErrMalformed)
		}
		switch {
		case m.Interactive.Type == string(SelectionButton) && m.Interactive.ButtonReply != nil:
			ev.Kind = KindInteractive
			ev.Selection = Selection{
				Type:  SelectionButton,
				ID:    m.Interactive.ButtonReply.ID,
				Title: m.Interactive.ButtonReply.Title,
			}
		case m.Interactive.Type == string(SelectionList) && m.Interactive.ListReply != nil:
			ev.Kind = KindInteractive
			ev.Selection = Selection{
				Type:        SelectionList,
				ID:          m.Interactive.ListReply.ID,
				Title:       m.Interactive.ListReply.Title,
				Description: m.Interactive.ListReply.Description,
			}
		case m.Interactive.Type == string(SelectionButton) || m.Interactive.Type == string(SelectionList):
			return Event{}, fmt.Errorf("%w: %s without reply body", ErrMalformed, m.Interactive.Type)
		default:
			ev.Kind = KindUnsupported
		}
	case "button":
		if m.Button == nil {
			return Event{}, fmt.Errorf("%w: button message without payload", ErrMalformed)
		}
		ev.Kind = KindInteractive
		ev.Selection = Selection{Type: SelectionButton, ID: m.Button.Payload, Title: m.Button.Text}
	default:
		ev.Kind = KindUnsupported
	}

	if ev.Kind == KindInteractive && strings.TrimSpace(ev.Selection.ID) == "" {
		return Event{}, fmt.Errorf("%w: selection without id", ErrMalformed)
	}
	return ev, nil
}
