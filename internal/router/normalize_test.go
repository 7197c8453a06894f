package router

import (
	"errors"
	"fmt"
	"testing"
)

const botNumber = "27829999999"

func envelope(value string) []byte {
	return []byte(`{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":` + value + `}]}]}`)
}

func messagePayload(from, id, msg string) []byte {
	return envelope(fmt.Sprintf(
		`{"messaging_product":"whatsapp","contacts":[{"wa_id":%q,"profile":{"name":"Thandi"}}],"messages":[{"from":%q,"id":%q,"timestamp":"1760000000",%s}]}`,
		from, from, id, msg))
}

func textPayload(from, id, body string) []byte {
	return messagePayload(from, id, fmt.Sprintf(`"type":"text","text":{"body":%q}`, body))
}

func buttonPayload(from, id, buttonID, title string) []byte {
	return messagePayload(from, id, fmt.Sprintf(
		`"type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":%q,"title":%q}}`, buttonID, title))
}

func listPayload(from, id, rowID, title string) []byte {
	return messagePayload(from, id, fmt.Sprintf(
		`"type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":%q,"title":%q,"description":"Tap to download"}}`, rowID, title))
}

func TestNormalizeMessages(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		kind    Kind
		text    string
		selType SelectionType
		selID   string
	}{
		{"text", textPayload("27820000001", "wamid.1", "Hi"), KindText, "Hi", "", ""},
		{"empty text body", textPayload("27820000001", "wamid.1", ""), KindText, "", "", ""},
		{"button reply", buttonPayload("27820000001", "wamid.2", "docs_btn", "Documents 📄"), KindInteractive, "", SelectionButton, "docs_btn"},
		{"list reply", listPayload("27820000001", "wamid.3", "doc_type_payslips", "Payslips 💰"), KindInteractive, "", SelectionList, "doc_type_payslips"},
		{"template quick reply", messagePayload("27820000001", "wamid.4", `"type":"button","button":{"payload":"main_menu_btn","text":"Menu"}`), KindInteractive, "", SelectionButton, "main_menu_btn"},
		{"image", messagePayload("27820000001", "wamid.5", `"type":"image","image":{"id":"x"}`), KindUnsupported, "", "", ""},
		{"nfm reply", messagePayload("27820000001", "wamid.6", `"type":"interactive","interactive":{"type":"nfm_reply"}`), KindUnsupported, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize(tt.body, botNumber)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if ev.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", ev.Kind, tt.kind)
			}
			if ev.Text != tt.text {
				t.Errorf("Text = %q, want %q", ev.Text, tt.text)
			}
			if ev.Selection.Type != tt.selType || ev.Selection.ID != tt.selID {
				t.Errorf("Selection = %+v", ev.Selection)
			}
			if ev.SenderID != "27820000001" || ev.ContactName != "Thandi" {
				t.Errorf("sender = %q (%q)", ev.SenderID, ev.ContactName)
			}
			if ev.ReceivedAt.Unix() != 1760000000 {
				t.Errorf("ReceivedAt = %v", ev.ReceivedAt)
			}
		})
	}
}

func TestNormalizeRejections(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want error
	}{
		{"not json", []byte(`{`), ErrMalformed},
		{"no entry", []byte(`{"entry":[]}`), ErrMalformed},
		{"no changes", []byte(`{"entry":[{"changes":[]}]}`), ErrMalformed},
		{"status callback", envelope(`{"statuses":[{"id":"wamid.1","status":"read"}]}`), ErrNotMessage},
		{"empty messages", envelope(`{"messages":[]}`), ErrMalformed},
		{"missing id", envelope(`{"messages":[{"from":"27820000001","timestamp":"1","type":"text","text":{"body":"x"}}]}`), ErrMalformed},
		{"bad timestamp", envelope(`{"messages":[{"from":"27820000001","id":"a","timestamp":"soon","type":"text","text":{"body":"x"}}]}`), ErrMalformed},
		{"self message", textPayload(botNumber, "wamid.1", "Hi"), ErrSelfMessage},
		{"short sender", textPayload("12345", "wamid.1", "Hi"), ErrInvalidSender},
		{"plus prefixed sender", textPayload("+27820000001", "wamid.1", "Hi"), ErrInvalidSender},
		{"text without body", messagePayload("27820000001", "wamid.1", `"type":"text"`), ErrMalformed},
		{"button reply without body", messagePayload("27820000001", "wamid.1", `"type":"interactive","interactive":{"type":"button_reply"}`), ErrMalformed},
		{"empty selection id", buttonPayload("27820000001", "wamid.1", " ", "x"), ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.body, botNumber)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
