package router

import (
	"regexp"
	"time"
)

// Kind classifies an inbound message.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindInteractive
	// KindUnsupported covers media, locations, reactions and other
	// message types no handler understands.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteractive:
		return "interactive"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// SelectionType tells which interactive element the user tapped.
type SelectionType string

const (
	SelectionButton SelectionType = "button_reply"
	SelectionList   SelectionType = "list_reply"
)

// Selection is the payload of an interactive reply.
type Selection struct {
	Type        SelectionType
	ID          string
	Title       string
	Description string
}

// Event is one normalized webhook delivery. It is not modified after
// Normalize returns it.
type Event struct {
	SenderID    string
	MessageID   string
	ContactName string
	Kind        Kind
	Text        string
	Selection   Selection
	RawType     string // provider message type, kept for logging
	ReceivedAt  time.Time
}

var senderPattern = regexp.MustCompile(`^\d{10,15}$`)

// ValidSender reports whether id has the shape of an E.164 number without "+".
func ValidSender(id string) bool { return senderPattern.MatchString(id) }
