// Package channels defines the outbound messaging contract used by the
// router and handlers, plus helpers shared by transport implementations.
package channels

import (
	"context"
	"fmt"
	"sync/atomic"
)

// WhatsApp interactive message limits.
const (
	MaxButtons         = 3
	MaxButtonTitle     = 20
	MaxSections        = 10
	MaxRowsPerSection  = 10
	MaxRowTitle        = 24
	MaxRowDescription  = 72
	MaxListButtonLabel = 20
	MaxHeaderText      = 60
	MaxTextBody        = 4096
)

// Button is one reply button.
type Button struct {
	ID    string
	Title string
}

// Row is one selectable list entry.
type Row struct {
	ID          string
	Title       string
	Description string
}

// Section groups list rows under a title.
type Section struct {
	Title string
	Rows  []Row
}

// List is an interactive list message.
type List struct {
	Header   string
	Body     string
	Footer   string
	Button   string // label of the button that opens the list; default "Select"
	Sections []Section
}

// Document is a file delivered by link.
type Document struct {
	Link     string
	Filename string
	Caption  string
}

// Messenger sends messages to one WhatsApp user at a time.
// Every method returns an error when the provider rejects the message.
type Messenger interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	SendList(ctx context.Context, to string, list List) error
	SendDocument(ctx context.Context, to string, doc Document) error
}

// Channel is a transport with a lifecycle.
type Channel interface {
	Messenger

	// Name returns the transport identifier ("cloud", "bridge").
	Name() string

	// Start begins background work. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the transport.
	Stop(ctx context.Context) error

	// IsRunning returns whether the transport is active.
	IsRunning() bool
}

// BaseChannel provides the lifecycle bookkeeping shared by transports.
type BaseChannel struct {
	name    string
	running atomic.Bool
}

// NewBaseChannel creates a BaseChannel with the given name.
func NewBaseChannel(name string) *BaseChannel {
	return &BaseChannel{name: name}
}

func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// ValidateButtons enforces the reply button limits.
func ValidateButtons(buttons []Button) error {
	if len(buttons) == 0 || len(buttons) > MaxButtons {
		return fmt.Errorf("button message needs 1-%d buttons, got %d", MaxButtons, len(buttons))
	}
	seen := make(map[string]bool, len(buttons))
	for _, b := range buttons {
		if b.ID == "" {
			return fmt.Errorf("button %q has no id", b.Title)
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate button id %q", b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}

// ValidateList enforces the list message limits.
func ValidateList(l List) error {
	if len(l.Sections) == 0 || len(l.Sections) > MaxSections {
		return fmt.Errorf("list needs 1-%d sections, got %d", MaxSections, len(l.Sections))
	}
	total := 0
	for _, s := range l.Sections {
		if len(s.Rows) == 0 || len(s.Rows) > MaxRowsPerSection {
			return fmt.Errorf("section %q needs 1-%d rows, got %d", s.Title, MaxRowsPerSection, len(s.Rows))
		}
		total += len(s.Rows)
	}
	if total > MaxRowsPerSection {
		return fmt.Errorf("list has %d rows, WhatsApp allows %d in total", total, MaxRowsPerSection)
	}
	return nil
}
