package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// maxUpdateAttempts bounds Turn.Update's reload-and-reapply loop.
const maxUpdateAttempts = 3

// Turn is the context a handler works with for one event: the event, the
// sender's identity and the session state loaded once for this event.
type Turn struct {
	Event    Event
	Identity identity.Identity
	Key      session.Key
	State    *session.State

	// Out sends to the provider. Sends are counted so the router knows
	// whether a turn is safe to replay.
	Out channels.Messenger

	store session.Store
	sent  *atomic.Int32
}

// Sender returns the recipient for replies.
func (t *Turn) Sender() string { return t.Event.SenderID }

// Save persists State. It fails with session.ErrConflict when another
// delivery wrote the session since it was loaded.
func (t *Turn) Save(ctx context.Context) error {
	if err := t.store.Save(ctx, t.Key, t.State); err != nil {
		return fmt.Errorf("save session %s: %w", t.Key, err)
	}
	return nil
}

// Update applies fn to State and saves. On a version conflict it reloads
// the latest state and applies fn again, so fn must only express changes
// that are valid regardless of what a concurrent writer did.
func (t *Turn) Update(ctx context.Context, fn func(st *session.State)) error {
	fn(t.State)
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err = t.store.Save(ctx, t.Key, t.State); err == nil {
			return nil
		}
		if !errors.Is(err, session.ErrConflict) {
			return fmt.Errorf("save session %s: %w", t.Key, err)
		}
		fresh, lerr := t.store.Load(ctx, t.Key)
		if lerr != nil {
			return fmt.Errorf("reload session %s: %w", t.Key, lerr)
		}
		fn(fresh)
		t.State = fresh
	}
	return fmt.Errorf("save session %s: %w", t.Key, err)
}

// Sent returns the number of send attempts made during this turn.
func (t *Turn) Sent() int { return int(t.sent.Load()) }

// countingMessenger counts send attempts for the turn. A failed send may
// still have reached the user, so attempts are what matters for replay.
type countingMessenger struct {
	channels.Messenger
	n *atomic.Int32
}

func (m countingMessenger) SendText(ctx context.Context, to, text string) error {
	m.n.Add(1)
	return m.Messenger.SendText(ctx, to, text)
}

func (m countingMessenger) SendButtons(ctx context.Context, to, body string, buttons []channels.Button) error {
	m.n.Add(1)
	return m.Messenger.SendButtons(ctx, to, body, buttons)
}

func (m countingMessenger) SendList(ctx context.Context, to string, list channels.List) error {
	m.n.Add(1)
	return m.Messenger.SendList(ctx, to, list)
}

func (m countingMessenger) SendDocument(ctx context.Context, to string, doc channels.Document) error {
	m.n.Add(1)
	return m.Messenger.SendDocument(ctx, to, doc)
}
