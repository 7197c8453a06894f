package handlers

import (
	"context"

	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// Menu answers greetings and the menu button with the main menu. It
// runs first, so a greeting always gets the user out of a flow.
type Menu struct {
	router.Ungated
}

func (*Menu) Name() string  { return "menu" }
func (*Menu) Priority() int { return PriorityMenu }

func (m *Menu) HandleInteractive(ctx context.Context, t *router.Turn, sel router.Selection) (bool, error) {
	if sel.Type != router.SelectionButton || sel.ID != btnMainMenu {
		return false, nil
	}
	return true, m.show(ctx, t)
}

func (m *Menu) HandleText(ctx context.Context, t *router.Turn, text string) (bool, error) {
	if !isGreeting(text) {
		return false, nil
	}
	return true, m.show(ctx, t)
}

func (*Menu) show(ctx context.Context, t *router.Turn) error {
	if t.State.Flow.Active() {
		if err := t.Update(ctx, (*session.State).ClearFlow); err != nil {
			return err
		}
	}
	return sendMainMenu(ctx, t)
}
