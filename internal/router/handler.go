package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// Handler is one responder in the dispatch chain.
//
// Gate is consulted before either Handle method; a handler that is not
// eligible is skipped. A Handle method returns claimed=true when it fully
// handled the event, which stops the chain.
type Handler interface {
	Name() string
	Priority() int
	Gate(t *Turn) bool
	HandleInteractive(ctx context.Context, t *Turn, sel Selection) (claimed bool, err error)
	HandleText(ctx context.Context, t *Turn, text string) (claimed bool, err error)
}

// FlowOwner is implemented by handlers that start and capture multi-turn flows.
type FlowOwner interface {
	OwnedFlows() []session.Flow
}

// Ungated can be embedded for handlers that are always eligible.
type Ungated struct{}

func (Ungated) Gate(*Turn) bool { return true }

// sortHandlers orders by descending priority. Equal priorities keep
// registration order.
func sortHandlers(hs []Handler) []Handler {
	out := make([]Handler, len(hs))
	copy(out, hs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}

// checkFlowOwnership verifies that every flow has exactly one owner.
func checkFlowOwnership(hs []Handler) error {
	owners := make(map[session.Flow][]string)
	for _, h := range hs {
		fo, ok := h.(FlowOwner)
		if !ok {
			continue
		}
		for _, f := range fo.OwnedFlows() {
			if !f.Active() {
				return fmt.Errorf("handler %s claims ownership of the empty flow", h.Name())
			}
			owners[f] = append(owners[f], h.Name())
		}
	}
	var problems []string
	for _, f := range session.Flows() {
		switch n := len(owners[f]); {
		case n == 0:
			problems = append(problems, fmt.Sprintf("flow %s has no owner", f))
		case n > 1:
			problems = append(problems, fmt.Sprintf("flow %s has several owners: %s", f, strings.Join(owners[f], ", ")))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("handler registry: %s", strings.Join(problems, "; "))
	}
	return nil
}
