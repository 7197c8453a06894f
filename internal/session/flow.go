package session

import "strings"

// Flow names the multi-turn conversation a sender is currently in.
// The set is closed: every value has exactly one owning handler.
type Flow uint8

const (
	FlowNone Flow = iota
	FlowAwaitingQuery
	FlowAwaitingHRQuery
	FlowAwaitingFeedbackComment
)

var flowLabels = [...]string{
	FlowNone:                    "",
	FlowAwaitingQuery:           "awaiting-query",
	FlowAwaitingHRQuery:         "awaiting-hr-query",
	FlowAwaitingFeedbackComment: "awaiting-feedback-comment",
}

// Labels written by earlier deployments that stored free-form context strings.
var legacyFlowLabels = map[string]Flow{
	"query":            FlowAwaitingQuery,
	"sop_query":        FlowAwaitingQuery,
	"hr_query":         FlowAwaitingHRQuery,
	"feedback_comment": FlowAwaitingFeedbackComment,
}

// Flows returns every active flow (FlowNone excluded).
func Flows() []Flow {
	return []Flow{FlowAwaitingQuery, FlowAwaitingHRQuery, FlowAwaitingFeedbackComment}
}

func (f Flow) String() string {
	if int(f) < len(flowLabels) {
		if f == FlowNone {
			return "none"
		}
		return flowLabels[f]
	}
	return "unknown"
}

// Label is the persisted form; FlowNone has an empty label.
func (f Flow) Label() string {
	if int(f) < len(flowLabels) {
		return flowLabels[f]
	}
	return ""
}

// Active reports whether a flow is in progress.
func (f Flow) Active() bool { return f != FlowNone }

// ParseFlow maps a persisted label to a Flow. Unknown labels map to
// FlowNone with ok=false: stale context is abandoned.
func ParseFlow(label string) (f Flow, ok bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return FlowNone, true
	}
	for i, l := range flowLabels {
		if i > 0 && l == label {
			return Flow(i), true
		}
	}
	if f, found := legacyFlowLabels[label]; found {
		return f, true
	}
	return FlowNone, false
}
