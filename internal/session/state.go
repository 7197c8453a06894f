package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"time"
)

// Key addresses one sender's conversation within a tenant.
type Key struct {
	TenantID string
	SenderID string
}

func (k Key) String() string { return k.TenantID + ":" + k.SenderID }

// PendingFeedback links a delivered answer to the verdict we are waiting for.
type PendingFeedback struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Helpful *bool  `json:"helpful,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// State is the per-sender conversation document. It is read whole at the
// start of a turn and written whole at the end.
type State struct {
	Flow             Flow
	Urgency          string // HR ticket scratch, only meaningful in FlowAwaitingHRQuery
	PendingFeedback  *PendingFeedback
	LastResponseTime time.Time

	// Extra keeps document keys this version does not know about.
	Extra map[string]json.RawMessage

	// Version is the optimistic-concurrency token; 0 means never stored.
	Version int64
}

const (
	keyContext          = "context"
	keyUrgency          = "urgency"
	keyPendingFeedback  = "pending_feedback"
	keyLastResponseTime = "last_response_time"
)

// SetFlow enters f, discarding scratch fields of the previous flow.
func (s *State) SetFlow(f Flow) {
	if s.Flow != f {
		s.Urgency = ""
	}
	s.Flow = f
}

// ClearFlow leaves the current flow. Pending feedback is kept: it is
// resolved only by the feedback conversation.
func (s *State) ClearFlow() {
	s.Flow = FlowNone
	s.Urgency = ""
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	cp := *s
	if s.PendingFeedback != nil {
		pf := *s.PendingFeedback
		if pf.Helpful != nil {
			h := *pf.Helpful
			pf.Helpful = &h
		}
		cp.PendingFeedback = &pf
	}
	cp.Extra = maps.Clone(s.Extra)
	return &cp
}

// MarshalJSON writes the document with known fields merged over Extra.
func (s State) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Extra)+4)
	for k, v := range s.Extra {
		doc[k] = v
	}
	if s.Flow.Active() {
		doc[keyContext] = s.Flow.Label()
	} else {
		delete(doc, keyContext)
	}
	if s.Urgency != "" {
		doc[keyUrgency] = s.Urgency
	} else {
		delete(doc, keyUrgency)
	}
	if s.PendingFeedback != nil {
		doc[keyPendingFeedback] = s.PendingFeedback
	} else {
		delete(doc, keyPendingFeedback)
	}
	if !s.LastResponseTime.IsZero() {
		doc[keyLastResponseTime] = s.LastResponseTime.UTC().Format(time.RFC3339Nano)
	} else {
		delete(doc, keyLastResponseTime)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a document. Unknown context labels decode as FlowNone.
func (s *State) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode session document: %w", err)
	}
	version := s.Version
	*s = State{Version: version}

	if raw, ok := doc[keyContext]; ok {
		var label string
		if err := json.Unmarshal(raw, &label); err == nil {
			f, known := ParseFlow(label)
			if !known {
				slog.Warn("session: dropping unknown context label", "label", label)
			}
			s.Flow = f
		}
		delete(doc, keyContext)
	}
	if raw, ok := doc[keyUrgency]; ok {
		_ = json.Unmarshal(raw, &s.Urgency)
		delete(doc, keyUrgency)
	}
	if raw, ok := doc[keyPendingFeedback]; ok {
		if string(raw) != "null" {
			var pf PendingFeedback
			if err := json.Unmarshal(raw, &pf); err != nil {
				return fmt.Errorf("decode pending_feedback: %w", err)
			}
			s.PendingFeedback = &pf
		}
		delete(doc, keyPendingFeedback)
	}
	if raw, ok := doc[keyLastResponseTime]; ok {
		var ts string
		if err := json.Unmarshal(raw, &ts); err == nil && ts != "" {
			if t, err := parseTimestamp(ts); err == nil {
				s.LastResponseTime = t
			}
		}
		delete(doc, keyLastResponseTime)
	}
	if len(doc) > 0 {
		s.Extra = doc
	}
	return nil
}

// parseTimestamp accepts RFC 3339 and the offset-less ISO form older
// documents were written with.
func parseTimestamp(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999", ts, time.Local)
}
