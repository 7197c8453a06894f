package protocol

// ProtocolVersion is bumped whenever an event payload changes shape.
const ProtocolVersion = 1

// Event types published on the notification exchange.
const (
	EventFeedbackSubmitted = "hr.feedback.v1"
	EventTicketOpened      = "hr.ticket.v1"
)

// Producer identifies this service in event metadata.
const Producer = "hrdesk"

// Feedback verdicts carried in EventFeedbackSubmitted payloads.
const (
	VerdictHelpful    = "helpful"
	VerdictNotHelpful = "not_helpful"
)

// Ticket urgency levels carried in EventTicketOpened payloads.
const (
	UrgencyStandard = "standard"
	UrgencyUrgent   = "urgent"
)

// Employee identifies who an event is about.
type Employee struct {
	TenantID string `json:"tenant_id"`
	SenderID string `json:"sender_id"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
}

// FeedbackSubmitted is the payload of EventFeedbackSubmitted.
type FeedbackSubmitted struct {
	Employee Employee `json:"employee"`
	Query    string   `json:"query"`
	Answer   string   `json:"answer"`
	Verdict  string   `json:"verdict"`
	Comment  string   `json:"comment,omitempty"`
}

// TicketOpened is the payload of EventTicketOpened.
type TicketOpened struct {
	Employee Employee `json:"employee"`
	Urgency  string   `json:"urgency"`
	Query    string   `json:"query"`
}
