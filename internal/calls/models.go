package calls

import "time"

// CallRecord represents one phone call handled by an AI agent and its outcome.
//
// Ownership invariant: every read/update/delete must be filtered by the owning
// (user_id, org_id) pair. An empty OrgID means personal scope. Cross-tenant
// access by record id alone is never allowed.
//
// Provider correlation: ProviderCallID is the telephony vendor's session id
// (e.g. a Twilio CallSid). It is optional but unique among non-empty values,
// and is how independent webhook deliveries find their record.
type CallRecord struct {
	ID    string `json:"id" db:"id"`
	Scope Scope  `json:"-"`

	AgentID        string `json:"agent_id" db:"agent_id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	Direction  Direction `json:"direction" db:"direction"`
	FromNumber string    `json:"from_number,omitempty" db:"from_number"`
	CallerName string    `json:"caller_name,omitempty" db:"caller_name"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is the call duration in seconds. Zero until the call ends.
	DurationSeconds int `json:"duration" db:"duration"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`

	Sentiment Sentiment `json:"sentiment,omitempty" db:"sentiment"`
	// Topics holds at most MaxTopics entries.
	Topics  []string `json:"topics,omitempty" db:"topics"`
	Summary string   `json:"summary,omitempty" db:"summary"`
	Notes   string   `json:"notes,omitempty" db:"notes"`

	// CollectedData holds free-form key/value pairs gathered during the call
	// (stored as JSONB).
	CollectedData map[string]string `json:"collected_data,omitempty" db:"collected_data"`

	// CostMinor is the call cost in minor currency units (e.g. cents).
	CostMinor int64 `json:"cost_minor" db:"cost_minor"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// LastEventAt is the provider event time of the last applied lifecycle
	// mutation. Webhook deliveries are at-least-once and unordered; a
	// mutation whose event time is not after this marker is rejected as
	// stale instead of overwriting newer state.
	LastEventAt time.Time `json:"-" db:"last_event_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Scope is the ownership pair every query is filtered by.
// OrgID == "" means personal scope.
type Scope struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id,omitempty"`
}

func (s Scope) Valid() bool { return s.UserID != "" }

// MaxTopics caps the topics list on a call record.
const MaxTopics = 5

type CallStatus string

const (
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusMissed     CallStatus = "missed"
	StatusFailed     CallStatus = "failed"
)

// ValidStatus reports whether s is one of the five lifecycle statuses.
func ValidStatus(s CallStatus) bool {
	switch s {
	case StatusRinging, StatusInProgress, StatusCompleted, StatusMissed, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a sink state; no further transition is
// expected out of it.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusMissed, StatusFailed:
		return true
	default:
		return false
	}
}

// transitions is the allowed lifecycle table. Terminal states have no
// outgoing edges; CompleteCall is the one operation allowed to bypass this
// table (re-completion is idempotent-in-effect).
var transitions = map[CallStatus][]CallStatus{
	StatusRinging:    {StatusInProgress, StatusCompleted, StatusMissed, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusMissed, StatusFailed},
	StatusCompleted:  {},
	StatusMissed:     {},
	StatusFailed:     {},
}

// CanTransition reports whether from → to is an allowed status change.
// Same-status changes are allowed (idempotent re-delivery of an event).
func CanTransition(from, to CallStatus) bool {
	if from == to {
		return true
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func ValidDirection(d Direction) bool {
	return d == DirectionInbound || d == DirectionOutbound
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func ValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	default:
		return false
	}
}

// AnalysisResult is the structured judgment produced from a transcript.
// It is transient: the caller merges it into a completion update.
//
// Status is a proposed terminal status; it is not automatically applied to
// the record's own status field.
type AnalysisResult struct {
	Sentiment  Sentiment  `json:"sentiment"`
	Summary    string     `json:"summary"`
	CallerName *string    `json:"callerName"`
	Topics     []string   `json:"topics"`
	Status     CallStatus `json:"status"`
	Notes      string     `json:"notes"`
}
