package telephony

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"voicedesk/internal/calls"
)

// StatusCallbackForm captures the subset of voice status callback fields we
// care about. Providers send application/x-www-form-urlencoded by default.
//
// Keep it minimal and provider-adapter-only.
// Business logic (lifecycle decisions) is not made here.

type StatusCallbackForm struct {
	CallSid           string
	AccountSid        string
	From              string
	To                string
	Direction         string
	CallStatus        string
	CallDuration      string
	RecordingURL      string
	TranscriptionText string
	CallerName        string
	Timestamp         string
	ApiVersion        string
}

func ParseStatusCallback(r *http.Request) (StatusCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallbackForm{}, err
	}
	f := StatusCallbackForm{
		CallSid:           r.PostFormValue("CallSid"),
		AccountSid:        r.PostFormValue("AccountSid"),
		From:              normalizePhone(r.PostFormValue("From")),
		To:                normalizePhone(r.PostFormValue("To")),
		Direction:         r.PostFormValue("Direction"),
		CallStatus:        r.PostFormValue("CallStatus"),
		CallDuration:      r.PostFormValue("CallDuration"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
		TranscriptionText: r.PostFormValue("TranscriptionText"),
		CallerName:        r.PostFormValue("CallerName"),
		Timestamp:         r.PostFormValue("Timestamp"),
		ApiVersion:        r.PostFormValue("ApiVersion"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Providers sometimes send "anonymous" or empty; keep as-is.
	return s
}

// DurationSeconds parses CallDuration, returning 0 for absent or garbage
// values rather than failing the whole delivery.
func (f StatusCallbackForm) DurationSeconds() int {
	n, err := strconv.Atoi(strings.TrimSpace(f.CallDuration))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// OccurredAt parses the provider event timestamp. Providers send RFC 1123
// with a numeric zone; a missing or unparseable value falls back to now.
func (f StatusCallbackForm) OccurredAt(now time.Time) time.Time {
	if f.Timestamp == "" {
		return now
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, f.Timestamp); err == nil {
			return t.UTC()
		}
	}
	return now
}

// MapProviderStatus translates provider callback statuses to internal ones.
// Unknown values return ok=false and must not mutate any record.
func MapProviderStatus(providerStatus string) (calls.CallStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "queued", "initiated", "ringing":
		return calls.StatusRinging, true
	case "in-progress", "answered":
		return calls.StatusInProgress, true
	case "completed":
		return calls.StatusCompleted, true
	case "busy", "no-answer":
		return calls.StatusMissed, true
	case "failed", "canceled":
		return calls.StatusFailed, true
	default:
		return "", false
	}
}

// MapProviderDirection translates provider direction strings. Anything
// outbound-ish ("outbound-api", "outbound-dial") maps to outbound; the rest
// defaults to inbound.
func MapProviderDirection(providerDirection string) calls.Direction {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(providerDirection)), "outbound") {
		return calls.DirectionOutbound
	}
	return calls.DirectionInbound
}
