package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voicedesk/internal/calls"
)

func TestParseStatusCallback(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&CallStatus=completed&From=%2B15551234567&To=%2B15557654321&CallDuration=61&RecordingUrl=https%3A%2F%2Frec.example%2F1&TranscriptionText=hello")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" || form.CallStatus != "completed" {
		t.Fatalf("unexpected sid/status: %q %q", form.CallSid, form.CallStatus)
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
	if form.DurationSeconds() != 61 {
		t.Fatalf("expected duration 61, got %d", form.DurationSeconds())
	}
	if form.RecordingURL != "https://rec.example/1" || form.TranscriptionText != "hello" {
		t.Fatalf("unexpected artifacts: %q %q", form.RecordingURL, form.TranscriptionText)
	}
}

func TestDurationSecondsGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", "-5"} {
		f := StatusCallbackForm{CallDuration: raw}
		if got := f.DurationSeconds(); got != 0 {
			t.Fatalf("CallDuration=%q: expected 0, got %d", raw, got)
		}
	}
}

func TestOccurredAtFallsBackToNow(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	f := StatusCallbackForm{Timestamp: "not a time"}
	if got := f.OccurredAt(now); !got.Equal(now) {
		t.Fatalf("expected fallback to now, got %v", got)
	}

	f = StatusCallbackForm{Timestamp: "Fri, 10 Nov 2023 12:00:00 +0000"}
	got := f.OccurredAt(now)
	if got.Year() != 2023 || got.Hour() != 12 {
		t.Fatalf("unexpected parsed time %v", got)
	}
}

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]calls.CallStatus{
		"queued":      calls.StatusRinging,
		"initiated":   calls.StatusRinging,
		"ringing":     calls.StatusRinging,
		"in-progress": calls.StatusInProgress,
		"answered":    calls.StatusInProgress,
		"completed":   calls.StatusCompleted,
		"busy":        calls.StatusMissed,
		"no-answer":   calls.StatusMissed,
		"failed":      calls.StatusFailed,
		"canceled":    calls.StatusFailed,
	}
	for provider, want := range cases {
		got, ok := MapProviderStatus(provider)
		if !ok || got != want {
			t.Fatalf("%q: expected %q, got %q ok=%v", provider, want, got, ok)
		}
	}
	if _, ok := MapProviderStatus("exploded"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestMapProviderDirection(t *testing.T) {
	if MapProviderDirection("outbound-api") != calls.DirectionOutbound {
		t.Fatalf("expected outbound")
	}
	if MapProviderDirection("outbound-dial") != calls.DirectionOutbound {
		t.Fatalf("expected outbound")
	}
	if MapProviderDirection("inbound") != calls.DirectionInbound {
		t.Fatalf("expected inbound")
	}
	if MapProviderDirection("") != calls.DirectionInbound {
		t.Fatalf("expected inbound default")
	}
}
