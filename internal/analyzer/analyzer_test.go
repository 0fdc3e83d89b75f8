package analyzer

import (
	"context"
	"errors"
	"testing"

	"voicedesk/internal/calls"
)

type fakeCompleter struct {
	calls    int
	response string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestAnalyze_BlankTranscriptShortCircuits(t *testing.T) {
	fake := &fakeCompleter{response: `{"sentiment":"positive"}`}
	a := New(fake, nil)

	for _, transcript := range []string{"", "   ", "\n\t"} {
		got := a.Analyze(context.Background(), AnalyzeRequest{Transcript: transcript})
		if got.Sentiment != calls.SentimentNeutral {
			t.Fatalf("expected neutral, got %s", got.Sentiment)
		}
		if got.Summary != summaryNoTranscript {
			t.Fatalf("expected fixed empty-transcript summary, got %q", got.Summary)
		}
		if got.CallerName != nil {
			t.Fatalf("expected nil caller name")
		}
		if len(got.Topics) != 0 {
			t.Fatalf("expected no topics")
		}
		if got.Status != calls.StatusCompleted {
			t.Fatalf("expected completed, got %s", got.Status)
		}
	}
	if fake.calls != 0 {
		t.Fatalf("collaborator must not be called for blank transcripts, got %d calls", fake.calls)
	}
}

func TestAnalyze_ClientErrorFallsBack(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("quota exceeded")}
	a := New(fake, nil)

	got := a.Analyze(context.Background(), AnalyzeRequest{Transcript: "hello there"})
	if got.Summary != summaryAnalyzeFailed {
		t.Fatalf("expected failure summary, got %q", got.Summary)
	}
	if got.Sentiment != calls.SentimentNeutral || got.Status != calls.StatusCompleted {
		t.Fatalf("expected neutral/completed fallback, got %+v", got)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one collaborator call, got %d", fake.calls)
	}
}

func TestAnalyze_NonJSONResponseFallsBack(t *testing.T) {
	fake := &fakeCompleter{response: "I could not analyze this call, sorry!"}
	a := New(fake, nil)

	got := a.Analyze(context.Background(), AnalyzeRequest{Transcript: "hello"})
	if got.Summary != summaryAnalyzeFailed {
		t.Fatalf("expected failure summary, got %q", got.Summary)
	}
}

func TestAnalyze_HappyPathWithWrappedJSON(t *testing.T) {
	fake := &fakeCompleter{response: "Here is the analysis:\n```json\n" +
		`{"sentiment":"positive","summary":"Customer renewed.","callerName":"Dana","topics":["renewal","pricing"],"status":"completed","notes":"follow up in May"}` +
		"\n```"}
	a := New(fake, nil)

	got := a.Analyze(context.Background(), AnalyzeRequest{Transcript: "hi", AgentName: "Ava"})
	if got.Sentiment != calls.SentimentPositive {
		t.Fatalf("expected positive, got %s", got.Sentiment)
	}
	if got.Summary != "Customer renewed." {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
	if got.CallerName == nil || *got.CallerName != "Dana" {
		t.Fatalf("expected caller name Dana, got %v", got.CallerName)
	}
	if len(got.Topics) != 2 || got.Topics[0] != "renewal" {
		t.Fatalf("unexpected topics %v", got.Topics)
	}
	if got.Notes != "follow up in May" {
		t.Fatalf("unexpected notes %q", got.Notes)
	}
}

func TestAnalyze_FieldByFieldCoercion(t *testing.T) {
	fake := &fakeCompleter{response: `{
		"sentiment": "ecstatic",
		"summary": "",
		"topics": ["a","b","c","d","e","f","g","h"],
		"status": "ringing",
		"notes": "n"
	}`}
	a := New(fake, nil)

	got := a.Analyze(context.Background(), AnalyzeRequest{Transcript: "hi"})
	if got.Sentiment != calls.SentimentNeutral {
		t.Fatalf("invalid sentiment must coerce to neutral, got %s", got.Sentiment)
	}
	if got.Status != calls.StatusCompleted {
		t.Fatalf("non-terminal status must coerce to completed, got %s", got.Status)
	}
	if len(got.Topics) != calls.MaxTopics {
		t.Fatalf("oversized topics must truncate to %d, got %d", calls.MaxTopics, len(got.Topics))
	}
	if got.Summary == "" {
		t.Fatalf("expected default summary for empty value")
	}
	if got.CallerName != nil {
		t.Fatalf("absent callerName must stay nil")
	}
	if got.Notes != "n" {
		t.Fatalf("valid fields must survive coercion, got %q", got.Notes)
	}
}

func TestAnalyze_TopicsMustBeArray(t *testing.T) {
	fake := &fakeCompleter{response: `{"sentiment":"negative","summary":"s","topics":"billing","status":"failed","notes":""}`}
	a := New(fake, nil)

	got := a.Analyze(context.Background(), AnalyzeRequest{Transcript: "hi"})
	if len(got.Topics) != 0 {
		t.Fatalf("non-array topics must become empty, got %v", got.Topics)
	}
	if got.Sentiment != calls.SentimentNegative || got.Status != calls.StatusFailed {
		t.Fatalf("other fields must still parse, got %+v", got)
	}
}
