package analyzer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"voicedesk/internal/calls"
)

// Fixed summary strings for the two degraded outcomes. Stable: dashboards
// key off them.
const (
	summaryNoTranscript  = "No transcript available"
	summaryAnalyzeFailed = "Failed to analyze transcript"
)

// Analyzer produces a structured judgment from a call transcript by
// delegating to a generative-text collaborator.
//
// Failure policy: Analyze never returns an error. A failed or unparseable
// completion degrades to a fixed fallback result so the call pipeline always
// reaches completion with some analysis fields populated. Failures are
// logged for operability only.
type Analyzer struct {
	client ChatCompleter
	log    *slog.Logger
}

func New(client ChatCompleter, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{client: client, log: log}
}

type AnalyzeRequest struct {
	Transcript      string
	DurationSeconds int
	AgentName       string
}

// Analyze classifies the transcript. A blank transcript short-circuits to
// the fixed empty result without contacting the collaborator.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) calls.AnalysisResult {
	if strings.TrimSpace(req.Transcript) == "" {
		return emptyTranscriptResult()
	}
	if a.client == nil {
		a.log.Warn("transcript analysis skipped: no client configured")
		return fallbackResult()
	}

	raw, err := a.client.Complete(ctx, buildPrompt(req.Transcript, req.DurationSeconds, req.AgentName))
	if err != nil {
		a.log.Error("transcript analysis failed", "err", err)
		return fallbackResult()
	}

	obj := extractJSONObject(raw)
	if obj == "" {
		a.log.Error("transcript analysis produced no json object", "response_len", len(raw))
		return fallbackResult()
	}

	var parsed struct {
		Sentiment  string          `json:"sentiment"`
		Summary    string          `json:"summary"`
		CallerName *string         `json:"callerName"`
		Topics     json.RawMessage `json:"topics"`
		Status     string          `json:"status"`
		Notes      string          `json:"notes"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		a.log.Error("transcript analysis returned malformed json", "err", err)
		return fallbackResult()
	}

	// Each field is coerced independently; one bad field must not discard
	// the rest of an otherwise usable judgment.
	out := calls.AnalysisResult{
		Sentiment:  coerceSentiment(parsed.Sentiment),
		Summary:    parsed.Summary,
		CallerName: parsed.CallerName,
		Topics:     coerceTopics(parsed.Topics),
		Status:     coerceStatus(parsed.Status),
		Notes:      parsed.Notes,
	}
	if out.Summary == "" {
		out.Summary = "Call completed"
	}
	return out
}

// Degraded reports whether res is the fixed failure fallback, as opposed to
// a real judgment or the empty-transcript short-circuit.
func Degraded(res calls.AnalysisResult) bool {
	return res.Summary == summaryAnalyzeFailed
}

func emptyTranscriptResult() calls.AnalysisResult {
	return calls.AnalysisResult{
		Sentiment: calls.SentimentNeutral,
		Summary:   summaryNoTranscript,
		Topics:    []string{},
		Status:    calls.StatusCompleted,
		Notes:     "",
	}
}

func fallbackResult() calls.AnalysisResult {
	return calls.AnalysisResult{
		Sentiment: calls.SentimentNeutral,
		Summary:   summaryAnalyzeFailed,
		Topics:    []string{},
		Status:    calls.StatusCompleted,
		Notes:     "",
	}
}

func coerceSentiment(v string) calls.Sentiment {
	s := calls.Sentiment(strings.ToLower(strings.TrimSpace(v)))
	if calls.ValidSentiment(s) {
		return s
	}
	return calls.SentimentNeutral
}

// coerceStatus accepts only the three terminal values; anything else
// defaults to completed.
func coerceStatus(v string) calls.CallStatus {
	s := calls.CallStatus(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case calls.StatusCompleted, calls.StatusMissed, calls.StatusFailed:
		return s
	default:
		return calls.StatusCompleted
	}
}

// coerceTopics keeps the value only when it is a JSON array of strings,
// dropping non-string entries and truncating to the topic cap.
func coerceTopics(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, calls.MaxTopics)
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == calls.MaxTopics {
			break
		}
	}
	return out
}
