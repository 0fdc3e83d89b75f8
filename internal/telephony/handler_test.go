package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"voicedesk/internal/analyzer"
	"voicedesk/internal/audit"
	"voicedesk/internal/calls"
	"voicedesk/internal/config"
	"voicedesk/internal/ledger"
	"voicedesk/internal/pricing"
)

var testScope = calls.Scope{UserID: "user-1", OrgID: "org-1"}

type memoryGate struct {
	mu       sync.Mutex
	seen     map[string]bool
	released int
}

func (g *memoryGate) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

func (g *memoryGate) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
	g.released++
	return nil
}

type stubAnalyzer struct {
	calls     int
	agentName string
	result    calls.AnalysisResult
}

func (s *stubAnalyzer) Analyze(_ context.Context, req analyzer.AnalyzeRequest) calls.AnalysisResult {
	s.calls++
	s.agentName = req.AgentName
	return s.result
}

// flakyCallsRepo fails a configured number of Create calls before behaving
// normally, standing in for a transient store outage.
type flakyCallsRepo struct {
	*calls.MemoryRepo
	failCreates int
}

func (r *flakyCallsRepo) Create(ctx context.Context, rec calls.CallRecord) error {
	if r.failCreates > 0 {
		r.failCreates--
		return context.DeadlineExceeded
	}
	return r.MemoryRepo.Create(ctx, rec)
}

type fixture struct {
	handler    StatusWebhookHandler
	callsRepo  *calls.MemoryRepo
	callsSvc   *calls.Service
	ledgerRepo *ledger.MemoryRepo
	auditRepo  *audit.MemoryRepo
	analyzer   *stubAnalyzer
	router     *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	callsRepo := calls.NewMemoryRepo()
	callsSvc := calls.NewService(callsRepo, nil)
	ledgerRepo := ledger.NewMemoryRepo()
	an := &stubAnalyzer{result: calls.AnalysisResult{
		Sentiment: calls.SentimentPositive,
		Summary:   "Customer asked about billing",
		Topics:    []string{"billing"},
		Status:    calls.StatusCompleted,
	}}

	auditRepo := audit.NewMemoryRepo()
	f := &fixture{
		callsRepo:  callsRepo,
		callsSvc:   callsSvc,
		ledgerRepo: ledgerRepo,
		auditRepo:  auditRepo,
		analyzer:   an,
	}
	f.handler = StatusWebhookHandler{
		Calls:    callsSvc,
		Analyzer: an,
		Pricing: pricing.NewCalculator(config.PricingConfig{
			Currency:           "USD",
			RatePerMinuteMinor: 150,
		}),
		Ledger: ledger.NewService(ledgerRepo),
		Audit:  audit.NewService(auditRepo),
		Gate:   &memoryGate{},
		AgentResolver: func(_ *gin.Context, toNumber string) (ResolvedAgent, error) {
			return ResolvedAgent{ID: "agent-1", DisplayName: "Dana", Scope: testScope}, nil
		},
	}
	f.router = gin.New()
	f.router.POST("/webhooks/voice/status", f.handler.HandleStatusCallback)
	return f
}

func (f *fixture) post(t *testing.T, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestWebhookCreatesCallOnFirstRinging(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, map[string]string{
		"CallSid":    "CA-1",
		"CallStatus": "ringing",
		"From":       "+15551234567",
		"To":         "+15557654321",
		"CallerName": "Pat",
		"Timestamp":  "Fri, 10 Nov 2023 12:00:00 +0000",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	rec, err := f.callsSvc.FindByProviderCallID(context.Background(), testScope, "CA-1")
	if err != nil {
		t.Fatalf("expected record created: %v", err)
	}
	if rec.Status != calls.StatusRinging || rec.AgentID != "agent-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.FromNumber != "+15551234567" || rec.CallerName != "Pat" {
		t.Fatalf("caller fields not captured: %+v", rec)
	}
}

func TestWebhookFullLifecycle(t *testing.T) {
	f := newFixture(t)

	f.post(t, map[string]string{
		"CallSid": "CA-2", "CallStatus": "ringing", "To": "+15557654321",
		"Timestamp": "Fri, 10 Nov 2023 12:00:00 +0000",
	})
	f.post(t, map[string]string{
		"CallSid": "CA-2", "CallStatus": "in-progress", "To": "+15557654321",
		"Timestamp": "Fri, 10 Nov 2023 12:00:05 +0000",
	})
	w := f.post(t, map[string]string{
		"CallSid": "CA-2", "CallStatus": "completed", "To": "+15557654321",
		"CallDuration":      "61",
		"RecordingUrl":      "https://rec.example/2",
		"TranscriptionText": "hi, question about my bill",
		"Timestamp":         "Fri, 10 Nov 2023 12:01:10 +0000",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	rec, err := f.callsSvc.FindByProviderCallID(context.Background(), testScope, "CA-2")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Status != calls.StatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}
	if rec.DurationSeconds != 61 || rec.RecordingURL != "https://rec.example/2" {
		t.Fatalf("artifacts not applied: %+v", rec)
	}
	if rec.Sentiment != calls.SentimentPositive || rec.Summary != "Customer asked about billing" {
		t.Fatalf("analysis not applied: %+v", rec)
	}
	if f.analyzer.calls != 1 {
		t.Fatalf("expected 1 analyzer call, got %d", f.analyzer.calls)
	}
	if f.analyzer.agentName != "Dana" {
		t.Fatalf("expected agent display name in analyze request, got %q", f.analyzer.agentName)
	}
	// 61s at 150 minor units per minute rounds up to 2 minutes.
	if rec.CostMinor != 300 {
		t.Fatalf("expected cost 300, got %d", rec.CostMinor)
	}
	if rec.EndedAt == nil {
		t.Fatalf("expected EndedAt stamped")
	}

	total, err := f.handler.Ledger.AgentUsageMinor(context.Background(), testScope, "agent-1")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if total != 300 {
		t.Fatalf("expected ledger total 300, got %d", total)
	}
}

func TestWebhookDuplicateDeliveryIgnored(t *testing.T) {
	f := newFixture(t)

	fields := map[string]string{
		"CallSid": "CA-3", "CallStatus": "completed", "To": "+15557654321",
		"CallDuration":      "30",
		"TranscriptionText": "hello",
		"Timestamp":         "Fri, 10 Nov 2023 12:00:00 +0000",
	}
	first := f.post(t, fields)
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", first.Code)
	}
	second := f.post(t, fields)
	if second.Code != http.StatusOK {
		t.Fatalf("duplicate must still be acknowledged, got %d", second.Code)
	}
	if !strings.Contains(second.Body.String(), "duplicate") {
		t.Fatalf("expected duplicate marker, got %s", second.Body.String())
	}
	if f.analyzer.calls != 1 {
		t.Fatalf("expected analyzer to run once, ran %d times", f.analyzer.calls)
	}
	if f.ledgerRepo.Len() != 1 {
		t.Fatalf("expected single ledger entry, got %d", f.ledgerRepo.Len())
	}
}

func TestWebhookStaleEventAcknowledged(t *testing.T) {
	f := newFixture(t)

	f.post(t, map[string]string{
		"CallSid": "CA-4", "CallStatus": "in-progress", "To": "+15557654321",
		"Timestamp": "Fri, 10 Nov 2023 12:00:10 +0000",
	})
	// A ringing event from before the answer arrives late. It must be
	// acknowledged so the provider stops retrying, but not applied.
	w := f.post(t, map[string]string{
		"CallSid": "CA-4", "CallStatus": "ringing", "To": "+15557654321",
		"Timestamp": "Fri, 10 Nov 2023 12:00:02 +0000",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for stale event, got %d", w.Code)
	}

	rec, err := f.callsSvc.FindByProviderCallID(context.Background(), testScope, "CA-4")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Status != calls.StatusInProgress {
		t.Fatalf("stale event mutated the record: %s", rec.Status)
	}
}

func TestWebhookMissedCall(t *testing.T) {
	f := newFixture(t)

	f.post(t, map[string]string{
		"CallSid": "CA-5", "CallStatus": "ringing", "To": "+15557654321",
		"Timestamp": "Fri, 10 Nov 2023 12:00:00 +0000",
	})
	w := f.post(t, map[string]string{
		"CallSid": "CA-5", "CallStatus": "no-answer", "To": "+15557654321",
		"Timestamp": "Fri, 10 Nov 2023 12:00:30 +0000",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	rec, err := f.callsSvc.FindByProviderCallID(context.Background(), testScope, "CA-5")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Status != calls.StatusMissed {
		t.Fatalf("expected missed, got %s", rec.Status)
	}
	if rec.EndedAt == nil {
		t.Fatalf("expected EndedAt for terminal status")
	}
	if f.analyzer.calls != 0 {
		t.Fatalf("analyzer must not run for missed calls")
	}
	if f.ledgerRepo.Len() != 0 {
		t.Fatalf("no usage entry expected for missed calls")
	}
}

func TestWebhookDegradedAnalysisAudited(t *testing.T) {
	f := newFixture(t)
	// A real analyzer with no client degrades every transcript to the
	// fallback result.
	f.handler.Analyzer = analyzer.New(nil, nil)
	f.router = gin.New()
	f.router.POST("/webhooks/voice/status", f.handler.HandleStatusCallback)

	w := f.post(t, map[string]string{
		"CallSid": "CA-8", "CallStatus": "completed", "To": "+15557654321",
		"CallDuration":      "20",
		"TranscriptionText": "hello there",
		"Timestamp":         "Fri, 10 Nov 2023 12:00:00 +0000",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var found bool
	for _, e := range f.auditRepo.Events() {
		if e.Type == audit.EventTypeAnalysisFallback {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected analysis_fallback audit event")
	}

	rec, err := f.callsSvc.FindByProviderCallID(context.Background(), testScope, "CA-8")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Status != calls.StatusCompleted {
		t.Fatalf("degraded analysis must not block completion, got %s", rec.Status)
	}
	if rec.Summary != "Failed to analyze transcript" {
		t.Fatalf("expected fallback summary, got %q", rec.Summary)
	}
}

func TestWebhookRetryAfterStoreFailure(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyCallsRepo{MemoryRepo: f.callsRepo, failCreates: 1}
	f.handler.Calls = calls.NewService(flaky, nil)
	gate := &memoryGate{}
	f.handler.Gate = gate
	f.router = gin.New()
	f.router.POST("/webhooks/voice/status", f.handler.HandleStatusCallback)

	fields := map[string]string{
		"CallSid": "CA-9", "CallStatus": "ringing", "To": "+15557654321",
		"Timestamp": "Fri, 10 Nov 2023 12:00:00 +0000",
	}
	first := f.post(t, fields)
	if first.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 while store is down, got %d: %s", first.Code, first.Body.String())
	}
	// The failed delivery must give up its claim so the provider's retry is
	// processed instead of being swallowed as a duplicate.
	if gate.released != 1 {
		t.Fatalf("expected claim released after failure, released %d times", gate.released)
	}

	second := f.post(t, fields)
	if second.Code != http.StatusOK {
		t.Fatalf("retry must succeed once the store recovers, got %d: %s", second.Code, second.Body.String())
	}
	if strings.Contains(second.Body.String(), "duplicate") {
		t.Fatalf("retry was treated as a duplicate: %s", second.Body.String())
	}

	rec, err := f.callsSvc.FindByProviderCallID(context.Background(), testScope, "CA-9")
	if err != nil {
		t.Fatalf("expected record created on retry: %v", err)
	}
	if rec.Status != calls.StatusRinging {
		t.Fatalf("unexpected status after retry: %s", rec.Status)
	}
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, map[string]string{"CallStatus": "ringing"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without CallSid, got %d", w.Code)
	}

	w = f.post(t, map[string]string{"CallSid": "CA-6", "CallStatus": "exploded"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
}

func TestWebhookUnknownDestination(t *testing.T) {
	f := newFixture(t)
	f.handler.AgentResolver = func(_ *gin.Context, _ string) (ResolvedAgent, error) {
		return ResolvedAgent{}, context.DeadlineExceeded
	}
	f.router = gin.New()
	f.router.POST("/webhooks/voice/status", f.handler.HandleStatusCallback)

	w := f.post(t, map[string]string{"CallSid": "CA-7", "CallStatus": "ringing"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
