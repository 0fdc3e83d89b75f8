package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicedesk/internal/analyzer"
	"voicedesk/internal/audit"
	"voicedesk/internal/calls"
	"voicedesk/internal/ledger"
	"voicedesk/internal/pricing"
	"voicedesk/pkg/logger"
)

// TranscriptAnalyzer produces analysis results for a completed call.
// It never fails; degraded results stand in for errors.
type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, req analyzer.AnalyzeRequest) calls.AnalysisResult
}

// ResolvedAgent identifies the agent a dialed number belongs to, together
// with its owner scope. DisplayName is optional and only feeds prompts.
type ResolvedAgent struct {
	ID          string
	DisplayName string
	Scope       calls.Scope
}

// StatusWebhookHandler converts provider status callbacks to call lifecycle
// operations.
//
// Delivery semantics are at-least-once and unordered, so the handler:
// - claims each (call sid, status) delivery in Redis before acting, and
//   releases the claim when processing fails so the provider's retry is
//   processed instead of dropped,
// - acknowledges stale and out-of-order events with 200 so the provider
//   stops retrying them,
// - creates the record on the first event seen for an unknown call sid.
//
// Tenant scoping:
// - the agent owning the dialed number is resolved by the caller via
//   AgentResolver and passed explicitly; no persistence assumptions here.

type StatusWebhookHandler struct {
	Calls    *calls.Service
	Analyzer TranscriptAnalyzer
	Pricing  *pricing.Calculator
	Ledger   *ledger.Service
	Audit    *audit.Service
	Gate     DeliveryGate

	// AgentResolver resolves which agent (and owner scope) the dialed number
	// belongs to.
	AgentResolver func(c *gin.Context, toNumber string) (ResolvedAgent, error)

	Now func() time.Time
}

func (h StatusWebhookHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call service not configured"})
		return
	}
	if h.AgentResolver == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "agent resolver not configured"})
		return
	}

	form, err := ParseStatusCallback(c.Request)
	if err != nil {
		log.Warn("status callback parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.CallSid == "" || form.CallStatus == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid and CallStatus are required"})
		return
	}

	status, ok := MapProviderStatus(form.CallStatus)
	if !ok {
		log.Warn("unknown provider status", "call_sid", form.CallSid, "status", form.CallStatus)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown call status"})
		return
	}

	agent, err := h.AgentResolver(c, form.To)
	if err != nil {
		log.Warn("agent resolution failed", "to", form.To, "err", err)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown destination"})
		return
	}

	ctx := c.Request.Context()
	if h.Gate != nil {
		claimed, err := h.Gate.Claim(ctx, claimKey(form))
		if err != nil {
			// Dedupe is an optimization; the staleness guard below still
			// protects the record. Process the event anyway.
			log.Warn("delivery claim failed", "call_sid", form.CallSid, "err", err)
		} else if !claimed {
			log.Info("duplicate delivery ignored", "call_sid", form.CallSid, "status", form.CallStatus)
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	now := h.Now().UTC()
	occurredAt := form.OccurredAt(now)

	rec, err := h.Calls.FindByProviderCallID(ctx, agent.Scope, form.CallSid)
	switch {
	case errors.Is(err, calls.ErrNotFound):
		rec, err = h.createFromEvent(ctx, agent, form, status, occurredAt)
		if err != nil {
			log.Error("call create from event failed", "call_sid", form.CallSid, "err", err)
			h.releaseClaim(ctx, log, form)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call create failed"})
			return
		}
		if status != calls.StatusCompleted {
			c.JSON(http.StatusOK, gin.H{"received": true, "call_id": rec.ID})
			return
		}
		// First and only delivery for this call carries the terminal event;
		// fall through to the completion path.
	case err != nil:
		log.Error("call lookup failed", "call_sid", form.CallSid, "err", err)
		h.releaseClaim(ctx, log, form)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}

	if status == calls.StatusCompleted {
		h.completeCall(c, log, agent, rec, form, occurredAt)
		return
	}

	if _, err := h.Calls.UpdateCallStatus(ctx, agent.Scope, rec.ID, status, occurredAt); err != nil {
		if errors.Is(err, calls.ErrStaleEvent) || errors.Is(err, calls.ErrInvalidTransition) {
			log.Info("event not applied", "call_id", rec.ID, "status", status, "reason", err)
			c.JSON(http.StatusOK, gin.H{"received": true, "applied": false})
			return
		}
		log.Error("status update failed", "call_id", rec.ID, "err", err)
		h.releaseClaim(ctx, log, form)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "call_id": rec.ID})
}

func claimKey(form StatusCallbackForm) string {
	return form.CallSid + ":" + form.CallStatus
}

// releaseClaim undoes the delivery claim after a processing failure. The
// event was not applied; the provider's retry must not be treated as a
// duplicate, or it is lost for good.
func (h StatusWebhookHandler) releaseClaim(ctx context.Context, log *slog.Logger, form StatusCallbackForm) {
	if h.Gate == nil {
		return
	}
	if err := h.Gate.Release(ctx, claimKey(form)); err != nil {
		// The claim expires with its TTL; until then retries of this exact
		// delivery are dropped. Worth an alert, nothing to do inline.
		log.Error("delivery claim release failed", "call_sid", form.CallSid, "err", err)
	}
}

// createFromEvent starts a record for a call sid we have never seen. A
// terminal first event backdates StartedAt by the reported duration so the
// completion timestamp can still advance past it.
func (h StatusWebhookHandler) createFromEvent(ctx context.Context, agent ResolvedAgent, form StatusCallbackForm, status calls.CallStatus, occurredAt time.Time) (calls.CallRecord, error) {
	in := calls.CreateCallInput{
		AgentID:        agent.ID,
		Direction:      MapProviderDirection(form.Direction),
		ProviderCallID: form.CallSid,
		FromNumber:     form.From,
		CallerName:     form.CallerName,
		Status:         status,
		StartedAt:      occurredAt,
	}
	if status == calls.StatusCompleted {
		back := time.Duration(form.DurationSeconds()) * time.Second
		if back == 0 {
			back = time.Second
		}
		in.Status = calls.StatusRinging
		in.StartedAt = occurredAt.Add(-back)
	}
	return h.Calls.CreateCall(ctx, agent.Scope, in)
}

func (h StatusWebhookHandler) completeCall(c *gin.Context, log *slog.Logger, agent ResolvedAgent, rec calls.CallRecord, form StatusCallbackForm, occurredAt time.Time) {
	ctx := c.Request.Context()

	duration := form.DurationSeconds()
	upd := calls.CompletionUpdate{
		DurationSeconds: &duration,
	}
	if form.RecordingURL != "" {
		upd.RecordingURL = &form.RecordingURL
	}
	if form.TranscriptionText != "" {
		upd.Transcript = &form.TranscriptionText
	}
	if h.Analyzer != nil {
		res := h.Analyzer.Analyze(ctx, analyzer.AnalyzeRequest{
			Transcript:      form.TranscriptionText,
			DurationSeconds: duration,
			AgentName:       agent.DisplayName,
		})
		upd.ApplyAnalysis(res)
		if analyzer.Degraded(res) && h.Audit != nil {
			if err := h.Audit.LogAnalysisFallback(ctx, agent.Scope, rec.ID, "analysis degraded to fallback result"); err != nil {
				log.Warn("audit append failed", "call_id", rec.ID, "error", err)
			}
		}
	}

	var costMinor int64
	if h.Pricing.Enabled() && duration > 0 {
		costMinor = h.Pricing.CallCostMinor(duration)
		upd.CostMinor = &costMinor
	}

	updated, err := h.Calls.CompleteCall(ctx, agent.Scope, rec.ID, upd, occurredAt)
	if err != nil {
		if errors.Is(err, calls.ErrStaleEvent) {
			log.Info("completion not applied", "call_id", rec.ID, "reason", err)
			c.JSON(http.StatusOK, gin.H{"received": true, "applied": false})
			return
		}
		log.Error("completion failed", "call_id", rec.ID, "err", err)
		h.releaseClaim(ctx, log, form)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "completion failed"})
		return
	}

	if h.Ledger != nil && costMinor > 0 {
		_, err := h.Ledger.RecordCallUsage(ctx, agent.Scope, agent.ID, updated.ID, costMinor, h.Pricing.Currency(), form.CallSid)
		if err != nil {
			// The call record already carries the cost; a ledger failure is
			// surfaced to ops, not to the provider.
			log.Error("usage ledger entry failed", "call_id", updated.ID, "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "call_id": updated.ID})
}
