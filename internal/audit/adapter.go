package audit

import (
	"context"
	"log/slog"

	"voicedesk/internal/calls"
)

// CallAuditor adapts Service to the call lifecycle's audit hook. Append
// failures are logged and swallowed; audit never blocks call processing.
type CallAuditor struct {
	svc *Service
	log *slog.Logger
}

func NewCallAuditor(svc *Service, log *slog.Logger) *CallAuditor {
	if log == nil {
		log = slog.Default()
	}
	return &CallAuditor{svc: svc, log: log}
}

func (a *CallAuditor) CallEvent(ctx context.Context, scope calls.Scope, eventType, callID, message string) {
	err := a.svc.Append(ctx, Event{
		Scope:   scope,
		Type:    EventType(eventType),
		CallID:  callID,
		Message: message,
	})
	if err != nil {
		a.log.Warn("audit append failed",
			"event_type", eventType,
			"call_id", callID,
			"error", err)
	}
}
