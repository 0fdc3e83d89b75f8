package stats

import "voicedesk/internal/calls"

// AgentStats is the per-agent rollup. Zero calls yields an all-zero value,
// never an absent result; callers must not special-case "no data".
type AgentStats struct {
	AgentID string `json:"agent_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	MissedCalls    int `json:"missed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	TotalCostMinor int64 `json:"total_cost_minor"`
}

// HistoryFilter narrows and pages an agent's call history.
type HistoryFilter struct {
	Status    calls.CallStatus `json:"status,omitempty"`
	Direction calls.Direction  `json:"direction,omitempty"`

	// Limit defaults to DefaultHistoryLimit and is capped at MaxHistoryLimit.
	Limit int `json:"limit,omitempty"`
	Skip  int `json:"skip,omitempty"`
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// CallHistory is one page of records, newest first, plus the total count
// matching the filter independent of pagination ("showing N of M").
type CallHistory struct {
	Calls []calls.CallRecord `json:"calls"`
	Total int                `json:"total"`
}
