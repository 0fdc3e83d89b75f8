package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voicedesk/internal/auth"
	"voicedesk/internal/calls"
	"voicedesk/internal/stats"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth  *auth.Manager
	Calls *calls.Service
	Stats *stats.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id,omitempty"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair. org_id is optional: agents outside an
// organization operate under their personal scope.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrgID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

func (h Handlers) CreateCall(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	var in calls.CreateCallInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Calls.CreateCall(c.Request.Context(), scope, in)
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h Handlers) GetCall(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	rec, err := h.Calls.GetCall(c.Request.Context(), scope, c.Param("call_id"))
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type updateStatusRequest struct {
	Status     calls.CallStatus `json:"status"`
	OccurredAt time.Time        `json:"occurred_at,omitempty"`
}

func (h Handlers) UpdateCallStatus(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Calls.UpdateCallStatus(c.Request.Context(), scope, c.Param("call_id"), req.Status, req.OccurredAt)
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) CompleteCall(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	var upd calls.CompletionUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Calls.CompleteCall(c.Request.Context(), scope, c.Param("call_id"), upd, time.Time{})
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteCall removes a record permanently.
// RBAC: owner or super_admin.
func (h Handlers) DeleteCall(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := h.Calls.DeleteCall(c.Request.Context(), scope, c.Param("call_id")); err != nil {
		writeCallError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Stats ---

func (h Handlers) AgentStats(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	out, err := h.Stats.AgentStats(c.Request.Context(), scope, c.Param("agent_id"))
	if err != nil {
		writeStatsError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AgentCallHistory(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	f := stats.HistoryFilter{
		Status:    calls.CallStatus(c.Query("status")),
		Direction: calls.Direction(c.Query("direction")),
		Limit:     queryInt(c, "limit"),
		Skip:      queryInt(c, "skip"),
	}
	out, err := h.Stats.AgentCallHistory(c.Request.Context(), scope, c.Param("agent_id"), f)
	if err != nil {
		writeStatsError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Helpers ---

func requireScope(c *gin.Context) (calls.Scope, bool) {
	scope, err := auth.ScopeFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return calls.Scope{}, false
	}
	return scope, true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func writeCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrInvalidTransition), errors.Is(err, calls.ErrStaleEvent):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func writeStatsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stats.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
