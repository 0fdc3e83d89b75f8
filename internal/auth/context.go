package auth

import (
	"context"
	"errors"

	"voicedesk/internal/calls"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxOrgID
	ctxRole
)

func WithIdentity(ctx context.Context, userID, orgID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxOrgID, orgID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

// OrgID returns the org scope for the request. Empty with a nil error means
// personal scope; the error is only for a context that never went through
// authentication.
func OrgID(ctx context.Context) (string, error) {
	if _, err := UserID(ctx); err != nil {
		return "", errors.New("identity not in context")
	}
	if s, ok := ctx.Value(ctxOrgID).(string); ok {
		return s, nil
	}
	return "", nil
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// ScopeFrom assembles the ownership scope every repository query filters by.
func ScopeFrom(ctx context.Context) (calls.Scope, error) {
	uid, err := UserID(ctx)
	if err != nil {
		return calls.Scope{}, err
	}
	oid, err := OrgID(ctx)
	if err != nil {
		return calls.Scope{}, err
	}
	return calls.Scope{UserID: uid, OrgID: oid}, nil
}
