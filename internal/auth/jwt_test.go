package auth

import (
	"context"
	"testing"
	"time"

	"voicedesk/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "org-1", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.OrgID != "org-1" || claims.Role != "owner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyAllowsEmptyOrg(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Now()
	pair, err := m.IssuePair(now, "user-1", "", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now)
	if err != nil {
		t.Fatalf("personal-scope token must verify: %v", err)
	}
	if claims.OrgID != "" {
		t.Fatalf("expected empty org, got %q", claims.OrgID)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "o", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestScopeFrom(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "org-1", "owner")
	scope, err := ScopeFrom(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if scope.UserID != "user-1" || scope.OrgID != "org-1" {
		t.Fatalf("unexpected scope: %+v", scope)
	}

	ctx = WithIdentity(context.Background(), "user-1", "", "owner")
	scope, err = ScopeFrom(ctx)
	if err != nil {
		t.Fatalf("personal scope must resolve: %v", err)
	}
	if scope.OrgID != "" {
		t.Fatalf("expected personal scope, got %q", scope.OrgID)
	}

	if _, err := ScopeFrom(context.Background()); err == nil {
		t.Fatalf("expected error without identity")
	}
}
