package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"voicedesk/internal/auth"

	"github.com/gin-gonic/gin"
)

func doWithRole(t *testing.T, role string, mw gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if role != "" {
			ctx := auth.WithIdentity(c.Request.Context(), "u", "o", role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, mw, func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := doWithRole(t, RoleSuperAdmin, RequireAnyRole(RoleOwner)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AllowsListedRole(t *testing.T) {
	if code := doWithRole(t, RoleAnalyst, RequireAnyRole(RoleOwner, RoleAnalyst)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesUnlistedRole(t *testing.T) {
	if code := doWithRole(t, RoleAgent, RequireAnyRole(RoleOwner)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingIdentityUnauthorized(t *testing.T) {
	if code := doWithRole(t, "", RequireAnyRole(RoleOwner)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
