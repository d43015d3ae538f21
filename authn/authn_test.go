package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kwld/homescript/host"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(a *Authenticator) *gin.Engine {
	g := gin.New()
	g.GET("/protected", a.Require(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"mode": ModeFromContext(c)})
	})
	return g
}

func TestRequire_RejectsMissingCredentials(t *testing.T) {
	a := New("jwt-secret", nil)
	g := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no credentials, got %d", rec.Code)
	}
}

func TestRequire_AcceptsValidServiceKey(t *testing.T) {
	a := New("jwt-secret", []string{"shared-key"})
	g := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Service-Key", "shared-key")
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid service key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequire_RejectsUnknownServiceKey(t *testing.T) {
	a := New("jwt-secret", []string{"shared-key"})
	g := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Service-Key", "wrong-key")
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with an unknown service key, got %d", rec.Code)
	}
}

func TestRequire_AcceptsValidBearerToken(t *testing.T) {
	a := New("jwt-secret", nil)
	token, err := a.IssueJWT("operator-1")
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	g := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid bearer token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequire_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	issuer := New("secret-a", nil)
	token, err := issuer.IssueJWT("operator-1")
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	verifier := New("secret-b", nil)
	g := newTestRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a token signed with a different secret, got %d", rec.Code)
	}
}

func TestModeFromContext_ServiceKeyPath(t *testing.T) {
	a := New("jwt-secret", []string{"shared-key"})
	g := gin.New()
	var captured host.AuthMode
	g.GET("/protected", a.Require(), func(c *gin.Context) {
		captured = ModeFromContext(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Service-Key", "shared-key")
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if captured != host.AuthServiceKey {
		t.Fatalf("expected AuthServiceKey mode, got %v", captured)
	}
}
