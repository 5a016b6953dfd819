package middleware

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sessionguard "github.com/retailcore/sessionguard"
	"github.com/retailcore/sessionguard/identity"
	"github.com/retailcore/sessionguard/permission"
)

func newTestEngine(t *testing.T) (*sessionguard.Engine, *identity.MemoryProvider) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := sessionguard.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Blacklist.SweepInterval = 0

	provider, err := identity.NewMemoryProvider()
	if err != nil {
		t.Fatalf("identity provider: %v", err)
	}

	engine, err := sessionguard.New().
		WithConfig(cfg).
		WithIdentityProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, provider
}

func loginAs(t *testing.T, engine *sessionguard.Engine, provider *identity.MemoryProvider, email string, role permission.Role) string {
	t.Helper()

	record, err := provider.Register(email, "correct-horse-battery", role)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := provider.VerifyEmail(record.ID); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if err := provider.Approve(record.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	result, err := engine.Login(context.Background(), email, "correct-horse-battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return result.Token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestProtectAllowsAuthorizedRequest(t *testing.T) {
	engine, provider := newTestEngine(t)
	token := loginAs(t, engine, provider, "manager@shop.example", permission.RoleManager)

	var gotClaims *sessionguard.SessionClaims
	handler := Protect(engine, DefaultLimit, permission.PermInventoryRead)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClaims, _ = ClaimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotClaims == nil || gotClaims.Role != permission.RoleManager {
		t.Fatalf("claims in context = %+v", gotClaims)
	}
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatal("allowed response missing X-RateLimit-Limit")
	}
}

func TestAuthenticateRejectsMissingBearer(t *testing.T) {
	engine, _ := newTestEngine(t)

	handler := Authenticate(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "invalid_session" {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	engine, _ := newTestEngine(t)

	handler := Authenticate(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached with a garbage token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequirePermissionForbidsCashier(t *testing.T) {
	engine, provider := newTestEngine(t)
	token := loginAs(t, engine, provider, "cashier@shop.example", permission.RoleCashier)

	handler := Authenticate(engine)(RequirePermission(permission.PermInventoryWrite)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler reached without permission")
		})))

	req := httptest.NewRequest(http.MethodPost, "/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "forbidden" {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestRequireRoleAdmitsAdmin(t *testing.T) {
	engine, provider := newTestEngine(t)
	token := loginAs(t, engine, provider, "admin@shop.example", permission.RoleAdmin)

	handler := Authenticate(engine)(RequireRole(permission.RoleManager)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitBlocksOverBudget(t *testing.T) {
	engine, _ := newTestEngine(t)

	policy := sessionguard.RateLimitPolicy{Window: time.Minute, MaxRequests: 2}
	handler := RateLimit(engine, policy)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/public", nil)
		req.RemoteAddr = "198.51.100.9:4541"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("blocked response missing Retry-After")
	}
	if body := decodeError(t, rec); body.Code != "rate_limited" {
		t.Fatalf("code = %q", body.Code)
	}

	// Another client address starts with a fresh budget.
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.RemoteAddr = "198.51.100.10:4541"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh client status = %d", rec.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("clientIP = %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	if _, ok := bearerToken(""); ok {
		t.Fatal("empty header accepted")
	}
	if _, ok := bearerToken("Bearer "); ok {
		t.Fatal("empty token accepted")
	}
	if _, ok := bearerToken("Basic abc"); ok {
		t.Fatal("wrong scheme accepted")
	}
	token, ok := bearerToken("Bearer abc.def.ghi")
	if !ok || token != "abc.def.ghi" {
		t.Fatalf("bearerToken = %q, %v", token, ok)
	}
}
