package ginmw

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	sessionguard "github.com/retailcore/sessionguard"
	"github.com/retailcore/sessionguard/identity"
	"github.com/retailcore/sessionguard/middleware"
	"github.com/retailcore/sessionguard/permission"
)

func init() {
	gin.SetMode(gin.TestMode)
}

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

func TestAuthStoresClaimsInContext(t *testing.T) {
	engine, provider := newTestEngine(t)

	rec, err := provider.Register("manager@shop.example", "correct-horse-battery", permission.RoleManager)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := provider.VerifyEmail(rec.ID); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if err := provider.Approve(rec.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	result, err := engine.Login(context.Background(), "manager@shop.example", "correct-horse-battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	router := gin.New()
	router.GET("/inventory", Auth(engine), Require(permission.PermInventoryRead), func(c *gin.Context) {
		if GetSubjectID(c) != rec.ID {
			t.Errorf("subject id = %q, want %q", GetSubjectID(c), rec.ID)
		}
		if claims, ok := GetClaims(c); !ok || claims.Role != permission.RoleManager {
			t.Errorf("claims = %+v, ok = %v", claims, ok)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestAuthExcludedPathSkipsValidation(t *testing.T) {
	engine, _ := newTestEngine(t)

	router := gin.New()
	router.GET("/healthz", Auth(engine, WithExcludedPaths("/healthz")), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAuthNilEngineRejects(t *testing.T) {
	router := gin.New()
	router.GET("/inventory", Auth(nil), func(c *gin.Context) {
		t.Error("handler reached with a nil engine")
	})

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRateLimitNilEnginePassesThrough(t *testing.T) {
	router := gin.New()
	router.GET("/public", RateLimit(nil, middleware.PublicLimit), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRateLimitBlocksOverBudget(t *testing.T) {
	engine, _ := newTestEngine(t)

	policy := sessionguard.RateLimitPolicy{Window: middleware.AuthLimit.Window, MaxRequests: 2}
	router := gin.New()
	router.GET("/login", RateLimit(engine, policy), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "198.51.100.9:4541"
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("blocked response missing Retry-After")
	}
}
