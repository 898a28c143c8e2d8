package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/bienesraices/internal/auth"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func csrfRouter() *gin.Engine {
	r := gin.New()
	r.Use(CSRF(CSRFConfig{Secret: []byte("test-secret")}))

	r.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, CSRFToken(c))
	})
	r.POST("/form", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func postForm(r http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCSRF_IssuesCookieAndAcceptsMatchingToken(t *testing.T) {
	r := csrfRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form", nil))

	cookie := cookieNamed(rec, CSRFCookieName)
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly csrf cookie, got %+v", cookie)
	}
	token := rec.Body.String()
	if token == "" || token == cookie.Value {
		t.Fatalf("form token must be derived from the cookie, got %q", token)
	}

	rec = postForm(r, "/form", url.Values{CSRFFormField: {token}}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCSRF_Rejections(t *testing.T) {
	r := csrfRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form", nil))
	cookie := cookieNamed(rec, CSRFCookieName)
	token := rec.Body.String()

	if rec := postForm(r, "/form", url.Values{}, cookie); rec.Code != http.StatusForbidden {
		t.Fatalf("missing token: expected 403, got %d", rec.Code)
	}
	if rec := postForm(r, "/form", url.Values{CSRFFormField: {"forged"}}, cookie); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong token: expected 403, got %d", rec.Code)
	}
	if rec := postForm(r, "/form", url.Values{CSRFFormField: {token}}); rec.Code != http.StatusForbidden {
		t.Fatalf("no cookie: expected 403, got %d", rec.Code)
	}
}

func TestCSRF_OnErrorHook(t *testing.T) {
	var got error
	r := gin.New()
	r.Use(CSRF(CSRFConfig{Secret: []byte("s"), OnError: func(c *gin.Context, err error) {
		got = err
		c.String(http.StatusForbidden, "custom")
	}}))
	r.POST("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rec := postForm(r, "/x", url.Values{})
	if rec.Code != http.StatusForbidden || rec.Body.String() != "custom" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if !errors.Is(got, ErrCSRFTokenMissing) {
		t.Fatalf("expected ErrCSRFTokenMissing, got %v", got)
	}
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f fakeVerifier) VerifySessionToken(string) (*auth.Claims, error) {
	return f.claims, f.err
}

func sessionRouter(v SessionVerifier) *gin.Engine {
	r := gin.New()
	r.GET("/private", NewSessionMiddleware(v).RequireSession(), func(c *gin.Context) {
		c.String(http.StatusOK, UserNameFromContext(c))
	})
	return r
}

func TestRequireSession(t *testing.T) {
	ok := sessionRouter(fakeVerifier{claims: &auth.Claims{UserID: "u1", Name: "Ana"}})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "jwt"})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "Ana" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != LoginPath {
		t.Fatalf("anonymous: expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	bad := sessionRouter(fakeVerifier{err: auth.ErrInvalidSession})
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired"})
	rec = httptest.NewRecorder()
	bad.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("invalid session: expected redirect, got %d", rec.Code)
	}
	if c := cookieNamed(rec, SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Fatalf("invalid session cookie must be cleared, got %+v", c)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/auth/login", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := do("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}

	if rec := do("10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("other clients keep their own bucket, got %d", rec.Code)
	}

	now = now.Add(time.Second)
	if rec := do("10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("expected refill after a second, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing frame options")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "form-action 'self'") {
		t.Fatalf("unexpected csp %q", rec.Header().Get("Content-Security-Policy"))
	}
}
