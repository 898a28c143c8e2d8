package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/bienesraices/internal/auth"
	"github.com/geocoder89/bienesraices/internal/config"
	"github.com/geocoder89/bienesraices/internal/domain/user"
	apphttp "github.com/geocoder89/bienesraices/internal/http"
	"github.com/geocoder89/bienesraices/internal/http/handlers"
	"github.com/geocoder89/bienesraices/internal/notifications"
	"github.com/geocoder89/bienesraices/internal/tokens"
	"github.com/gin-gonic/gin"
)

type sentEmail struct {
	Kind  notifications.Kind
	Input notifications.AccountEmail
}

// recordingNotifier stands in for SMTP.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (n *recordingNotifier) SendAccountConfirmation(_ context.Context, in notifications.AccountEmail) error {
	return n.record(notifications.KindConfirmation, in)
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, in notifications.AccountEmail) error {
	return n.record(notifications.KindPasswordReset, in)
}

func (n *recordingNotifier) record(kind notifications.Kind, in notifications.AccountEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentEmail{Kind: kind, Input: in})
	return nil
}

func (n *recordingNotifier) emails() []sentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEmail(nil), n.sent...)
}

func (n *recordingNotifier) last(t *testing.T) sentEmail {
	t.Helper()
	all := n.emails()
	if len(all) == 0 {
		t.Fatalf("expected an email to have been sent")
	}
	return all[len(all)-1]
}

func testConfig() config.Config {
	return config.Config{
		Env:           "test",
		Port:          3000,
		BackendURL:    "http://localhost",
		SessionSecret: "test-session-secret",
		SessionTTL:    time.Hour,
		CSRFSecret:    "test-csrf-secret",
	}
}

type app struct {
	server   *httptest.Server
	client   *http.Client
	repo     user.Repository
	notifier *recordingNotifier
}

func newApp(t *testing.T, repo user.Repository) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	notifier := &recordingNotifier{}

	router, err := apphttp.NewRouter(log, cfg, apphttp.Deps{
		Accounts: tokens.NewManager(repo),
		Users:    repo,
		Notifier: notifier,
		Sessions: auth.NewManager(cfg.SessionSecret, cfg.SessionTTL),
		Checks:   []handlers.Check{{Name: "users", Ping: repo.Ping}},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &app{
		server:   srv,
		client:   newClient(t),
		repo:     repo,
		notifier: notifier,
	}
}

// newClient keeps cookies like a browser but does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type response struct {
	Status    int
	Body      string
	Location  string
	RequestID string
}

func (a *app) get(t *testing.T, path string) response {
	t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return readResponse(t, resp)
}

func (a *app) postForm(t *testing.T, path string, form url.Values) response {
	t.Helper()
	resp, err := a.client.PostForm(a.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return readResponse(t, resp)
}

var csrfField = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

// submit loads the form page first so the cookie jar holds the csrf cookie,
// then posts with the token copied from the page.
func (a *app) submit(t *testing.T, formPath, postPath string, form url.Values) response {
	t.Helper()

	page := a.get(t, formPath)
	m := csrfField.FindStringSubmatch(page.Body)
	if m == nil {
		t.Fatalf("no csrf token on %s (status %d)", formPath, page.Status)
	}

	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", m[1])

	return a.postForm(t, postPath, form)
}

func readResponse(t *testing.T, resp *http.Response) response {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	return response{
		Status:    resp.StatusCode,
		Body:      string(b),
		Location:  resp.Header.Get("Location"),
		RequestID: resp.Header.Get("X-Request-Id"),
	}
}

func mustContain(t *testing.T, body string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(body, p) {
			t.Fatalf("expected body to contain %q\n%s", p, body)
		}
	}
}

func registerForm(name, email, password, repeat string) url.Values {
	return url.Values{
		"nombre":          {name},
		"email":           {email},
		"password":        {password},
		"repite_password": {repeat},
	}
}

// registerAndConfirm creates a confirmed account through the public pages.
func (a *app) registerAndConfirm(t *testing.T, name, email, password string) {
	t.Helper()

	res := a.submit(t, "/auth/registro", "/auth/registro", registerForm(name, email, password, password))
	if res.Status != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", res.Status)
	}

	token := a.notifier.last(t).Input.Token
	if res := a.get(t, "/auth/confirmar/"+token); res.Status != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", res.Status)
	}
}
