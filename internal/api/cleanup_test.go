package api

import (
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/lovecleanup/internal/cleanup"
	"github.com/ashureev/lovecleanup/internal/confirm"
	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/identity"
	"github.com/ashureev/lovecleanup/internal/store"
)

type recordedEvent struct {
	userID, sessionID, kind string
	payload                 any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(userID, sessionID, kind string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{userID, sessionID, kind, payload})
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.kind == kind {
			c++
		}
	}
	return c
}

type cleanupFixture struct {
	router   chi.Router
	repo     store.Repository
	notifier *recordingNotifier
	user     string
}

func newCleanupFixture(t *testing.T) *cleanupFixture {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	f := &cleanupFixture{repo: repo, notifier: &recordingNotifier{}, user: "anon_test"}
	h := NewCleanupHandler(
		repo,
		cleanup.NewScanner(0, rand.New(rand.NewPCG(1, 2))),
		cleanup.NewExecutor(0, nil),
		confirm.NewRegistry(),
		f.notifier,
	)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := req.Header.Get("X-Test-User")
			if user == "" {
				user = f.user
			}
			next.ServeHTTP(w, req.WithContext(identity.WithIdentity(req.Context(), user, "tab")))
		})
	})
	h.RegisterRoutes(r)
	f.router = r
	return f
}

func (f *cleanupFixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return w.Code, got
}

func (f *cleanupFixture) create(t *testing.T, body string) string {
	t.Helper()
	code, got := f.do(t, http.MethodPost, "/api/cleanup/confirmations", body)
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %v", code, got)
	}
	id, _ := got["id"].(string)
	if id == "" {
		t.Fatal("create: missing id")
	}
	return id
}

func confirmationOf(t *testing.T, got map[string]any) map[string]any {
	t.Helper()
	c, ok := got["confirmation"].(map[string]any)
	if !ok {
		t.Fatalf("missing confirmation in %v", got)
	}
	return c
}

const twoTargets = `{"targets":[{"category":"messages","count":127},{"category":"photos","count":89}]}`

func TestScan(t *testing.T) {
	f := newCleanupFixture(t)
	code, got := f.do(t, http.MethodPost, "/api/cleanup/scan", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	targets, _ := got["targets"].([]any)
	if len(targets) != len(domain.Categories) {
		t.Fatalf("expected %d targets, got %d", len(domain.Categories), len(targets))
	}
}

func TestConfirmationWizardCommits(t *testing.T) {
	f := newCleanupFixture(t)
	id := f.create(t, twoTargets)
	base := "/api/cleanup/confirmations/" + id

	_, view := f.do(t, http.MethodGet, base, "")
	if view["total_items"] != float64(216) || view["step"] != "1 de 3" {
		t.Fatalf("unexpected initial view %v", view)
	}

	if code, _ := f.do(t, http.MethodPost, base+"/commit", ""); code != http.StatusConflict {
		t.Fatalf("commit before final stage: expected 409, got %d", code)
	}

	steps := []struct {
		path, body string
	}{
		{"/advance", ""},
		{"/understood", `{"understood":true}`},
		{"/phrase", `{"text":"deletar tudo"}`},
		{"/advance", ""},
	}
	for _, s := range steps {
		if code, got := f.do(t, http.MethodPost, base+s.path, s.body); code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %v", s.path, code, got)
		}
	}

	code, got := f.do(t, http.MethodPost, base+"/commit", "")
	if code != http.StatusOK {
		t.Fatalf("commit: expected 200, got %d: %v", code, got)
	}
	if confirmationOf(t, got)["outcome"] != string(confirm.Committed) {
		t.Fatalf("expected committed outcome, got %v", got)
	}

	if n := f.notifier.count(NotifyCleanupProgress); n != 4 {
		t.Fatalf("expected 4 progress events, got %d", n)
	}
	if n := f.notifier.count(NotifyCleanupDone); n != 1 {
		t.Fatalf("expected 1 done event, got %d", n)
	}

	if code, _ := f.do(t, http.MethodPost, base+"/commit", ""); code != http.StatusNotFound {
		t.Fatalf("committed confirmation should be discarded, got %d", code)
	}

	code, got = f.do(t, http.MethodGet, "/api/cleanup/runs", "")
	if code != http.StatusOK {
		t.Fatalf("runs: expected 200, got %d", code)
	}
	runs, _ := got["runs"].([]any)
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
}

func TestWrongPhraseBlocksAdvance(t *testing.T) {
	f := newCleanupFixture(t)
	base := "/api/cleanup/confirmations/" + f.create(t, twoTargets)

	f.do(t, http.MethodPost, base+"/advance", "")
	f.do(t, http.MethodPost, base+"/understood", `{"understood":true}`)
	f.do(t, http.MethodPost, base+"/phrase", `{"text":"DELETAR"}`)

	code, got := f.do(t, http.MethodPost, base+"/advance", "")
	if code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	c := confirmationOf(t, got)
	if c["stage_name"] != "typed_confirmation" || c["can_proceed"] != false {
		t.Fatalf("unexpected view %v", c)
	}
}

func TestInputsRejectedOutsideTypedStage(t *testing.T) {
	f := newCleanupFixture(t)
	base := "/api/cleanup/confirmations/" + f.create(t, twoTargets)

	if code, _ := f.do(t, http.MethodPost, base+"/phrase", `{"text":"DELETAR TUDO"}`); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
}

func TestCancelIsTerminalOverHTTP(t *testing.T) {
	f := newCleanupFixture(t)
	base := "/api/cleanup/confirmations/" + f.create(t, twoTargets)

	code, got := f.do(t, http.MethodPost, base+"/cancel", "")
	if code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", code)
	}
	if confirmationOf(t, got)["outcome"] != string(confirm.Cancelled) {
		t.Fatalf("expected cancelled outcome, got %v", got)
	}
	if code, _ := f.do(t, http.MethodGet, base, ""); code != http.StatusNotFound {
		t.Fatalf("get after cancel: expected 404, got %d", code)
	}
	for _, action := range []string{"/advance", "/back", "/cancel", "/commit"} {
		if code, _ := f.do(t, http.MethodPost, base+action, ""); code != http.StatusNotFound {
			t.Fatalf("%s after cancel: expected 404, got %d", action, code)
		}
	}
	if f.notifier.count(NotifyCleanupProgress) != 0 {
		t.Fatal("cancelled confirmation must not run the cleanup")
	}
}

func TestConfirmationsAreOwnerScoped(t *testing.T) {
	f := newCleanupFixture(t)
	id := f.create(t, twoTargets)

	req := httptest.NewRequest(http.MethodGet, "/api/cleanup/confirmations/"+id, nil)
	req.Header.Set("X-Test-User", "someone_else")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another owner, got %d", w.Code)
	}
}

func TestCreateConfirmationValidation(t *testing.T) {
	f := newCleanupFixture(t)
	tests := map[string]string{
		"unknown category":   `{"targets":[{"category":"contacts","count":3}]}`,
		"negative count":     `{"targets":[{"category":"photos","count":-1}]}`,
		"malformed":          `{"targets":`,
		"duplicate category": `{"targets":[{"category":"photos","count":2},{"category":"photos","count":5}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if code, _ := f.do(t, http.MethodPost, "/api/cleanup/confirmations", body); code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}
}

func TestCreateConfirmationScansWhenEmpty(t *testing.T) {
	f := newCleanupFixture(t)
	_, got := f.do(t, http.MethodGet, "/api/cleanup/confirmations/"+f.create(t, ""), "")
	targets, _ := got["targets"].([]any)
	if len(targets) != len(domain.Categories) {
		t.Fatalf("expected scanned targets, got %v", got["targets"])
	}
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	f := newCleanupFixture(t)
	if code, _ := f.do(t, http.MethodGet, "/api/cleanup/runs?limit=abc", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}
