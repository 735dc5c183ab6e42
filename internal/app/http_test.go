package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"todolists/internal/logging"
	"todolists/internal/session"
)

func newTestHTTPServer(t *testing.T, store session.Store) *HTTPServer {
	t.Helper()
	server, err := NewHTTPServer(newTestService(t, store), logging.Discard())
	if err != nil {
		t.Fatalf("new http server: %v", err)
	}
	return server
}

// testBrowser replays the session cookie between requests like a browser.
type testBrowser struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newTestBrowser(t *testing.T, store session.Store) *testBrowser {
	return &testBrowser{t: t, handler: newTestHTTPServer(t, store).Handler()}
}

func (b *testBrowser) do(method, path string, form url.Values, xhr bool) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if xhr {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rr := httptest.NewRecorder()
	b.handler.ServeHTTP(rr, req)
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			b.cookie = cookie
		}
	}
	return rr
}

func (b *testBrowser) get(path string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, path, nil, false)
}

func (b *testBrowser) post(path string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, path, form, false)
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Fatalf("expected Location %q, got %q", location, got)
	}
}

func (b *testBrowser) createList(name string) {
	b.t.Helper()
	expectRedirect(b.t, b.post("/lists", url.Values{"list_name": {name}}), "/lists")
}

func (b *testBrowser) addTodo(listPath, name string) {
	b.t.Helper()
	expectRedirect(b.t, b.post(listPath+"/todos", url.Values{"todo": {name}}), listPath)
}

func TestRootRedirectsToLists(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	expectRedirect(t, b.get("/"), "/lists")
}

func TestCreateListShowsFlashOnce(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")

	rr := b.get("/lists")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<h2>Groceries</h2>") {
		t.Fatalf("expected list in page, got %s", body)
	}
	if !strings.Contains(body, "The list has been created.") {
		t.Fatalf("expected success flash, got %s", body)
	}

	if body := b.get("/lists").Body.String(); strings.Contains(body, "The list has been created.") {
		t.Fatal("expected flash to be shown only once")
	}
}

func TestCreateListDuplicateRerendersForm(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")

	rr := b.post("/lists", url.Values{"list_name": {"Groceries"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "The list name must be unique.") {
		t.Fatalf("expected uniqueness message, got %s", body)
	}
	if !strings.Contains(body, `value="Groceries"`) {
		t.Fatalf("expected submitted name echoed back, got %s", body)
	}

	if n := strings.Count(b.get("/lists").Body.String(), "<h2>Groceries</h2>"); n != 1 {
		t.Fatalf("expected exactly one Groceries list, got %d", n)
	}
}

func TestCreateListLengthBounds(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		status int
	}{
		{"blank", "   ", http.StatusUnprocessableEntity},
		{"too long", strings.Repeat("a", 101), http.StatusUnprocessableEntity},
		{"max length", strings.Repeat("a", 100), http.StatusSeeOther},
		{"multibyte at max", strings.Repeat("é", 100), http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBrowser(t, newFakeSessionStore())
			rr := b.post("/lists", url.Values{"list_name": {tt.input}})
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			if tt.status == http.StatusUnprocessableEntity &&
				!strings.Contains(rr.Body.String(), "The list name must be between 1 and 100 characters.") {
				t.Fatalf("expected length message, got %s", rr.Body.String())
			}
		})
	}
}

func TestUnknownListRedirectsWithFlash(t *testing.T) {
	for _, path := range []string{"/lists/7", "/lists/abc", "/lists/-1/edit"} {
		t.Run(path, func(t *testing.T) {
			b := newTestBrowser(t, newFakeSessionStore())
			expectRedirect(t, b.get(path), "/lists")

			if body := b.get("/lists").Body.String(); !strings.Contains(body, "The specified list was not found.") {
				t.Fatalf("expected not found flash, got %s", body)
			}
		})
	}
}

func TestTodoLifecycle(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")
	b.addTodo("/lists/0", "Milk")
	b.addTodo("/lists/0", "Eggs")

	expectRedirect(t, b.post("/lists/0/todos/0", url.Values{"completed": {"true"}}), "/lists/0")

	body := b.get("/lists/0").Body.String()
	if !strings.Contains(body, "The todo has been updated.") {
		t.Fatalf("expected updated flash, got %s", body)
	}
	// Open todos sort ahead of completed ones.
	if strings.Index(body, "<h3>Eggs</h3>") > strings.Index(body, "<h3>Milk</h3>") {
		t.Fatalf("expected Eggs before Milk, got %s", body)
	}

	expectRedirect(t, b.post("/lists/0/complete", nil), "/lists/0")
	body = b.get("/lists").Body.String()
	if !strings.Contains(body, `<li class="complete">`) {
		t.Fatalf("expected completed list class, got %s", body)
	}
	if !strings.Contains(body, "<p>0 / 2</p>") {
		t.Fatalf("expected remaining count 0 / 2, got %s", body)
	}
}

func TestAddBlankTodoRerendersList(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")

	rr := b.post("/lists/0/todos", url.Values{"todo": {""}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "The todo must be between 1 and 100 characters.") {
		t.Fatalf("expected todo length message, got %s", rr.Body.String())
	}
}

func TestRenameList(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")

	rr := b.post("/lists/0/edit", url.Values{"list_name": {"Groceries"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected rename to own name to be rejected, got %d", rr.Code)
	}

	expectRedirect(t, b.post("/lists/0", url.Values{"list_name": {"Hardware"}}), "/lists/0")
	body := b.get("/lists/0").Body.String()
	if !strings.Contains(body, "<h2>Hardware</h2>") || !strings.Contains(body, "The list has been updated.") {
		t.Fatalf("expected renamed list page, got %s", body)
	}
}

func TestDeleteTodoXHRReturnsNoContent(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")
	b.addTodo("/lists/0", "Milk")
	b.addTodo("/lists/0", "Eggs")
	b.get("/lists/0")

	rr := b.do(http.MethodPost, "/lists/0/todos/0/delete", nil, true)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "" {
		t.Fatalf("expected no Location, got %q", loc)
	}

	body := b.get("/lists/0").Body.String()
	if strings.Contains(body, "The todo has been deleted.") {
		t.Fatal("expected no flash after XHR todo delete")
	}
	if strings.Contains(body, "<h3>Milk</h3>") {
		t.Fatalf("expected Milk deleted, got %s", body)
	}

	expectRedirect(t, b.post("/lists/0/todos/1/delete", nil), "/lists/0")
	if body := b.get("/lists/0").Body.String(); !strings.Contains(body, "The todo has been deleted.") {
		t.Fatalf("expected flash after browser delete, got %s", body)
	}
}

func TestDeleteMissingTodo(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")

	rr := b.do(http.MethodPost, "/lists/0/todos/3/delete", nil, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	expectRedirect(t, b.post("/lists/0/todos/3/delete", nil), "/lists/0")
	expectRedirect(t, b.post("/lists/5/todos/0/delete", nil), "/lists")
}

func TestDeleteListXHR(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")
	b.get("/lists")

	rr := b.do(http.MethodPost, "/lists/0/delete", nil, true)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/lists" {
		t.Fatalf("expected Location /lists, got %q", loc)
	}

	body := b.get("/lists").Body.String()
	if !strings.Contains(body, "The list has been deleted.") {
		t.Fatalf("expected deleted flash, got %s", body)
	}
	if strings.Contains(body, "<h2>Groceries</h2>") {
		t.Fatalf("expected list removed, got %s", body)
	}
}

func TestDeleteListBrowserRedirects(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")
	b.createList("Hardware")

	expectRedirect(t, b.post("/lists/0/delete", nil), "/lists")
	b.createList("Books")

	// Ids are never reused while a higher one exists.
	body := b.get("/lists/2").Body.String()
	if !strings.Contains(body, "<h2>Books</h2>") {
		t.Fatalf("expected Books at id 2, got %s", body)
	}
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")

	forged := *b.cookie
	forged.Value = "x" + forged.Value
	b.cookie = &forged

	body := b.get("/lists").Body.String()
	if strings.Contains(body, "Groceries") {
		t.Fatalf("expected fresh session, got %s", body)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	store := newFakeSessionStore()
	alice := newTestBrowser(t, store)
	bob := newTestBrowser(t, store)
	alice.createList("Groceries")

	if body := bob.get("/lists").Body.String(); strings.Contains(body, "Groceries") {
		t.Fatalf("expected separate sessions, got %s", body)
	}
}

func TestSaveFailureIsServerError(t *testing.T) {
	store := newFakeSessionStore()
	store.saveFn = func(context.Context, string, session.Data, time.Duration) error {
		return errors.New("disk full")
	}
	b := newTestBrowser(t, store)

	rr := b.post("/lists", url.Values{"list_name": {"Groceries"}})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())

	rr := b.get("/static/application.js")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "X-Requested-With") {
		t.Fatal("expected script to send the XHR header")
	}
	if b.get("/static/missing.js").Code != http.StatusNotFound {
		t.Fatal("expected 404 for missing asset")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	handler := newTestHTTPServer(t, newFakeSessionStore()).Handler()
	const id = "0b6f2c1e-6d3a-4c8e-9f57-2a1d4e5b6c7d"
	req := httptest.NewRequest(http.MethodGet, "/lists", nil)
	req.Header.Set("X-Request-ID", id)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != id {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
}

func TestRequestIDRejectsNonUUID(t *testing.T) {
	handler := newTestHTTPServer(t, newFakeSessionStore()).Handler()
	for _, incoming := range []string{"req-123", strings.Repeat("x", 4096), "{0b6f2c1e-6d3a-4c8e-9f57-2a1d4e5b6c7d}"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", incoming)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		got := rr.Header().Get("X-Request-ID")
		if got == incoming {
			t.Fatalf("expected %q to be replaced", incoming)
		}
		if _, err := uuid.Parse(got); err != nil || len(got) != 36 {
			t.Fatalf("expected generated uuid, got %q", got)
		}
	}
}

func TestInvalidUTF8ListNamesKeepSession(t *testing.T) {
	b := newTestBrowser(t, newFakeSessionStore())
	b.createList("Groceries")
	b.createList("a\xff")

	rr := b.post("/lists", url.Values{"list_name": {"a\xfe"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "The list name must be unique.") {
		t.Fatalf("expected uniqueness message, got %s", rr.Body.String())
	}

	body := b.get("/lists").Body.String()
	if !strings.Contains(body, "<h2>Groceries</h2>") {
		t.Fatalf("expected session to survive, got %s", body)
	}
	if !strings.Contains(body, "<h2>a\uFFFD</h2>") {
		t.Fatalf("expected normalized name, got %s", body)
	}
}
