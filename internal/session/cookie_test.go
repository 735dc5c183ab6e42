package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCookiesRoundTrip(t *testing.T) {
	cookies, err := NewCookies("secret", time.Hour, true)
	if err != nil {
		t.Fatalf("NewCookies failed: %v", err)
	}

	rr := httptest.NewRecorder()
	if err := cookies.Write(rr, "sess_abc"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	written := rr.Result().Cookies()
	if len(written) != 1 {
		t.Fatalf("expected one cookie, got %d", len(written))
	}
	c := written[0]
	if c.Name != DefaultCookieName || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	id, ok := cookies.Read(req)
	if !ok || id != "sess_abc" {
		t.Fatalf("expected sess_abc, got %q ok=%v", id, ok)
	}
}

func TestCookiesRejectInvalid(t *testing.T) {
	cookies, err := NewCookies("secret", time.Hour, false)
	if err != nil {
		t.Fatalf("NewCookies failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := cookies.Read(req); ok {
		t.Fatal("expected missing cookie to be rejected")
	}

	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged.value"})
	if _, ok := cookies.Read(req); ok {
		t.Fatal("expected forged cookie to be rejected")
	}

	other, _ := NewCookies("other-secret", time.Hour, false)
	rr := httptest.NewRecorder()
	if err := other.Write(rr, "sess_x"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	if _, ok := cookies.Read(req); ok {
		t.Fatal("expected cookie signed with another secret to be rejected")
	}
}

func TestCookiesRejectExpired(t *testing.T) {
	cookies, err := NewCookies("secret", time.Hour, false)
	if err != nil {
		t.Fatalf("NewCookies failed: %v", err)
	}
	cookies.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	rr := httptest.NewRecorder()
	if err := cookies.Write(rr, "sess_old"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	if _, ok := cookies.Read(req); ok {
		t.Fatal("expected expired cookie to be rejected")
	}
}
