package session

import (
	"fmt"
	"net/http"
	"time"

	"todolists/internal/auth"
)

const DefaultCookieName = "todolists_session"

// Cookies reads and writes the signed cookie that carries the session id.
type Cookies struct {
	Name   string
	TTL    time.Duration
	Secure bool
	key    []byte
	now    func() time.Time
}

func NewCookies(secret string, ttl time.Duration, secure bool) (*Cookies, error) {
	key, err := auth.DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cookies{
		Name:   DefaultCookieName,
		TTL:    ttl,
		Secure: secure,
		key:    key,
		now:    time.Now,
	}, nil
}

// Read returns the session id from a valid cookie. Missing, tampered and
// expired cookies all report ok=false.
func (c *Cookies) Read(r *http.Request) (id string, ok bool) {
	cookie, err := r.Cookie(c.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	claims, err := auth.ParseToken(c.key, cookie.Value)
	if err != nil {
		return "", false
	}
	return claims.SID, true
}

func (c *Cookies) Write(w http.ResponseWriter, id string) error {
	expires := c.now().Add(c.TTL)
	token, err := auth.IssueToken(c.key, auth.Claims{SID: id, Exp: expires.Unix()})
	if err != nil {
		return fmt.Errorf("issue session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
