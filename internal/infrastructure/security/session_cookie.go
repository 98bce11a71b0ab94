package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const SessionCookieName = "sid"

// SessionCookies writes and reads the signed session cookie. The value is
// "<session id>.<hmac>"; anything that fails the signature check reads as absent.
type SessionCookies struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewSessionCookies(secret string, ttl time.Duration, secure bool) *SessionCookies {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionCookies{secret: []byte(secret), ttl: ttl, secure: secure}
}

func (c *SessionCookies) sign(id string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SameSite=None requires Secure; dev runs over plain http.
func (c *SessionCookies) sameSite() http.SameSite {
	if c.secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (c *SessionCookies) Set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID + "." + c.sign(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite(),
		MaxAge:   int(c.ttl.Seconds()),
	})
}

func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite(),
		MaxAge:   -1,
	})
}

// Read returns the verified session id, or "" when the cookie is missing,
// unsigned or tampered with.
func (c *SessionCookies) Read(r *http.Request) string {
	ck, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	id, sig, ok := strings.Cut(ck.Value, ".")
	if !ok || id == "" || sig == "" {
		return ""
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return ""
	}
	return id
}
