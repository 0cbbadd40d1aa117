package http

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bnema/captioner/internal/adapter/http/ratelimit"
	"github.com/bnema/captioner/internal/infrastructure/logger"
)

const (
	CookieName     = "captioner_token"
	CookieMaxAge   = 7 * 24 * 60 * 60
	CookiePath     = "/"
	CookieSameSite = http.SameSiteStrictMode
)

// TokenVerifier checks an API token. service.TokenAuth implements it.
type TokenVerifier interface {
	Verify(token string) error
}

type authenticator struct {
	verifier    TokenVerifier
	limiter     *ratelimit.FailureLimiter
	behindProxy bool

	// The last verified token is cached so bcrypt does not run on every request.
	mu     sync.Mutex
	cached cachedToken
}

type cachedToken struct {
	value   string
	expires time.Time
}

// requireAuth accepts a bearer header or the session cookie. A GET with a
// token query parameter sets the cookie and redirects to the clean URL so
// browsers can open status pages and SSE streams. Websocket upgrades with
// a query token are served directly since clients cannot follow redirects.
func (a *authenticator) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.verifier == nil {
			next(w, r)
			return
		}

		client := a.clientID(r)
		if blocked, remaining := a.limiter.Blocked(client); blocked {
			w.Header().Set("Retry-After", retryAfter(remaining))
			writeJSONError(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}

		token, fromQuery := tokenFrom(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing token")
			return
		}
		if !a.valid(token) {
			if a.limiter.Fail(client) {
				logger.Warn.Printf("blocking %s after repeated auth failures", client)
			}
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if fromQuery && r.Method == http.MethodGet && !websocket.IsWebSocketUpgrade(r) {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    token,
				MaxAge:   CookieMaxAge,
				Path:     CookiePath,
				Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
				HttpOnly: true,
				SameSite: CookieSameSite,
			})
			clean := *r.URL
			q := clean.Query()
			q.Del("token")
			clean.RawQuery = q.Encode()
			http.Redirect(w, r, clean.RequestURI(), http.StatusSeeOther)
			return
		}

		next(w, r)
	}
}

func (a *authenticator) valid(token string) bool {
	a.mu.Lock()
	c := a.cached
	a.mu.Unlock()
	if c.value != "" && time.Now().Before(c.expires) && subtle.ConstantTimeCompare([]byte(c.value), []byte(token)) == 1 {
		return true
	}
	if err := a.verifier.Verify(token); err != nil {
		return false
	}
	a.mu.Lock()
	a.cached = cachedToken{value: token, expires: time.Now().Add(5 * time.Minute)}
	a.mu.Unlock()
	return true
}

func tokenFrom(r *http.Request) (token string, fromQuery bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t), false
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, false
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}

func (a *authenticator) clientID(r *http.Request) string {
	if a.behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfter(d time.Duration) string {
	return strconv.Itoa(max(int(d.Seconds()), 1))
}
