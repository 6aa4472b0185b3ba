// Package identity ties each request to an anonymous device and a browser
// tab. The device is remembered through a long-lived cookie; the tab comes
// from a header or query parameter chosen by the client.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/store"
)

const (
	AnonCookieName        = "luna_anon_id"
	SessionHeaderName     = "X-Luna-Session-ID"
	DefaultSessionIDValue = "default"

	anonPrefix     = "anon_"
	deviceTTL      = 30 * 24 * time.Hour
	touchInterval  = time.Minute
	sessionIDQuery = "session_id"
)

var (
	deviceIDShape = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	tabIDShape    = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Identity is who is talking and from which tab.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
}

type ctxKey struct{}

// New builds an Identity for a device, normalizing the tab id.
func New(userID, sessionID string) Identity {
	return Identity{
		UserID:    userID,
		Username:  displayName(userID),
		SessionID: normalizeTab(sessionID),
	}
}

// FromContext returns the identity attached by Middleware or WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. The CLI and
// tests use it to call handlers without the middleware.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, New(userID, sessionID))
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

func UsernameFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.Username
}

// SessionIDFromContext falls back to the default tab when no identity is set.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.SessionID
	}
	return DefaultSessionIDValue
}

// Middleware resolves the device from its cookie, minting one on first
// visit, records the user and attaches the request's Identity.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	devices := &deviceBook{repo: repo, secureCookie: !isDev, now: time.Now}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := devices.resolve(w, r)
			if err != nil {
				failJSON(w, "failed to establish anonymous identity")
				return
			}
			if err := devices.touch(r.Context(), userID); err != nil {
				failJSON(w, "failed to initialize anonymous user")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, New(userID, tabFromRequest(r)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// deviceBook issues device cookies and keeps the users table current.
type deviceBook struct {
	repo         store.Repository
	secureCookie bool
	now          func() time.Time
}

// resolve returns the device id from the cookie or a fresh one. The cookie
// is rewritten either way so its expiry slides with activity.
func (d *deviceBook) resolve(w http.ResponseWriter, r *http.Request) (string, error) {
	var userID string
	if c, err := r.Cookie(AnonCookieName); err == nil && deviceIDShape.MatchString(c.Value) {
		userID = c.Value
	} else {
		minted, err := mintDeviceID()
		if err != nil {
			return "", err
		}
		userID = minted
	}

	now := d.now()
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    userID,
		Path:     "/",
		MaxAge:   int(deviceTTL / time.Second),
		Expires:  now.Add(deviceTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   d.secureCookie,
	})
	return userID, nil
}

// touch creates the user on first sight. Known users get last_seen_at
// bumped at most once per touchInterval.
func (d *deviceBook) touch(ctx context.Context, userID string) error {
	user, err := d.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	now := d.now()
	switch {
	case user == nil:
		return d.repo.UpsertUser(ctx, &domain.User{
			UserID:     userID,
			Username:   displayName(userID),
			LastSeenAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	case user.IdleFor(now) >= touchInterval:
		return d.repo.UpdateLastSeen(ctx, userID, now)
	default:
		return nil
	}
}

func mintDeviceID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return anonPrefix + hex.EncodeToString(raw[:]), nil
}

// displayName shows the last eight hex digits of a device id.
func displayName(userID string) string {
	const tail = 8
	if len(userID) <= len(anonPrefix)+tail {
		return "anon-user"
	}
	return "anon-" + userID[len(userID)-tail:]
}

func normalizeTab(id string) string {
	id = strings.TrimSpace(id)
	if !tabIDShape.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

// tabFromRequest prefers the header. Websocket clients cannot set headers
// from the browser and use the query parameter instead.
func tabFromRequest(r *http.Request) string {
	if v := r.Header.Get(SessionHeaderName); v != "" {
		return normalizeTab(v)
	}
	return normalizeTab(r.URL.Query().Get(sessionIDQuery))
}

func failJSON(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}

// IPFromRequest returns the remote host without its port.
func IPFromRequest(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
