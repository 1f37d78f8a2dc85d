package middleware

import (
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"docrequests-backend/internal/shared/telemetry"
)

// SessionName is the cookie holding the RM session.
const SessionName = "docrequests-session"

const (
	sessionKey   = "session"
	principalKey = "principal"

	sidKey      = "sid"
	isAuthKey   = "is_authenticated"
	userIDKey   = "user_id"
	usernameKey = "username"
	emailKey    = "email"
	nameKey     = "name"
)

// Principal is the signed-in RM as cached in the session.
type Principal struct {
	UserID   int64
	Username string
	Email    string
	Name     string
}

// DisplayName prefers the RM profile name over the login name.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

// NewCookieStore builds the session store. An empty secret yields a random key,
// which invalidates sessions on restart.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	key := []byte(secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   14 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Sessions loads the session and, if signed in, the principal into the gin context.
func Sessions(store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Get(c.Request, SessionName)
		if err != nil {
			var scErr securecookie.Error
			if errors.As(err, &scErr) && scErr.IsDecode() {
				telemetry.Warn("session.decode_failed", map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      err,
				})
			}
			// store.Get still returns a fresh session alongside decode errors.
		}
		if sess == nil {
			c.Next()
			return
		}
		c.Set(sessionKey, sess)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			id, _ := sess.Values[userIDKey].(int64)
			if id > 0 {
				c.Set(principalKey, Principal{
					UserID:   id,
					Username: stringValue(sess, usernameKey),
					Email:    stringValue(sess, emailKey),
					Name:     stringValue(sess, nameKey),
				})
			}
		}
		c.Next()
	}
}

// RequireRM redirects anonymous callers to the login page.
func RequireRM() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFromContext(c); ok {
			c.Next()
			return
		}
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// PrincipalFromContext returns the signed-in RM, if any.
func PrincipalFromContext(c *gin.Context) (Principal, bool) {
	if c == nil {
		return Principal{}, false
	}
	val, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := val.(Principal)
	return p, ok
}

// SignIn starts a fresh session for p. Values carried by the pre-login
// session are dropped and a new session id is issued.
func SignIn(c *gin.Context, p Principal) error {
	sess, err := session(c)
	if err != nil {
		return err
	}
	sid := securecookie.GenerateRandomKey(16)
	if sid == nil {
		return errors.New("session: generate id")
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.ID = ""
	sess.IsNew = true
	sess.Values[sidKey] = hex.EncodeToString(sid)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = p.UserID
	sess.Values[usernameKey] = p.Username
	sess.Values[emailKey] = p.Email
	sess.Values[nameKey] = p.Name
	if err := sess.Save(c.Request, c.Writer); err != nil {
		return err
	}
	c.Set(principalKey, p)
	return nil
}

// SignOut clears the session cookie.
func SignOut(c *gin.Context) error {
	sess, err := session(c)
	if err != nil {
		return err
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request, c.Writer)
}

// AddFlash queues a one-time message shown on the next rendered page.
func AddFlash(c *gin.Context, msg string) error {
	sess, err := session(c)
	if err != nil {
		return err
	}
	sess.AddFlash(msg)
	return sess.Save(c.Request, c.Writer)
}

// Flashes pops queued messages. It must run before the response body is written.
func Flashes(c *gin.Context) []string {
	sess, err := session(c)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(c.Request, c.Writer); err != nil {
		telemetry.Warn("session.save_failed", map[string]any{"error": err})
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var errNoSession = errors.New("session middleware not installed")

func session(c *gin.Context) (*sessions.Session, error) {
	val, ok := c.Get(sessionKey)
	if !ok {
		return nil, errNoSession
	}
	sess, ok := val.(*sessions.Session)
	if !ok {
		return nil, errNoSession
	}
	return sess, nil
}

func stringValue(sess *sessions.Session, key string) string {
	s, _ := sess.Values[key].(string)
	return s
}
