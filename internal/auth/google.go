package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"docrequests-backend/internal/rms"
	"docrequests-backend/internal/shared/server/respond"
	"docrequests-backend/internal/shared/telemetry"
)

const msgGoogleDenied = "Your Google account does not have access to the dashboard."

// Authenticator resolves a provider-verified email to a superuser RM.
type Authenticator interface {
	AuthenticateEmail(ctx context.Context, email string) (rms.User, error)
}

// GoogleService signs existing superuser RMs in with Google.
type GoogleService struct {
	oauthConfig *oauth2.Config
	users       Authenticator
	stateTTL    time.Duration
	stateStore  *stateStore
	userInfoURL string
}

// NewGoogleService builds a GoogleService.
func NewGoogleService(clientID, clientSecret, redirectURL string, users Authenticator) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		users:       users,
		stateTTL:    5 * time.Minute,
		stateStore:  newStateStore(),
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// RegisterRoutes attaches Google auth routes.
func (s *GoogleService) RegisterRoutes(r gin.IRoutes) {
	r.GET("/auth/google/start", s.start)
	r.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) start(c *gin.Context) {
	if s.oauthConfig.ClientID == "" || s.oauthConfig.ClientSecret == "" || s.oauthConfig.RedirectURL == "" {
		respond.Error(c, http.StatusInternalServerError, "Google sign-in is not configured.", nil)
		return
	}

	state := uuid.NewString()
	s.stateStore.put(state, time.Now().Add(s.stateTTL))

	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *GoogleService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "Missing state or code.", nil)
		return
	}

	if !s.stateStore.consume(state) {
		respond.Error(c, http.StatusBadRequest, "Invalid or expired sign-in attempt.", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "Failed to complete Google sign-in.", err)
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "Failed to fetch Google profile.", err)
		return
	}
	if info.Email == "" || !info.VerifiedEmail {
		redirectError(c, msgGoogleDenied)
		return
	}

	user, err := s.users.AuthenticateEmail(ctx, info.Email)
	if err != nil {
		if errors.Is(err, rms.ErrNotFound) || errors.Is(err, rms.ErrNotSuperuser) {
			telemetry.Warn("login.google_denied", map[string]any{"email": info.Email})
			redirectError(c, msgGoogleDenied)
			return
		}
		respond.Internal(c, err)
		return
	}
	if err := rms.SignIn(c, user); err != nil {
		respond.Internal(c, err)
		return
	}
	telemetry.Info("login.success", map[string]any{"rm_id": user.ID, "provider": "google"})
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return googleUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}
	return info, nil
}

func redirectError(c *gin.Context, msg string) {
	c.Redirect(http.StatusSeeOther, "/error?error_message="+url.QueryEscape(msg))
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.items {
		if now.After(v) {
			delete(s.items, k)
		}
	}
	s.items[state] = exp
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	return ok && !time.Now().After(exp)
}
