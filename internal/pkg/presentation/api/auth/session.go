package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

type userContextKey struct{ name string }

var userCtxKey = &userContextKey{"user"}

const (
	sessionCookie string = "jwt"
	stateCookie   string = "oauth_state"
)

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool

	// OAuth2 is the configuration of the identity provider client. Login is disabled when nil.
	OAuth2      *oauth2.Config
	UserInfoURL string
}

// UserUpserter stores the profile of a user that signed in.
type UserUpserter interface {
	UpsertUser(ctx context.Context, user types.User) (types.User, error)
}

type Session struct {
	tokenAuth *jwtauth.JWTAuth
	cfg       SessionConfig
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	return &Session{
		tokenAuth: jwtauth.New("HS256", []byte(cfg.Secret), nil),
		cfg:       cfg,
	}
}

func (s *Session) LoginEnabled() bool {
	return s.cfg.OAuth2 != nil
}

// Issue returns a signed session token for the user.
func (s *Session) Issue(userID string) (string, error) {
	claims := map[string]interface{}{"sub": userID}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, s.cfg.TTL)

	_, token, err := s.tokenAuth.Encode(claims)
	return token, err
}

// Authenticator verifies the session token from the cookie or the Authorization header
// and stores the id of the user in the request context.
func (s *Session) Authenticator(next http.Handler) http.Handler {
	check := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, ok := claims["sub"].(string)
		if !ok || userID == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := WithUserID(r.Context(), userID)

		logger := logging.GetFromContext(ctx).With().Str("userID", userID).Logger()
		ctx = logging.NewContextWithLogger(ctx, logger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})

	return jwtauth.Verify(s.tokenAuth, jwtauth.TokenFromCookie, jwtauth.TokenFromHeader)(check)
}

func (s *Session) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/api",
			MaxAge:   int((10 * time.Minute).Seconds()),
			HttpOnly: true,
			Secure:   s.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, s.cfg.OAuth2.AuthCodeURL(state), http.StatusFound)
	}
}

type userInfo struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (u userInfo) User() types.User {
	optional := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	return types.User{
		ID:              u.Subject,
		Email:           optional(u.Email),
		FirstName:       optional(u.GivenName),
		LastName:        optional(u.FamilyName),
		ProfileImageURL: optional(u.Picture),
	}
}

// CallbackHandler completes the authorization code flow, stores the user and sets the
// session cookie.
func (s *Session) CallbackHandler(users UserUpserter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "login-callback")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		logger := logging.GetFromContext(ctx)

		state, err := r.Cookie(stateCookie)
		if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
			err = errors.New("login state mismatch")
			writeError(w, http.StatusBadRequest, "Invalid login state")
			return
		}

		http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/api", MaxAge: -1})

		httpClient := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

		token, err := s.cfg.OAuth2.Exchange(ctx, r.URL.Query().Get("code"))
		if err != nil {
			logger.Error().Err(err).Msg("code exchange failed")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		info, err := s.fetchUserInfo(ctx, s.cfg.OAuth2.Client(ctx, token))
		if err != nil {
			logger.Error().Err(err).Msg("failed to fetch user info")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := users.UpsertUser(ctx, info.User())
		if err != nil {
			logger.Error().Err(err).Msg("failed to store user")
			writeError(w, http.StatusInternalServerError, "Failed to sign in")
			return
		}

		sessionToken, err := s.Issue(user.ID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to issue session token")
			writeError(w, http.StatusInternalServerError, "Failed to sign in")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sessionToken,
			Path:     "/",
			MaxAge:   int(s.cfg.TTL.Seconds()),
			HttpOnly: true,
			Secure:   s.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, "/", http.StatusFound)
	}
}

func (s *Session) fetchUserInfo(ctx context.Context, client *http.Client) (userInfo, error) {
	info := userInfo{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UserInfoURL, nil)
	if err != nil {
		return info, fmt.Errorf("failed to create http request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return info, fmt.Errorf("failed to retrieve user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("user info request failed with status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("failed to read response body: %w", err)
	}

	err = json.Unmarshal(body, &info)
	if err != nil {
		return info, fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	if info.Subject == "" {
		return info, errors.New("user info contains no subject")
	}

	return info, nil
}

func (s *Session) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, "/", http.StatusFound)
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userCtxKey).(string)
	return userID, ok && userID != ""
}
