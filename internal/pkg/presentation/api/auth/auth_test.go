package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"
	"golang.org/x/oauth2"
)

func TestDeviceOwnerIsAllowed(t *testing.T) {
	is, router := setupGuard(t, "commands", Command)

	req := httptest.NewRequest(http.MethodPost, "/devices/1/commands", nil)
	req = req.WithContext(WithUserID(req.Context(), "alice"))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusOK)
	is.Equal(w.Body.String(), "device 1")
}

func TestGuardResponses(t *testing.T) {
	is, router := setupGuard(t, "photos", Read)

	testCases := []struct {
		path    string
		userID  string
		code    int
		message string
	}{
		{"/devices/1/commands", "", http.StatusUnauthorized, "Unauthorized"},
		{"/devices/one/commands", "alice", http.StatusBadRequest, "Invalid device ID"},
		{"/devices/0/commands", "alice", http.StatusBadRequest, "Invalid device ID"},
		{"/devices/2/commands", "alice", http.StatusNotFound, "Device not found"},
		{"/devices/3/commands", "alice", http.StatusInternalServerError, "Failed to fetch device"},
		{"/devices/1/commands", "bob", http.StatusForbidden, "Not authorized to access this device's photos"},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest(http.MethodPost, tc.path, nil)
		if tc.userID != "" {
			req = req.WithContext(WithUserID(req.Context(), tc.userID))
		}
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		is.Equal(w.Code, tc.code)

		response := types.ErrorResponse{}
		is.NoErr(json.Unmarshal(w.Body.Bytes(), &response))
		is.Equal(response.Message, tc.message)
	}
}

func TestDeniedMessages(t *testing.T) {
	is := is.New(t)

	is.Equal(deniedMessage("device", Read), "Not authorized to access this device")
	is.Equal(deniedMessage("calls", Read), "Not authorized to access this device's calls")
	is.Equal(deniedMessage("device", Update), "Not authorized to update this device")
	is.Equal(deniedMessage("device", Delete), "Not authorized to delete this device")
	is.Equal(deniedMessage("commands", Command), "Not authorized to send commands to this device")
}

func TestInvalidPolicyIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := NewAuthorizer(context.Background(), strings.NewReader("package devicemonitor.authz\n\nallow {"), &deviceLoaderMock{})
	is.True(err != nil)
}

func TestSessionTokenIsAccepted(t *testing.T) {
	is := is.New(t)
	session := NewSession(SessionConfig{Secret: "secret", TTL: time.Minute})

	var userID string
	handler := session.Authenticator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := session.Issue("alice")
	is.NoErr(err)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusOK)
	is.Equal(userID, "alice")

	req = httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusOK)
}

func TestInvalidSessionTokensAreRejected(t *testing.T) {
	is := is.New(t)
	session := NewSession(SessionConfig{Secret: "secret", TTL: time.Minute})
	handler := session.Authenticator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	forged, err := NewSession(SessionConfig{Secret: "another secret"}).Issue("alice")
	is.NoErr(err)

	expired, err := NewSession(SessionConfig{Secret: "secret", TTL: time.Nanosecond}).Issue("alice")
	is.NoErr(err)
	time.Sleep(1100 * time.Millisecond)

	for _, token := range []string{"", "garbage", forged, expired} {
		req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		is.Equal(w.Code, http.StatusUnauthorized)
	}
}

func TestLoginRedirectsToProvider(t *testing.T) {
	is := is.New(t)

	session := NewSession(SessionConfig{
		Secret: "secret",
		OAuth2: &oauth2.Config{
			ClientID: "dashboard",
			Endpoint: oauth2.Endpoint{AuthURL: "https://idp.example.com/authorize", TokenURL: "https://idp.example.com/token"},
		},
	})
	is.True(session.LoginEnabled())

	w := httptest.NewRecorder()
	session.LoginHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/login", nil))

	is.Equal(w.Code, http.StatusFound)

	location, err := url.Parse(w.Header().Get("Location"))
	is.NoErr(err)
	is.Equal(location.Host, "idp.example.com")

	cookies := w.Result().Cookies()
	is.Equal(len(cookies), 1)
	is.Equal(cookies[0].Name, stateCookie)
	is.Equal(location.Query().Get("state"), cookies[0].Value)
}

func TestCallbackSignsInUser(t *testing.T) {
	is := is.New(t)

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/token":
			w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"sub":"alice","email":"alice@example.com","given_name":"Alice","family_name":"Andersson"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer idp.Close()

	session := NewSession(SessionConfig{
		Secret:      "secret",
		UserInfoURL: idp.URL + "/userinfo",
		OAuth2: &oauth2.Config{
			ClientID:     "dashboard",
			ClientSecret: "dashboard-secret",
			Endpoint:     oauth2.Endpoint{AuthURL: idp.URL + "/authorize", TokenURL: idp.URL + "/token"},
		},
	})

	users := &userUpserterMock{}

	req := httptest.NewRequest(http.MethodGet, "/api/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s1"})
	w := httptest.NewRecorder()

	session.CallbackHandler(users).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusFound)
	is.Equal(len(users.upserted), 1)
	is.Equal(users.upserted[0].ID, "alice")
	is.Equal(*users.upserted[0].FirstName, "Alice")
	is.True(users.upserted[0].ProfileImageURL == nil)

	var jwt *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			jwt = c
		}
	}
	is.True(jwt != nil)
	is.True(jwt.Value != "")
}

func TestCallbackWithWrongStateIsRejected(t *testing.T) {
	is := is.New(t)

	session := NewSession(SessionConfig{Secret: "secret", OAuth2: &oauth2.Config{}})

	req := httptest.NewRequest(http.MethodGet, "/api/callback?code=abc&state=s2", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s1"})
	w := httptest.NewRecorder()

	session.CallbackHandler(&userUpserterMock{}).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusBadRequest)
}

func TestLogoutClearsSession(t *testing.T) {
	is := is.New(t)

	w := httptest.NewRecorder()
	NewSession(SessionConfig{Secret: "secret"}).LogoutHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logout", nil))

	is.Equal(w.Code, http.StatusFound)
	cookies := w.Result().Cookies()
	is.Equal(len(cookies), 1)
	is.Equal(cookies[0].Name, sessionCookie)
	is.True(cookies[0].MaxAge < 0)
}

func setupGuard(t *testing.T, resource string, action Action) (*is.I, *chi.Mux) {
	is := is.New(t)

	authz, err := NewAuthorizer(context.Background(), strings.NewReader(DefaultPolicy), &deviceLoaderMock{})
	is.NoErr(err)

	router := chi.NewRouter()
	router.With(authz.RequireDeviceOwner(resource, action)).Post("/devices/{deviceID}/commands", func(w http.ResponseWriter, r *http.Request) {
		device, ok := DeviceFromContext(r.Context())
		is.True(ok)
		fmt.Fprintf(w, "device %d", device.ID)
	})

	return is, router
}

type deviceLoaderMock struct{}

func (deviceLoaderMock) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	switch deviceID {
	case 1:
		return types.Device{ID: 1, UserID: "alice"}, nil
	case 2:
		return types.Device{}, database.ErrNotFound
	default:
		return types.Device{}, database.ErrRepositoryError
	}
}

type userUpserterMock struct {
	upserted []types.User
}

func (m *userUpserterMock) UpsertUser(ctx context.Context, user types.User) (types.User, error) {
	m.upserted = append(m.upserted, user)
	return user, nil
}
