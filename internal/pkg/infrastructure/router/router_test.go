package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
)

func TestListedOriginMaySendCredentials(t *testing.T) {
	is := is.New(t)

	w := preflight(New("test", []string{"https://dashboard.example.com"}), "https://dashboard.example.com")

	is.Equal(w.Header().Get("Access-Control-Allow-Origin"), "https://dashboard.example.com")
	is.Equal(w.Header().Get("Access-Control-Allow-Credentials"), "true")
}

func TestUnlistedOriginIsNotAllowed(t *testing.T) {
	is := is.New(t)

	w := preflight(New("test", []string{"https://dashboard.example.com"}), "https://evil.example.com")

	is.Equal(w.Header().Get("Access-Control-Allow-Origin"), "")
	is.Equal(w.Header().Get("Access-Control-Allow-Credentials"), "")
}

func TestAnyOriginWithoutCredentialsWhenNoneAreListed(t *testing.T) {
	is := is.New(t)

	w := preflight(New("test", nil), "https://evil.example.com")

	is.Equal(w.Header().Get("Access-Control-Allow-Origin"), "*")
	is.Equal(w.Header().Get("Access-Control-Allow-Credentials"), "")
}

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/devices", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}
