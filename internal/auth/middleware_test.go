package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func sessionEcho(w http.ResponseWriter, r *http.Request) {
	if sess := SessionFromContext(r.Context()); sess != nil {
		w.Write([]byte(sess.Handle))
		return
	}
	w.Write([]byte("visitor"))
}

func requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: value})
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate(testSession("1"))
	h := RequireAuth(ts)(http.HandlerFunc(sessionEcho))

	tests := []struct {
		name       string
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", token, http.StatusOK, "octocat"},
		{"no cookie", "", http.StatusUnauthorized, ""},
		{"bad token", "garbage", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestWithCookie(tt.cookie))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate(testSession("1"))
	h := OptionalAuth(ts)(http.HandlerFunc(sessionEcho))

	tests := []struct {
		name     string
		cookie   string
		wantBody string
	}{
		{"valid token", token, "octocat"},
		{"no cookie", "", "visitor"},
		{"bad token is ignored", "garbage", "visitor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestWithCookie(tt.cookie))

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
