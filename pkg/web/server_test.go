package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumenwave/go-host/pkg/anam"
	"github.com/lumenwave/go-host/pkg/broker"
)

type fakeExchanger struct {
	token string
	err   error
	calls int
}

func (f *fakeExchanger) SessionToken(_ context.Context, persona anam.PersonaConfig) (string, error) {
	f.calls++
	if err := persona.Validate(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func newTestServer(t *testing.T, exchanger TokenExchanger) *Server {
	t.Helper()
	if exchanger == nil {
		exchanger = &fakeExchanger{token: "tok"}
	}
	cfg := Config{Port: "0", Password: "opensesame"}
	return NewServer(cfg, broker.NewStore(), exchanger)
}

func doJSON(t *testing.T, s *Server, method, path string, body any, mod func(*http.Request)) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mod != nil {
		mod(req)
		// app.Test serializes via the request's RequestURI, which
		// httptest.NewRequest froze before mod could edit the URL.
		req.RequestURI = req.URL.RequestURI()
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestLoginCorrectPassword(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doJSON(t, s, http.MethodPost, "/api/login",
		map[string]string{"username": "kim", "password": "opensesame"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie SameSite = %v, want Strict", cookie.SameSite)
	}

	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Errorf("ok = %v, want true", body["ok"])
	}
	sid, _ := body["sessionId"].(string)
	if sid == "" {
		t.Fatal("no sessionId in response")
	}
	if sid != cookie.Value {
		t.Errorf("sessionId %q != cookie value %q", sid, cookie.Value)
	}
	if !s.store.Validate(sid) {
		t.Error("issued session does not validate")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doJSON(t, s, http.MethodPost, "/api/login",
		map[string]string{"username": "kim", "password": "nope"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			t.Error("session cookie set on failed login")
		}
	}
	if s.store.Len() != 0 {
		t.Errorf("store has %d sessions after failed login", s.store.Len())
	}
}

func TestProtectedRouteRejectsAnonymous(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
		map[string]any{"personaConfig": anam.DefaultPersona()}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestProtectedRouteCredentialForms(t *testing.T) {
	s := newTestServer(t, nil)
	sid := s.store.Create("kim")

	cases := []struct {
		name string
		mod  func(*http.Request)
		want int
	}{
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
		}, http.StatusOK},
		{"session header", func(r *http.Request) {
			r.Header.Set("x-session-id", sid)
		}, http.StatusOK},
		{"password header", func(r *http.Request) {
			r.Header.Set("x-access-password", "opensesame")
		}, http.StatusOK},
		{"password query", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("password", "opensesame")
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"bogus session", func(r *http.Request) {
			r.Header.Set("x-session-id", "deadbeef")
		}, http.StatusUnauthorized},
		{"wrong password", func(r *http.Request) {
			r.Header.Set("x-access-password", "nope")
		}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
				map[string]any{"personaConfig": anam.DefaultPersona()}, tc.mod)
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestAuthCheck(t *testing.T) {
	s := newTestServer(t, nil)
	sid := s.store.Create("kim")

	t.Run("valid session reports username", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodGet, "/api/auth-check", nil, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["username"] != "kim" {
			t.Errorf("username = %v, want kim", body["username"])
		}
	})

	t.Run("password only", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodGet, "/api/auth-check", nil, func(r *http.Request) {
			r.Header.Set("x-access-password", "opensesame")
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodGet, "/api/auth-check", nil, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestLogoutInvalidatesSession(t *testing.T) {
	s := newTestServer(t, nil)
	sid := s.store.Create("kim")

	resp := doJSON(t, s, http.MethodPost, "/api/logout", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if s.store.Validate(sid) {
		t.Error("session still valid after logout")
	}

	// Logout without any session is still a 200.
	resp2 := doJSON(t, s, http.MethodPost, "/api/logout", nil, nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("anonymous logout status = %d, want 200", resp2.StatusCode)
	}
}

func TestSessionTokenMissingPersona(t *testing.T) {
	ex := &fakeExchanger{token: "tok"}
	s := newTestServer(t, ex)
	sid := s.store.Create("")

	resp := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
		map[string]any{}, func(r *http.Request) {
			r.Header.Set("x-session-id", sid)
		})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if ex.calls != 0 {
		t.Errorf("exchanger called %d times for missing persona", ex.calls)
	}
}

func TestSessionTokenUpstreamFailure(t *testing.T) {
	ex := &fakeExchanger{err: &anam.APIError{StatusCode: 502, Body: "bad gateway"}}
	s := newTestServer(t, ex)
	sid := s.store.Create("")

	resp := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
		map[string]any{"personaConfig": anam.DefaultPersona()}, func(r *http.Request) {
			r.Header.Set("x-session-id", sid)
		})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestSessionTokenSuccess(t *testing.T) {
	ex := &fakeExchanger{token: "tok-123"}
	s := newTestServer(t, ex)
	sid := s.store.Create("")

	resp := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
		map[string]any{"personaConfig": anam.DefaultPersona()}, func(r *http.Request) {
			r.Header.Set("x-session-id", sid)
		})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["sessionToken"] != "tok-123" {
		t.Errorf("sessionToken = %v, want tok-123", body["sessionToken"])
	}
}

// Login then reuse the issued id as a header credential end to end.
func TestLoginThenHeaderCredential(t *testing.T) {
	ex := &fakeExchanger{token: "tok"}
	s := newTestServer(t, ex)

	resp := doJSON(t, s, http.MethodPost, "/api/login",
		map[string]string{"username": "kim", "password": "opensesame"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	sid := body["sessionId"].(string)

	resp2 := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
		map[string]any{"personaConfig": anam.DefaultPersona()}, func(r *http.Request) {
			r.Header.Set("x-session-id", sid)
		})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("token status = %d, want 200", resp2.StatusCode)
	}

	// Deleting the session closes the door.
	s.store.Delete(sid)
	resp3 := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
		map[string]any{"personaConfig": anam.DefaultPersona()}, func(r *http.Request) {
			r.Header.Set("x-session-id", sid)
		})
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusUnauthorized {
		t.Errorf("token status after delete = %d, want 401", resp3.StatusCode)
	}
}

func TestExchangerErrorIsOpaque(t *testing.T) {
	wantErr := errors.New("dial tcp: timeout")
	ex := &fakeExchanger{err: wantErr}
	s := newTestServer(t, ex)

	resp := doJSON(t, s, http.MethodPost, "/api/anam/session-token",
		map[string]any{"personaConfig": anam.DefaultPersona()}, func(r *http.Request) {
			r.Header.Set("x-access-password", "opensesame")
		})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] == "" {
		t.Error("error body missing")
	}
}
