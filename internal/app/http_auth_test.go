package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/api/internal/auth"
)

func newTestServer(ms *memStore) *HTTPServer {
	return NewHTTPServer(newTestService(ms), "*", "", false)
}

func postJSON(t *testing.T, server *HTTPServer, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func dataOf(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload := decodeEnvelope(t, rr)
	if payload["success"] != true {
		t.Fatalf("expected success envelope, got %s", rr.Body.String())
	}
	data, ok := payload["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %s", rr.Body.String())
	}
	return data
}

func sessionCookieOf(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == sessionCookie {
			return cookie
		}
	}
	t.Fatalf("expected %s cookie, headers=%v", sessionCookie, rr.Header())
	return nil
}

func TestSignUpVerifyLoginFlow(t *testing.T) {
	ms := newMemStore()
	server := newTestServer(ms)

	rr := postJSON(t, server, "/api/auth/signup", `{"username":"avery","email":"avery@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataOf(t, rr)
	userID, _ := data["userId"].(string)
	if userID == "" {
		t.Fatalf("expected userId in signup response")
	}

	// Login before verification is refused.
	rr = postJSON(t, server, "/api/auth/login", `{"email":"avery@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before verification, got %d body=%s", rr.Code, rr.Body.String())
	}

	user, err := ms.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("load created user: %v", err)
	}
	rr = postJSON(t, server, "/api/auth/verify-email", `{"token":"`+user.VerificationToken+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify email: %d body=%s", rr.Code, rr.Body.String())
	}

	rr = postJSON(t, server, "/api/auth/login", `{"email":"avery@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d body=%s", rr.Code, rr.Body.String())
	}
	cookie := sessionCookieOf(t, rr)
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}
	if cookie.MaxAge <= 0 {
		t.Fatalf("session cookie must carry the credential lifetime, got %d", cookie.MaxAge)
	}
	data = dataOf(t, rr)
	if data["token"] == "" {
		t.Fatalf("expected token in login payload")
	}

	// The cookie authenticates follow-up requests.
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	server.Handler().ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("users/me with cookie: %d body=%s", me.Code, me.Body.String())
	}
	if dataOf(t, me)["username"] != "avery" {
		t.Fatalf("expected username avery, got %s", me.Body.String())
	}
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	ms := newMemStore()
	server := newTestServer(ms)

	postJSON(t, server, "/api/auth/signup", `{"username":"avery","email":"avery@example.com","password":"hunter2hunter2"}`)

	rr := postJSON(t, server, "/api/auth/login", `{"email":"avery@example.com","password":"wrong-password"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeEnvelope(t, rr)
	if payload["success"] != false || payload["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected error envelope: %s", rr.Body.String())
	}
}

func TestSignUpShortPasswordRejected(t *testing.T) {
	server := newTestServer(newMemStore())
	rr := postJSON(t, server, "/api/auth/signup", `{"username":"avery","email":"avery@example.com","password":"short"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSignUpDuplicateEmailConflict(t *testing.T) {
	server := newTestServer(newMemStore())
	postJSON(t, server, "/api/auth/signup", `{"username":"avery","email":"avery@example.com","password":"hunter2hunter2"}`)
	rr := postJSON(t, server, "/api/auth/signup", `{"username":"blake","email":"avery@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestProtectedRouteWithoutCredentialUnauthorized(t *testing.T) {
	server := newTestServer(newMemStore())
	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if decodeEnvelope(t, rr)["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %s", rr.Body.String())
	}
}

func TestProtectedRouteWithExpiredTokenUnauthorized(t *testing.T) {
	ms := newMemStore()
	addUser(ms, "user-1", "avery", false)
	server := newTestServer(ms)

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:      "user-1",
		Username: "avery",
		JTI:      "jti-expired",
		Exp:      time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestBearerHeaderFallback(t *testing.T) {
	ms := newMemStore()
	user := addUser(ms, "user-1", "avery", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)

	session, err := svc.issueSession(user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLogoutClearsCookieAndRevokes(t *testing.T) {
	ms := newMemStore()
	user := addUser(ms, "user-1", "avery", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)

	session, err := svc.issueSession(user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	cookie := &http.Cookie{Name: sessionCookie, Value: session.Token}

	rr := postJSON(t, server, "/api/auth/logout", `{}`, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d body=%s", rr.Code, rr.Body.String())
	}
	cleared := sessionCookieOf(t, rr)
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got value=%q maxAge=%d", cleared.Value, cleared.MaxAge)
	}

	// The old token no longer authenticates.
	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.AddCookie(cookie)
	after := httptest.NewRecorder()
	server.Handler().ServeHTTP(after, req)
	if after.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d body=%s", after.Code, after.Body.String())
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ms := newMemStore()
	server := newTestServer(ms)

	postJSON(t, server, "/api/auth/signup", `{"username":"avery","email":"avery@example.com","password":"hunter2hunter2"}`)

	rr := postJSON(t, server, "/api/auth/reset-password/request", `{"email":"avery@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("request reset: %d body=%s", rr.Code, rr.Body.String())
	}

	// Unknown addresses get the same answer.
	rr = postJSON(t, server, "/api/auth/reset-password/request", `{"email":"nobody@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("request reset for unknown email: %d body=%s", rr.Code, rr.Body.String())
	}

	ms.mu.Lock()
	var resetToken string
	for token := range ms.resets {
		resetToken = token
	}
	ms.mu.Unlock()
	if resetToken == "" {
		t.Fatalf("expected a stored reset token")
	}

	rr = postJSON(t, server, "/api/auth/reset-password", `{"token":"`+resetToken+`","password":"newpassword123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset password: %d body=%s", rr.Code, rr.Body.String())
	}

	rr = postJSON(t, server, "/api/auth/reset-password", `{"token":"`+resetToken+`","password":"anotherpass123"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 reusing token, got %d body=%s", rr.Code, rr.Body.String())
	}
}
