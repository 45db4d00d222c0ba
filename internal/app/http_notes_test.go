package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/api/internal/store"
)

func cookieFor(t *testing.T, svc *Service, user store.User) *http.Cookie {
	t.Helper()
	session, err := svc.issueSession(user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: sessionCookie, Value: session.Token}
}

func doJSON(t *testing.T, server *HTTPServer, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func dataListOf(t *testing.T, rr *httptest.ResponseRecorder) []any {
	t.Helper()
	payload := decodeEnvelope(t, rr)
	if payload["success"] != true {
		t.Fatalf("expected success envelope, got %s", rr.Body.String())
	}
	list, ok := payload["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %s", rr.Body.String())
	}
	return list
}

func TestNoteCRUDOverHTTP(t *testing.T) {
	ms := newMemStore()
	owner := addUser(ms, "user-1", "avery", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)
	cookie := cookieFor(t, svc, owner)

	rr := doJSON(t, server, http.MethodPost, "/api/notes", `{"title":"Groceries","content":"milk","images":["http://cdn/img.png"]}`, cookie)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d body=%s", rr.Code, rr.Body.String())
	}
	created := dataOf(t, rr)
	noteID := created["id"].(string)
	if created["userId"] != owner.ID {
		t.Fatalf("note must belong to the caller, got %v", created["userId"])
	}

	rr = doJSON(t, server, http.MethodGet, "/api/notes", "", cookie)
	if len(dataListOf(t, rr)) != 1 {
		t.Fatalf("expected one note, body=%s", rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPatch, "/api/notes/"+noteID, `{"isPinned":true,"title":"Groceries v2"}`, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: %d body=%s", rr.Code, rr.Body.String())
	}
	patched := dataOf(t, rr)
	if patched["isPinned"] != true || patched["title"] != "Groceries v2" {
		t.Fatalf("patch not applied: %s", rr.Body.String())
	}
	if patched["content"] != "milk" {
		t.Fatalf("untouched field must survive the patch: %s", rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/notes/"+noteID, "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/notes/"+noteID, "", cookie)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPatchBlankTitleRejectedOverHTTP(t *testing.T) {
	ms := newMemStore()
	owner := addUser(ms, "user-1", "avery", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)
	cookie := cookieFor(t, svc, owner)
	note := addNote(ms, "note-1", owner.ID, false, false, false, false)

	rr := doJSON(t, server, http.MethodPatch, "/api/notes/"+note.ID, `{"title":"   "}`, cookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestNonOwnerCannotMutateOverHTTP(t *testing.T) {
	ms := newMemStore()
	owner := addUser(ms, "user-1", "avery", false)
	other := addUser(ms, "user-2", "blake", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)
	note := addNote(ms, "note-1", owner.ID, false, false, false, false)
	cookie := cookieFor(t, svc, other)

	rr := doJSON(t, server, http.MethodPut, "/api/notes/"+note.ID, `{"title":"hijack"}`, cookie)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on update, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server, http.MethodDelete, "/api/notes/"+note.ID, "", cookie)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on delete, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPublicFeedShowsOnlyModeratedNotes(t *testing.T) {
	ms := newMemStore()
	owner := addUser(ms, "user-1", "avery", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)

	addNote(ms, "note-draft", owner.ID, false, false, false, false)
	addNote(ms, "note-pending", owner.ID, false, true, false, false)
	addNote(ms, "note-rejected", owner.ID, false, false, false, true)
	approved := addNote(ms, "note-approved", owner.ID, false, true, true, false)

	rr := doJSON(t, server, http.MethodGet, "/api/public-notes", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("public notes: %d body=%s", rr.Code, rr.Body.String())
	}
	list := dataListOf(t, rr)
	if len(list) != 1 {
		t.Fatalf("expected one public note, got %d body=%s", len(list), rr.Body.String())
	}
	entry := list[0].(map[string]any)
	if entry["id"] != approved.ID {
		t.Fatalf("expected %s, got %v", approved.ID, entry["id"])
	}
	author, ok := entry["user"].(map[string]any)
	if !ok || author["username"] != "avery" {
		t.Fatalf("expected joined author identity, got %s", rr.Body.String())
	}
}

func TestAnonymousReadOfPendingNoteForbidden(t *testing.T) {
	ms := newMemStore()
	owner := addUser(ms, "user-1", "avery", false)
	server := newTestServer(ms)
	note := addNote(ms, "note-1", owner.ID, false, true, false, false)

	rr := doJSON(t, server, http.MethodGet, "/api/notes/"+note.ID, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}

	approvedNote := addNote(ms, "note-2", owner.ID, false, true, true, false)
	rr = doJSON(t, server, http.MethodGet, "/api/notes/"+approvedNote.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("approved public note must be anonymously readable, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ms := newMemStore()
	user := addUser(ms, "user-1", "avery", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)
	cookie := cookieFor(t, svc, user)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/pending-notes"},
		{http.MethodGet, "/api/admin/pending-count"},
		{http.MethodGet, "/api/admin/note-stats"},
		{http.MethodPut, "/api/admin/approve-note/note-1"},
		{http.MethodPut, "/api/admin/reject-note/note-1"},
	} {
		rr := doJSON(t, server, route.method, route.path, "", cookie)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d body=%s", route.method, route.path, rr.Code, rr.Body.String())
		}
	}
}

func TestModerationFlowOverHTTP(t *testing.T) {
	ms := newMemStore()
	owner := addUser(ms, "user-1", "avery", false)
	admin := addUser(ms, "user-9", "root", true)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)
	adminCookie := cookieFor(t, svc, admin)

	first := addNote(ms, "note-1", owner.ID, false, true, false, false)
	second := addNote(ms, "note-2", owner.ID, false, true, false, false)

	rr := doJSON(t, server, http.MethodGet, "/api/admin/pending-count", "", adminCookie)
	if dataOf(t, rr)["count"] != float64(2) {
		t.Fatalf("expected 2 pending, got %s", rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPut, "/api/admin/approve-note/"+first.ID, "", adminCookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server, http.MethodPut, "/api/admin/reject-note/"+second.ID, "", adminCookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/admin/note-stats", "", adminCookie)
	stats := dataOf(t, rr)
	if stats["pending"] != float64(0) || stats["approved"] != float64(1) || stats["rejected"] != float64(1) {
		t.Fatalf("unexpected stats: %s", rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/admin/pending-notes", "", adminCookie)
	if len(dataListOf(t, rr)) != 0 {
		t.Fatalf("expected empty pending list, got %s", rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPut, "/api/admin/approve-note/note-missing", "", adminCookie)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing note, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGateEndpoint(t *testing.T) {
	ms := newMemStore()
	user := addUser(ms, "user-1", "avery", false)
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*", "", false)
	cookie := cookieFor(t, svc, user)

	cases := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		redirect string
	}{
		{"protected without credential", "/dashboard", nil, "/login"},
		{"protected with credential", "/dashboard", cookie, ""},
		{"auth page with credential", "/login", cookie, "/dashboard"},
		{"auth page without credential", "/login", nil, ""},
		{"public page without credential", "/public-notes", nil, ""},
	}

	for _, tc := range cases {
		var cookies []*http.Cookie
		if tc.cookie != nil {
			cookies = append(cookies, tc.cookie)
		}
		rr := doJSON(t, server, http.MethodGet, "/api/gate?path="+tc.path, "", cookies...)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: %d body=%s", tc.name, rr.Code, rr.Body.String())
		}
		data := dataOf(t, rr)
		if data["redirect"] != tc.redirect {
			t.Fatalf("%s: expected redirect %q, got %v", tc.name, tc.redirect, data["redirect"])
		}
		if data["allow"] != (tc.redirect == "") {
			t.Fatalf("%s: allow flag inconsistent: %s", tc.name, rr.Body.String())
		}
	}
}
