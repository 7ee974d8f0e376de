package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"teamflow/internal/auth"
	"teamflow/internal/service"
	"teamflow/internal/storage/sqlite"
)

type testServer struct {
	t   *testing.T
	srv *Server
	n   int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens := auth.NewTokenService("test-secret", time.Hour, auth.NewMemoryRevoker())
	srv := New(service.New(store, nil, logger), tokens, logger, Options{})
	return &testServer{t: t, srv: srv}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	body := decode(t, rec)
	errBody, _ := body["error"].(map[string]any)
	if errBody["code"] != code {
		t.Fatalf("error code = %v, want %s", errBody["code"], code)
	}
}

// signup registers and logs in a fresh user and returns the session token.
func (ts *testServer) signup(first string) (string, int64) {
	ts.t.Helper()
	ts.n++
	email := fmt.Sprintf("%s%d@example.com", first, ts.n)
	rec := ts.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": "password123", "confirm_password": "password123",
		"first_name": first, "last_name": "Tester",
	})
	expectStatus(ts.t, rec, http.StatusCreated)

	rec = ts.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "password123"})
	expectStatus(ts.t, rec, http.StatusOK)
	body := decode(ts.t, rec)
	user := body["user"].(map[string]any)
	return body["token"].(string), int64(user["id"].(float64))
}

func id(t *testing.T, rec *httptest.ResponseRecorder, key string) int64 {
	t.Helper()
	obj, ok := decode(t, rec)[key].(map[string]any)
	if !ok {
		t.Fatalf("no %q in %s", key, rec.Body.String())
	}
	return int64(obj["id"].(float64))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	expectError(t, ts.do(http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized, "UNAUTHENTICATED")
	expectError(t, ts.do(http.MethodGet, "/api/me", "garbage", nil), http.StatusUnauthorized, "UNAUTHENTICATED")

	token, userID := ts.signup("jane")
	rec := ts.do(http.MethodGet, "/api/me", token, nil)
	expectStatus(t, rec, http.StatusOK)
	user := decode(t, rec)["user"].(map[string]any)
	if int64(user["id"].(float64)) != userID || user["initials"] != "JT" || user["full_name"] != "jane Tester" {
		t.Errorf("me = %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash serialised")
	}

	// Cookie sessions work as well as bearer tokens.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	cookieRec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(cookieRec, req)
	expectStatus(t, cookieRec, http.StatusOK)

	expectStatus(t, ts.do(http.MethodPost, "/api/auth/logout", token, nil), http.StatusNoContent)
	expectError(t, ts.do(http.MethodGet, "/api/me", token, nil), http.StatusUnauthorized, "UNAUTHENTICATED")

	rec = ts.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane1@example.com", "password": "nope-nope"})
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHENTICATED")
}

func TestTokenWithNonNumericSubjectIsRejected(t *testing.T) {
	ts := newTestServer(t)
	claims := jwt.RegisteredClaims{
		Subject:   "abc",
		Issuer:    "teamflow",
		ID:        "forged",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expectError(t, ts.do(http.MethodGet, "/api/me", token, nil), http.StatusUnauthorized, "UNAUTHENTICATED")
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body gin.H
	}{
		{"Given a short password Then 400", gin.H{"email": "a@b.io", "password": "short", "confirm_password": "short", "first_name": "a", "last_name": "b"}},
		{"Given a malformed email Then 400", gin.H{"email": "nope", "password": "password123", "confirm_password": "password123", "first_name": "a", "last_name": "b"}},
		{"Given mismatched passwords Then 400", gin.H{"email": "a@b.io", "password": "password123", "confirm_password": "password321", "first_name": "a", "last_name": "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, ts.do(http.MethodPost, "/api/auth/register", "", tt.body), http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}
}

func TestTaskWorkflowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	admin, _ := ts.signup("ada")
	member, memberID := ts.signup("bob")

	rec := ts.do(http.MethodPost, "/api/organizations", admin, gin.H{"name": "Acme"})
	expectStatus(t, rec, http.StatusCreated)
	code := decode(t, rec)["organization"].(map[string]any)["invitation_code"].(string)

	expectStatus(t, ts.do(http.MethodPost, "/api/organizations/join", member, gin.H{"invitation_code": code}), http.StatusOK)
	expectError(t, ts.do(http.MethodPost, "/api/organizations/join", member, gin.H{"invitation_code": code}), http.StatusConflict, "CONFLICT")

	rec = ts.do(http.MethodPost, "/api/projects", admin, gin.H{"name": "Launch", "theme": "#2563eb"})
	expectStatus(t, rec, http.StatusCreated)
	projectID := id(t, rec, "project")

	expectError(t, ts.do(http.MethodPost, "/api/projects", admin, gin.H{"name": "Bad", "theme": "red"}), http.StatusBadRequest, "VALIDATION_ERROR")
	expectError(t, ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", projectID), admin, gin.H{}), http.StatusBadRequest, "VALIDATION_ERROR")

	rec = ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", projectID), admin, gin.H{"title": "Countdown", "status": "done"})
	expectStatus(t, rec, http.StatusCreated)
	task := decode(t, rec)["task"].(map[string]any)
	if task["status"] != "todo" || task["priority"] != "medium" || task["project_name"] != "Launch" {
		t.Fatalf("created task = %v", task)
	}
	taskID := int64(task["id"].(float64))
	taskPath := fmt.Sprintf("/api/tasks/%d", taskID)

	expectError(t, ts.do(http.MethodGet, taskPath, member, nil), http.StatusForbidden, "FORBIDDEN")
	expectError(t, ts.do(http.MethodGet, "/api/tasks/9999", member, nil), http.StatusNotFound, "NOT_FOUND")
	expectError(t, ts.do(http.MethodGet, "/api/tasks/abc", member, nil), http.StatusBadRequest, "VALIDATION_ERROR")

	expectStatus(t, ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/members", projectID), admin, gin.H{"user_id": memberID}), http.StatusCreated)
	expectError(t, ts.do(http.MethodPatch, taskPath+"/status", member, gin.H{"status": "in_progress"}), http.StatusForbidden, "FORBIDDEN")

	rec = ts.do(http.MethodPost, taskPath+"/assignees", admin, gin.H{"user_id": memberID})
	expectStatus(t, rec, http.StatusOK)
	assignees := decode(t, rec)["task"].(map[string]any)["assignees"].([]any)
	if len(assignees) != 1 || assignees[0].(map[string]any)["initials"] != "BT" {
		t.Fatalf("assignees = %v", assignees)
	}

	rec = ts.do(http.MethodPatch, taskPath+"/status", member, gin.H{"status": "in_progress"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["task"].(map[string]any)["status"]; got != "in_progress" {
		t.Errorf("status = %v", got)
	}
	expectError(t, ts.do(http.MethodPatch, taskPath+"/status", member, gin.H{"status": "blocked"}), http.StatusBadRequest, "VALIDATION_ERROR")
	expectError(t, ts.do(http.MethodPut, taskPath, member, gin.H{"title": "Mine now"}), http.StatusForbidden, "FORBIDDEN")

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks?status=in_progress&sort_by=title&sort_order=asc", projectID), member, nil)
	expectStatus(t, rec, http.StatusOK)
	if total := decode(t, rec)["total"]; total != float64(1) {
		t.Errorf("filtered total = %v", total)
	}
	expectError(t, ts.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks?sort_by=password", projectID), member, nil), http.StatusBadRequest, "VALIDATION_ERROR")

	rec = ts.do(http.MethodPost, taskPath+"/comments", member, gin.H{"content": "on it"})
	expectStatus(t, rec, http.StatusCreated)
	comment := decode(t, rec)["comment"].(map[string]any)
	if comment["author_initials"] != "BT" {
		t.Errorf("comment = %v", comment)
	}
	commentPath := fmt.Sprintf("/api/comments/%d", int64(comment["id"].(float64)))
	expectError(t, ts.do(http.MethodDelete, commentPath, admin, nil), http.StatusForbidden, "FORBIDDEN")
	expectStatus(t, ts.do(http.MethodDelete, commentPath, member, nil), http.StatusNoContent)

	rec = ts.do(http.MethodGet, "/api/dashboard", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	dash := decode(t, rec)["dashboard"].(map[string]any)
	counts := dash["task_counts"].(map[string]any)
	if counts["in_progress"] != float64(1) {
		t.Errorf("dashboard counts = %v", counts)
	}

	expectError(t, ts.do(http.MethodDelete, fmt.Sprintf("/api/projects/%d", projectID), member, nil), http.StatusForbidden, "FORBIDDEN")
	expectStatus(t, ts.do(http.MethodDelete, fmt.Sprintf("/api/projects/%d", projectID), admin, nil), http.StatusNoContent)
	expectError(t, ts.do(http.MethodGet, taskPath, admin, nil), http.StatusNotFound, "NOT_FOUND")
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t)
	expectError(t, ts.do(http.MethodGet, "/api/nothing-here", "", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestInitials(t *testing.T) {
	tests := []struct {
		first, last, email, want string
	}{
		{"jane", "doe", "jd@example.com", "JD"},
		{"Émile", "zola", "ez@example.com", "ÉZ"},
		{"", "", "max.power@example.com", "MA"},
		{"Solo", "", "x@example.com", "X"},
	}
	for _, tt := range tests {
		if got := initials(tt.first, tt.last, tt.email); got != tt.want {
			t.Errorf("initials(%q, %q, %q) = %q, want %q", tt.first, tt.last, tt.email, got, tt.want)
		}
	}
}
