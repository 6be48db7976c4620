package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rtdacademy/assessments/internal/assessment"
	auth "github.com/rtdacademy/assessments/internal/auth/middleware"
	"github.com/rtdacademy/assessments/internal/course"
	"github.com/rtdacademy/assessments/internal/dispatch"
	"github.com/rtdacademy/assessments/internal/docstore"
	"github.com/rtdacademy/assessments/internal/gradebook"
	"github.com/rtdacademy/assessments/internal/submissions"
)

type harness struct {
	srv   *httptest.Server
	store docstore.Store
	auth  *auth.AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := course.Load("")
	require.NoError(t, err)
	store := docstore.NewInMemoryStore()
	log := submissions.NewInMemoryLog()
	book := gradebook.New(gradebook.NewInMemoryStore(), reg, nil, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := assessment.NewEngine(store, assessment.WithSubmissionLog(log), assessment.WithGradebook(book), assessment.WithLogger(logger))

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a := auth.NewAuthService("test-secret")
	h := NewRouter(Server{
		Dispatcher:      dispatch.New(reg, eng, dispatch.StoreLongAnswer{Store: store}, logger),
		State:           eng,
		Gradebook:       book,
		Submissions:     log,
		Auth:            a,
		Staff:           auth.StaffAccount{User: "staff", PassHash: string(hash)},
		EnableLocalAuth: true,
		CORSOrigins:     []string{"http://localhost:3000"},
		Logger:          logger,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, store: store, auth: a}
}

func (h *harness) token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := h.auth.IssueJWT(sub, role)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, tok, body string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return res.StatusCode, out
}

func (h *harness) answerKey(t *testing.T, identity, courseID, assessmentID string) assessment.SecureKey {
	t.Helper()
	k, err := assessment.NewKey(identity, courseID, assessmentID)
	require.NoError(t, err)
	var key assessment.SecureKey
	ok, err := h.store.Get(context.Background(), k.SecurePath(), &key)
	require.NoError(t, err)
	require.True(t, ok)
	return key
}

const mcPath = "/api/courses/2/assessments/unit1_assignment_q1"

func TestHealth(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestReadyzReportsProbe(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Server{
		Auth:   auth.NewAuthService("x"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Ready:  func(context.Context) error { return errors.New("db down") },
	}))
	defer srv.Close()
	res, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestRequiresToken(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(t, http.MethodPost, mcPath+"/generate", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStudentRoundTrip(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "kim@example.com", "student")

	code, body := h.do(t, http.MethodPost, mcPath+"/generate", tok, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "correctOptionId")

	code, body = h.do(t, http.MethodGet, mcPath, tok, "")
	require.Equal(t, http.StatusOK, code)
	state := body["state"].(map[string]any)
	assert.Equal(t, "active", state["status"])
	assert.Len(t, state["options"], 4)

	key := h.answerKey(t, "kim@example.com", "2", "unit1_assignment_q1")
	code, body = h.do(t, http.MethodPost, mcPath+"/submit", tok, `{"answer":"`+key.CorrectOptionID+`"}`)
	require.Equal(t, http.StatusOK, code, body)
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["isCorrect"])
	assert.Equal(t, key.CorrectOptionID, result["correctOptionId"])
	assert.Equal(t, float64(1), body["attemptsMade"])

	code, body = h.do(t, http.MethodPost, mcPath+"/generate", tok, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "this assessment has already been completed", body["error"])
}

func TestStudentCannotActForOthers(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "kim@example.com", "student")

	code, _ := h.do(t, http.MethodPost, mcPath+"/generate", tok, `{"studentIdentity":"lee@example.com"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(t, http.MethodGet, mcPath+"?student=lee@example.com", tok, "")
	assert.Equal(t, http.StatusOK, code, "the query is ignored for students, so this reads kim's state")

	staff := h.token(t, "staff", "teacher")
	code, body := h.do(t, http.MethodGet, mcPath+"?student=lee@example.com", staff, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])

	code, _ = h.do(t, http.MethodGet, mcPath+"?student=kim@example.com", staff, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "kim@example.com", "student")

	cases := []struct {
		name, path, body string
		code             int
		contains         string
	}{
		{"unknown assessment", "/api/courses/2/assessments/nope/generate", "", http.StatusNotFound, "unknown assessment"},
		{"unknown course", "/api/courses/77/assessments/x/generate", "", http.StatusNotFound, "unknown course"},
		{"illegal operation", mcPath + "/save", "", http.StatusBadRequest, "generate, evaluate, submit"},
		{"evaluate before generate", "/api/courses/2/assessments/unit1_exam_q1/evaluate", `{"answer":"a"}`, http.StatusNotFound, "No question"},
		{"bad json", mcPath + "/generate", `{`, http.StatusBadRequest, "bad json"},
		{"bad maxAttempts", mcPath + "/generate", `{"maxAttempts":0}`, http.StatusBadRequest, "MaxAttempts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := h.do(t, http.MethodPost, tc.path, tok, tc.body)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tc.contains)
		})
	}
}

func TestStaffViews(t *testing.T) {
	h := newHarness(t)
	student := h.token(t, "kim@example.com", "student")
	staff := h.token(t, "staff", "teacher")

	code, _ := h.do(t, http.MethodPost, mcPath+"/generate", student, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(t, http.MethodPost, mcPath+"/evaluate", student, `{"answer":"zz"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(t, http.MethodGet, "/api/courses/2/gradebook", student, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body := h.do(t, http.MethodGet, "/api/courses/2/gradebook", staff, "")
	require.Equal(t, http.StatusOK, code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "Unit 1 Assignment: Collisions", entry["title"])
	assert.Equal(t, float64(0), entry["score"])

	code, body = h.do(t, http.MethodGet, "/api/courses/2/submissions?student=kim@example.com", staff, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["submissions"], 1)

	code, _ = h.do(t, http.MethodGet, "/api/courses/2/submissions?limit=-1", staff, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLongAnswerOverHTTP(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "kim@example.com", "student")
	path := "/api/courses/2/assessments/lesson1_reflection"

	code, body := h.do(t, http.MethodPost, path+"/generate", tok, "")
	require.Equal(t, http.StatusOK, code, body)
	code, body = h.do(t, http.MethodPost, path+"/save", tok, `{"answer":"Longer stopping time means less force."}`)
	require.Equal(t, http.StatusOK, code, body)
	draft := body["draft"].(map[string]any)
	assert.Equal(t, "saved", draft["status"])

	code, _ = h.do(t, http.MethodPost, path+"/save", tok, `{"answer":"`+strings.Repeat("w ", 300)+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestLoginRoute(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(t, http.MethodPost, "/auth/login", "", `{"username":"staff","password":"s3cret","role":"teacher"}`)
	require.Equal(t, http.StatusOK, code)
	tok, _ := body["access_token"].(string)
	require.NotEmpty(t, tok)

	code, _ = h.do(t, http.MethodGet, "/api/courses/2/gradebook", tok, "")
	assert.Equal(t, http.StatusOK, code)
}
