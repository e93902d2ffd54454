package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanpass/internal/auth"
	"leanpass/internal/db"
	"leanpass/internal/extract"
	"leanpass/internal/llm"
	"leanpass/internal/models"
	"leanpass/internal/services"
)

type fakeCompleter struct {
	mu     sync.Mutex
	body   string
	err    error
	shapes []extract.Shape
}

func (f *fakeCompleter) Complete(_ context.Context, shape extract.Shape, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shapes = append(f.shapes, shape)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func (f *fakeCompleter) Model() string { return "fake-model" }

func (f *fakeCompleter) set(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

type testEnv struct {
	handler   http.Handler
	completer *fakeCompleter
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	users := services.NewUserService(conn)
	subjects := services.NewSubjectService(conn)
	exams := services.NewExamService(conn, subjects, 1<<20)
	guides := services.NewStudyGuideService(conn)
	completer := &fakeCompleter{}

	sessions := auth.NewSessions(auth.NewTokens("test-secret", time.Hour), auth.NewMemoryRevoker(), users, false)
	srv := NewServer(Services{
		Users:    users,
		Subjects: subjects,
		Exams:    exams,
		Guides:   guides,
		Analysis: services.NewAnalysisService(exams, guides, completer, nil),
	}, sessions, nil, 1<<20)

	return &testEnv{handler: srv.Handler(), completer: completer}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, token)
}

func (e *testEnv) upload(t *testing.T, path, token string, fields map[string]string, fileName, content string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(t, req, token)
}

func (e *testEnv) send(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

// register creates an account and returns its bearer token.
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "name": "Student", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &session))
	return session.Token
}

func (e *testEnv) subject(t *testing.T, token, name string) models.Subject {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/api/subjects", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	var subject models.Subject
	require.NoError(t, json.Unmarshal(resp.Data, &subject))
	return subject
}

func (e *testEnv) exam(t *testing.T, token, subjectID string) models.Exam {
	t.Helper()
	rec, resp := e.upload(t, "/api/exams", token, map[string]string{"subjectId": subjectID, "title": "Midterm"},
		"midterm.txt", "1. Compute the limit of sin(x)/x.")
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	var exam models.Exam
	require.NoError(t, json.Unmarshal(resp.Data, &exam))
	return exam
}

func completion(t *testing.T, content, finishReason string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"model": "test-model",
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finishReason,
		}},
	})
	require.NoError(t, err)
	return string(body)
}

func extendedTopics(t *testing.T, names ...string) string {
	t.Helper()
	records := make([]map[string]any, len(names))
	for i, name := range names {
		records[i] = map[string]any{
			"tema":           name,
			"frecuencia":     3,
			"dificultad":     2,
			"tipo_preguntas": []string{"test"},
			"orden_estudio":  i + 1,
			"guia_resolucion": map[string]any{
				"descripcion_general": "overview",
				"metodologia_estudio": []string{"step"},
				"conceptos_clave":     []string{"concept"},
				"errores_comunes":     []string{"mistake"},
			},
			"preguntas_ejemplo": []any{},
			"recursos":          []any{},
		}
	}
	raw, err := json.Marshal(records)
	require.NoError(t, err)
	return string(raw)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Data))

	rec, resp = env.do(t, http.MethodPost, "/api/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "Ana@Example.com", "name": "Ana", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.NotContains(t, string(resp.Data), "secret123")
	assert.NotContains(t, string(resp.Data), "passwordHash")

	rec, _ = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ana@example.com", "name": "Ana", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "bob@example.com", "name": "Bob", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "password")

	rec, resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, services.ErrInvalidCredentials.Error(), resp.Error)

	rec, resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var session struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &session))
	assert.Equal(t, "ana@example.com", session.User.Email)

	rec, resp = env.do(t, http.MethodGet, "/api/auth/me", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), "ana@example.com")

	cookieReq := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	cookieReq.AddCookie(cookies[0])
	rec, _ = env.send(t, cookieReq, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/auth/logout", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out", resp.Message)

	rec, resp = env.do(t, http.MethodGet, "/api/auth/me", session.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", resp.Error)
}

func TestAuth_BadBodies(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	rec, resp := env.send(t, req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", resp.Error)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
	rec, resp = env.send(t, req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body is empty", resp.Error)

	rec, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubjects(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ana@example.com")

	rec, _ := env.do(t, http.MethodGet, "/api/subjects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	math := env.subject(t, token, "Math")
	env.subject(t, token, "Physics")

	rec, resp := env.do(t, http.MethodPost, "/api/subjects", token, map[string]string{"name": "Math"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, resp.Error, "already exists")

	rec, resp = env.do(t, http.MethodGet, "/api/subjects", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Subject
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Physics", list[0].Name)

	rec, resp = env.do(t, http.MethodPut, "/api/subjects/"+math.ID, token, map[string]string{
		"name": "Calculus", "description": "Limits and derivatives",
	})
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	assert.Contains(t, string(resp.Data), "Calculus")

	rec, _ = env.do(t, http.MethodGet, "/api/subjects/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/subjects/00000000-0000-0000-0000-000000000000", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	other := env.register(t, "bob@example.com")
	rec, _ = env.do(t, http.MethodGet, "/api/subjects/"+math.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = env.do(t, http.MethodDelete, "/api/subjects/"+math.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPatch, "/api/subjects/"+math.ID, token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, resp = env.do(t, http.MethodDelete, "/api/subjects/"+math.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Subject deleted", resp.Message)

	rec, _ = env.do(t, http.MethodGet, "/api/subjects/"+math.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExams(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ana@example.com")
	math := env.subject(t, token, "Math")

	exam := env.exam(t, token, math.ID)
	assert.Equal(t, "Midterm", exam.Title)
	assert.Equal(t, models.FileTXT, exam.FileType)
	assert.Equal(t, models.StatusPending, exam.AnalysisStatus)
	assert.Empty(t, exam.FileURL)

	rec, resp := env.upload(t, "/api/exams", token, map[string]string{"subjectId": math.ID}, "slides.pptx", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "PDF and TXT")

	rec, _ = env.upload(t, "/api/exams", token, map[string]string{"subjectId": math.ID}, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.upload(t, "/api/exams", token, map[string]string{"subjectId": "nope"}, "a.txt", "text")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.upload(t, "/api/exams", token, map[string]string{"subjectId": "00000000-0000-0000-0000-000000000000"}, "a.txt", "text")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/exams?status=pending&subjectId="+math.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Exam
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Empty(t, list[0].FileURL)

	rec, resp = env.do(t, http.MethodGet, "/api/exams?status=completed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	rec, _ = env.do(t, http.MethodGet, "/api/exams?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/exams/"+exam.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var full models.Exam
	require.NoError(t, json.Unmarshal(resp.Data, &full))
	assert.Equal(t, services.EncodeDataURL("text/plain", []byte("1. Compute the limit of sin(x)/x.")), full.FileURL)

	rec, resp = env.do(t, http.MethodPut, "/api/exams/"+exam.ID, token, map[string]string{"title": "Final"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"title":"Final"`)

	rec, _ = env.do(t, http.MethodPut, "/api/exams/"+exam.ID, token, map[string]string{"title": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/exams/"+exam.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/exams/"+exam.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeExam_AndStudyGuides(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ana@example.com")
	math := env.subject(t, token, "Math")
	exam := env.exam(t, token, math.ID)
	env.completer.set(completion(t, "```json\n"+extendedTopics(t, "Limits", "Derivatives")+"\n```", "stop"), nil)

	rec, resp := env.do(t, http.MethodPost, "/api/analyze", token, map[string]string{"examId": exam.ID})
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	var guide models.StudyGuide
	require.NoError(t, json.Unmarshal(resp.Data, &guide))
	assert.Equal(t, 2, guide.TotalTopics)
	assert.Equal(t, "Limits", guide.Topics[0].Name)
	require.NotNil(t, guide.Topics[0].Guide)
	assert.Equal(t, []extract.Shape{extract.ShapeExtended}, env.completer.shapes)

	rec, resp = env.do(t, http.MethodGet, "/api/exams/"+exam.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"analysisStatus":"completed"`)

	rec, resp = env.do(t, http.MethodGet, "/api/study-guides?subjectId="+math.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var guides []models.StudyGuide
	require.NoError(t, json.Unmarshal(resp.Data, &guides))
	require.Len(t, guides, 1)
	assert.Equal(t, "Midterm", guides[0].ExamTitle)
	assert.Equal(t, "Math", guides[0].SubjectName)

	rec, _ = env.do(t, http.MethodGet, "/api/study-guides/"+guide.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := env.register(t, "bob@example.com")
	rec, _ = env.do(t, http.MethodGet, "/api/study-guides/"+guide.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/analyze", other, map[string]string{"examId": exam.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/study-guides/"+guide.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/study-guides/"+guide.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyze_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		want   string
	}{
		{"truncated", `{"choices":[{"message":{"content":"[{\"tema\":\"A\""},"finish_reason":"length"}]}`, nil, http.StatusUnprocessableEntity, "reduce the input size"},
		{"no topics", `{"choices":[{"message":{"content":"[{\"tema\":\"A\"}]"},"finish_reason":"stop"}]}`, nil, http.StatusUnprocessableEntity, services.ErrNoTopics.Error()},
		{"garbage", `{"choices":[{"message":{"content":"sorry, no"},"finish_reason":"stop"}]}`, nil, http.StatusBadGateway, "could not be read"},
		{"bad envelope", `<html>`, nil, http.StatusBadGateway, "could not be read"},
		{"upstream", "", fmt.Errorf("%w after 3 attempts: %w", llm.ErrUpstream, &llm.StatusError{StatusCode: 503}), http.StatusBadGateway, "Analysis failed"},
		{"not configured", "", llm.ErrNotConfigured, http.StatusServiceUnavailable, "not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			token := env.register(t, "ana@example.com")
			exam := env.exam(t, token, env.subject(t, token, "Math").ID)
			env.completer.set(tt.body, tt.err)

			rec, resp := env.do(t, http.MethodPost, "/api/analyze", token, map[string]string{"examId": exam.ID})
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.want)

			rec, resp = env.do(t, http.MethodGet, "/api/exams/"+exam.ID, token, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, string(resp.Data), `"analysisStatus":"error"`)
		})
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ana@example.com")

	rec, _ := env.do(t, http.MethodPost, "/api/analyze", token, map[string]string{"examId": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/analyze", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/analyze", "", map[string]string{"examId": "123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeUpload_NotPersisted(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ana@example.com")
	content := `[{"tema":"Limits","frecuencia":4,"dificultad":2,"tipo_preguntas":["test"],"orden_estudio":1}]`
	env.completer.set(completion(t, content, "stop"), nil)

	rec, resp := env.upload(t, "/api/analyze", token, nil, "exam.txt", "Question 1: compute a limit.")
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	var result services.DocumentAnalysis
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result.TotalTopics)
	assert.Equal(t, "test-model", result.Model)
	assert.NotContains(t, string(resp.Data), "guia_resolucion")
	assert.Equal(t, []extract.Shape{extract.ShapeBasic}, env.completer.shapes)

	rec, resp = env.do(t, http.MethodGet, "/api/study-guides", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	rec, resp = env.upload(t, "/api/analyze", token, nil, "blank.txt", "   \n ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrNoText.Error(), resp.Error)
}

func TestAnalysisJobs(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ana@example.com")
	math := env.subject(t, token, "Math")
	first := env.exam(t, token, math.ID)
	second := env.exam(t, token, math.ID)
	env.completer.set(completion(t, extendedTopics(t, "Limits"), "stop"), nil)

	rec, resp := env.do(t, http.MethodPost, "/api/analyze/jobs", token, map[string]any{
		"examIds": []string{first.ID, second.ID, first.ID},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, resp.Error)
	var job AnalysisJob
	require.NoError(t, json.Unmarshal(resp.Data, &job))
	require.Len(t, job.Exams, 2)
	assert.Equal(t, "Midterm", job.Exams[0].Title)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, resp = env.do(t, http.MethodGet, "/api/analyze/jobs/"+job.ID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(resp.Data, &job))
		if job.Status == JobStatusComplete || job.Status == JobStatusFailed {
			break
		}
		require.True(t, time.Now().Before(deadline), "job still %s", job.Status)
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, JobStatusComplete, job.Status)

	for _, exam := range job.Exams {
		assert.Equal(t, ExamStatusComplete, exam.Status)
		assert.Equal(t, 100, exam.Percent)
		require.NotNil(t, exam.Result)
		assert.Equal(t, 1, exam.Result.TotalTopics)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/study-guides", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var guides []models.StudyGuide
	require.NoError(t, json.Unmarshal(resp.Data, &guides))
	assert.Len(t, guides, 2)

	other := env.register(t, "bob@example.com")
	rec, _ = env.do(t, http.MethodGet, "/api/analyze/jobs/"+job.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysisJobs_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ana@example.com")

	rec, _ := env.do(t, http.MethodPost, "/api/analyze/jobs", token, map[string]any{"examIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/analyze/jobs", token, map[string]any{"examIds": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/analyze/jobs", token, map[string]any{
		"examIds": []string{"00000000-0000-0000-0000-000000000000"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ids := make([]string, maxJobExams+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("00000000-0000-0000-0000-%012d", i)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/analyze/jobs", token, map[string]any{"examIds": ids})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/analyze/jobs/00000000-0000-0000-0000-000000000000", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
