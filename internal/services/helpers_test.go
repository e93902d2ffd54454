package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"leanpass/internal/db"
	"leanpass/internal/extract"
	"leanpass/internal/models"
)

type fixture struct {
	db       *sql.DB
	users    *UserService
	subjects *SubjectService
	exams    *ExamService
	guides   *StudyGuideService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	subjects := NewSubjectService(conn)
	return &fixture{
		db:       conn,
		users:    NewUserService(conn),
		subjects: subjects,
		exams:    NewExamService(conn, subjects, 1024),
		guides:   NewStudyGuideService(conn),
	}
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), email, "Test User", "secret123")
	require.NoError(t, err)
	return user
}

func (f *fixture) subject(t *testing.T, userID, name string) *models.Subject {
	t.Helper()
	subject, err := f.subjects.Create(context.Background(), userID, name, "")
	require.NoError(t, err)
	return subject
}

func (f *fixture) exam(t *testing.T, userID, subjectID string) *models.Exam {
	t.Helper()
	exam, err := f.exams.Create(context.Background(), userID, ExamUpload{
		SubjectID: subjectID,
		Title:     "Midterm",
		FileName:  "midterm.txt",
		MIME:      "text/plain",
		Data:      []byte("1. Compute the limit of sin(x)/x.\n2. Differentiate x^2."),
	})
	require.NoError(t, err)
	return exam
}

// fakeCompleter answers every call with a fixed chat-completion body.
type fakeCompleter struct {
	body   string
	err    error
	calls  int
	shapes []extract.Shape
	texts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, shape extract.Shape, text string) ([]byte, error) {
	f.calls++
	f.shapes = append(f.shapes, shape)
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func (f *fakeCompleter) Model() string { return "fake-model" }

func completionBody(t *testing.T, content, finishReason string) string {
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

func extendedTopics(t *testing.T, n int) string {
	t.Helper()
	records := make([]map[string]any, n)
	for i := range records {
		records[i] = map[string]any{
			"tema":           "Topic " + string(rune('A'+i)),
			"frecuencia":     1 + i%5,
			"dificultad":     5 - i%5,
			"tipo_preguntas": []string{"test"},
			"orden_estudio":  n - i,
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
