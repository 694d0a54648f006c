package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mviana/labtrack/internal/api"
	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/notes"
	"github.com/mviana/labtrack/internal/repository/sqlite"
	"github.com/mviana/labtrack/internal/services"
	"github.com/mviana/labtrack/internal/testutil"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	catalog, err := curriculum.New([]curriculum.Week{
		{
			ID: "week-1",
			Tasks: []curriculum.Task{
				{ID: "t1"},
				{ID: "t2", Steps: []curriculum.Step{{ID: "a"}, {ID: "b"}}},
			},
		},
	})
	require.NoError(t, err)

	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.MustClose(t, db) })

	progRepo := sqlite.NewProgressRepository(db)
	noteRepo := sqlite.NewNoteRepository(db)
	labRepo := sqlite.NewLabSessionRepository(db)

	labs := services.NewLabService(labRepo, progRepo, catalog)
	srv := &api.Server{
		Progress: services.NewProgressService(progRepo, labs, catalog, notes.DefaultLimits()),
		Notes:    services.NewNotesService(noteRepo, progRepo, catalog, notes.DefaultLimits()),
		Labs:     labs,
	}
	return srv.Routes()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, target, user, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "every response is enveloped")
	return rec, env
}

func TestMissingIdentityRejected(t *testing.T) {
	h := newTestServer(t)

	rec, env := doRequest(t, h, http.MethodGet, "/progress", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestHealthNeedsNoIdentity(t *testing.T) {
	h := newTestServer(t)

	rec, env := doRequest(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestGetProgressEmpty(t *testing.T) {
	h := newTestServer(t)

	rec, env := doRequest(t, h, http.MethodGet, "/progress", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		Tasks map[string]json.RawMessage `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Empty(t, data.Tasks)
}

func TestUpdateProgressTask(t *testing.T) {
	h := newTestServer(t)

	rec, env := doRequest(t, h, http.MethodPost, "/progress", "alice",
		`{"task_id": "t1", "completed": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var data struct {
		TaskID string `json:"task_id"`
		Task   struct {
			Completed bool `json:"completed"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "t1", data.TaskID)
	assert.True(t, data.Task.Completed)
}

func TestUpdateProgressSubtaskDerivesParent(t *testing.T) {
	h := newTestServer(t)

	_, env := doRequest(t, h, http.MethodPost, "/progress", "alice",
		`{"task_id": "t2", "step_id": "a", "step_completed": true}`)
	require.True(t, env.Success)

	_, env = doRequest(t, h, http.MethodPost, "/progress", "alice",
		`{"task_id": "t2", "step_id": "b", "step_completed": true}`)
	require.True(t, env.Success)

	var data struct {
		Task struct {
			Completed bool `json:"completed"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Task.Completed, "parent derives from subtasks")
}

func TestUpdateProgressValidation(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"task_id": `},
		{"missing task id", `{"completed": true}`},
		{"unknown task", `{"task_id": "nope", "completed": true}`},
		{"step without flag", `{"task_id": "t2", "step_id": "a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, h, http.MethodPost, "/progress", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})
	}
}

func TestNoteLifecycleOverHTTP(t *testing.T) {
	h := newTestServer(t)

	// Save.
	rec, env := doRequest(t, h, http.MethodPost, "/notes", "alice",
		`{"task_id": "t1", "content": "first draft", "tags": ["lab"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	// Update rotates history.
	_, env = doRequest(t, h, http.MethodPut, "/notes", "alice",
		`{"task_id": "t1", "content": "second draft"}`)
	require.True(t, env.Success)

	_, env = doRequest(t, h, http.MethodGet, "/notes?taskId=t1&includeHistory=true", "alice", "")
	require.True(t, env.Success)
	var details struct {
		Content string `json:"content"`
		History []struct {
			Content string `json:"content"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &details))
	assert.Equal(t, "second draft", details.Content)
	require.Len(t, details.History, 1)
	assert.Equal(t, "first draft", details.History[0].Content)

	// List with search.
	_, env = doRequest(t, h, http.MethodGet, "/notes?search=second", "alice", "")
	require.True(t, env.Success)
	var all map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Contains(t, all, "t1")

	// Format filter only returns matching notes.
	_, env = doRequest(t, h, http.MethodPost, "/notes", "alice",
		`{"task_id": "t2", "content": "# heading", "format": "markdown"}`)
	require.True(t, env.Success)

	_, env = doRequest(t, h, http.MethodGet, "/notes?format=markdown", "alice", "")
	require.True(t, env.Success)
	all = nil
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Contains(t, all, "t2")
	assert.NotContains(t, all, "t1")

	// Delete.
	rec, env = doRequest(t, h, http.MethodDelete, "/notes?taskId=t1", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
}

func TestGetSingleNoteFormatFilter(t *testing.T) {
	h := newTestServer(t)

	_, env := doRequest(t, h, http.MethodPost, "/notes", "alice",
		`{"task_id": "t1", "content": "plain text note"}`)
	require.True(t, env.Success)

	// A matching format returns the note.
	rec, env := doRequest(t, h, http.MethodGet, "/notes?taskId=t1&format=text", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	// A non-matching format is a miss, not a silent ignore.
	rec, env = doRequest(t, h, http.MethodGet, "/notes?taskId=t1&format=markdown", "alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	// An unknown format is rejected outright.
	rec, env = doRequest(t, h, http.MethodGet, "/notes?taskId=t1&format=latex", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestUpdateAbsentNoteIs404(t *testing.T) {
	h := newTestServer(t)

	rec, env := doRequest(t, h, http.MethodPut, "/notes", "alice",
		`{"task_id": "t1", "content": "orphan"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestSaveNoteRequiresContent(t *testing.T) {
	h := newTestServer(t)

	rec, env := doRequest(t, h, http.MethodPost, "/notes", "alice", `{"task_id": "t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "note content required")
}

func TestDeleteAllNotes(t *testing.T) {
	h := newTestServer(t)

	_, env := doRequest(t, h, http.MethodDelete, "/notes?deleteAll=true", "alice", "")
	require.True(t, env.Success)
	var data struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 0, data.Deleted)
}

func TestLabStartAndHistory(t *testing.T) {
	h := newTestServer(t)

	rec, env := doRequest(t, h, http.MethodPost, "/lab-start", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	var attempt struct {
		LabID  string `json:"lab_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &attempt))
	assert.NotEmpty(t, attempt.LabID)
	assert.Equal(t, "started", attempt.Status)

	_, env = doRequest(t, h, http.MethodGet, "/lab-history", "alice", "")
	require.True(t, env.Success)
	var history []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 1)
}
