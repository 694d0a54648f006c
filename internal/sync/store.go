package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/models"
)

// Store is the remote side of the sync engine. Implementations persist
// mutations for a user; failures are reported through the application
// error taxonomy so the engine can tell a transient outage apart from a
// terminal rejection.
type Store interface {
	FetchProgress(ctx context.Context, userID string) (*models.ProgressRecord, error)
	SaveTaskCompletion(ctx context.Context, userID, taskID string, completed bool) error
	SaveSubtaskCompletion(ctx context.Context, userID, taskID, stepID string, completed bool) error
	SaveNote(ctx context.Context, userID, taskID, content string, tags []string, format models.NoteFormat) error
}

// HTTPStore talks to the progress/notes endpoints over HTTP. Transport
// failures and timeouts surface as StoreUnavailable; envelope errors are
// rebuilt into their original taxonomy codes.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type storeEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *HTTPStore) FetchProgress(ctx context.Context, userID string) (*models.ProgressRecord, error) {
	data, err := s.do(ctx, http.MethodGet, "/progress", userID, nil)
	if err != nil {
		return nil, err
	}
	rec := models.NewProgressRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("decoding progress record: %w", err))
	}
	return rec, nil
}

func (s *HTTPStore) SaveTaskCompletion(ctx context.Context, userID, taskID string, completed bool) error {
	patch := models.ProgressPatch{TaskID: taskID, Completed: &completed}
	_, err := s.do(ctx, http.MethodPost, "/progress", userID, patch)
	return err
}

func (s *HTTPStore) SaveSubtaskCompletion(ctx context.Context, userID, taskID, stepID string, completed bool) error {
	patch := models.ProgressPatch{TaskID: taskID, StepID: stepID, StepCompleted: &completed}
	_, err := s.do(ctx, http.MethodPost, "/progress", userID, patch)
	return err
}

func (s *HTTPStore) SaveNote(ctx context.Context, userID, taskID, content string, tags []string, format models.NoteFormat) error {
	body := map[string]any{
		"task_id": taskID,
		"content": content,
	}
	if tags != nil {
		body["tags"] = tags
	}
	if format != "" {
		body["format"] = format
	}
	_, err := s.do(ctx, http.MethodPost, "/notes", userID, body)
	return err
}

func (s *HTTPStore) do(ctx context.Context, method, path, userID string, body any) (json.RawMessage, error) {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, payload)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := s.client.Do(req)
	if err != nil {
		// Connection refused, DNS failure and client timeout all land here.
		return nil, errors.NewStoreUnavailableError(err)
	}
	defer resp.Body.Close()

	var env storeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		// The body is not our envelope (a proxy error page, say); fall
		// back to classifying by status code alone.
		if resp.StatusCode >= 400 {
			return nil, errorFromStatus(resp.StatusCode)
		}
		return nil, errors.NewInternalError(fmt.Errorf("decoding response: %w", err))
	}
	if env.Success {
		return env.Data, nil
	}
	if env.Error == nil {
		return nil, errors.NewInternalError(fmt.Errorf("unexpected response, status %d", resp.StatusCode))
	}
	return nil, &errors.AppError{
		Code:    env.Error.Code,
		Message: env.Error.Message,
		Status:  resp.StatusCode,
	}
}

func errorFromStatus(status int) error {
	switch {
	case status >= 500:
		return errors.NewStoreUnavailableError(fmt.Errorf("status %d", status))
	case status == http.StatusUnauthorized:
		return errors.NewUnauthorizedError("request rejected by store")
	case status == http.StatusNotFound:
		return &errors.AppError{Code: errors.ErrCodeNotFound, Message: "not found", Status: status}
	default:
		return &errors.AppError{
			Code:    errors.ErrCodeBadRequest,
			Message: fmt.Sprintf("request rejected with status %d", status),
			Status:  status,
		}
	}
}
