package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/repository"
)

type noteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new NoteRepository implementation
func NewNoteRepository(db *sql.DB) repository.NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Get(ctx context.Context, userID, taskID string) (*models.NoteRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("note_repo")
	log.Debug("getting note: user_id=%s, task_id=%s", userID, taskID)

	row := r.db.QueryRowContext(ctx, `
SELECT user_id, task_id, content, format, tags, history, updated_at
FROM notes
WHERE user_id = ? AND task_id = ?
`, userID, taskID)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("note not found: task_id=%s", taskID)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get note: %v", err)
		return nil, err
	}
	return note, nil
}

func (r *noteRepository) List(ctx context.Context, userID, search string) ([]models.NoteRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("note_repo")
	log.Debug("listing notes: user_id=%s, search=%q", userID, search)

	query := sqlBuilder.Select("user_id", "task_id", "content", "format", "tags", "history", "updated_at").
		From("notes").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.NotEq{"content": ""}).
		OrderBy("updated_at DESC")

	if search != "" {
		query = query.Where("instr(lower(content), lower(?)) > 0", search)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list notes: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []models.NoteRecord
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			log.Error("failed to scan note row: %v", err)
			return nil, err
		}
		out = append(out, *note)
	}
	log.Debug("found %d notes", len(out))
	return out, rows.Err()
}

func (r *noteRepository) Upsert(ctx context.Context, note models.NoteRecord) error {
	log := logger.FromContext(ctx).WithPrefix("note_repo")
	log.Debug("upserting note: user_id=%s, task_id=%s", note.UserID, note.TaskID)

	tags, err := json.Marshal(emptyIfNilTags(note.Tags))
	if err != nil {
		return err
	}
	history, err := json.Marshal(emptyIfNilHistory(note.History))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO notes (user_id, task_id, content, format, tags, history, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, task_id) DO UPDATE SET
    content = excluded.content,
    format = excluded.format,
    tags = excluded.tags,
    history = excluded.history,
    updated_at = excluded.updated_at
`, note.UserID, note.TaskID, note.Content, string(note.Format), string(tags), string(history), note.LastUpdated)
	if err != nil {
		log.Error("failed to upsert note: %v", err)
	}
	return err
}

func (r *noteRepository) Delete(ctx context.Context, userID, taskID string) error {
	log := logger.FromContext(ctx).WithPrefix("note_repo")
	log.Debug("deleting note: user_id=%s, task_id=%s", userID, taskID)

	_, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE user_id = ? AND task_id = ?`, userID, taskID)
	if err != nil {
		log.Error("failed to delete note: %v", err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.NoteRecord, error) {
	var (
		n       models.NoteRecord
		format  string
		tags    string
		history string
	)
	if err := row.Scan(&n.UserID, &n.TaskID, &n.Content, &format, &tags, &history, &n.LastUpdated); err != nil {
		return nil, err
	}
	n.Format = models.NoteFormat(format)

	// Corrupt JSON columns heal to empty rather than failing the read.
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		n.Tags = nil
	}
	if err := json.Unmarshal([]byte(history), &n.History); err != nil {
		n.History = nil
	}
	return &n, nil
}

func emptyIfNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func emptyIfNilHistory(history []models.NoteVersion) []models.NoteVersion {
	if history == nil {
		return []models.NoteVersion{}
	}
	return history
}
