package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatline/internal/domain"
)

type FileRepo struct {
	db *sql.DB
}

func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

var _ domain.FileRepository = (*FileRepo)(nil)

const fileColumns = `id, author_id, message_id, dialogue_id, file_name, file_path, url, size, media_type, extension, created_at`

func (r *FileRepo) Create(ctx context.Context, f *domain.File) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO files (author_id, message_id, dialogue_id, file_name, file_path, url, size, media_type, extension, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, f.AuthorID, f.MessageID, f.DialogueID, f.FileName, f.FilePath, f.URL, f.Size, f.MediaType, f.Extension)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return nil
}

func (r *FileRepo) GetByID(ctx context.Context, id int64) (*domain.File, error) {
	f := &domain.File{}
	err := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id).Scan(
		&f.ID,
		&f.AuthorID,
		&f.MessageID,
		&f.DialogueID,
		&f.FileName,
		&f.FilePath,
		&f.URL,
		&f.Size,
		&f.MediaType,
		&f.Extension,
		&f.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return f, nil
}

func (r *FileRepo) ListForMessage(ctx context.Context, messageID int64) ([]*domain.File, error) {
	return r.listFiles(ctx, `
		SELECT `+fileColumns+` FROM files WHERE message_id = ? ORDER BY id ASC
	`, messageID)
}

func (r *FileRepo) ListForAuthorAndMessage(ctx context.Context, authorID int64, messageID *int64) ([]*domain.File, error) {
	if messageID == nil {
		return r.listFiles(ctx, `
			SELECT `+fileColumns+` FROM files WHERE author_id = ? AND message_id IS NULL ORDER BY id ASC
		`, authorID)
	}
	return r.listFiles(ctx, `
		SELECT `+fileColumns+` FROM files WHERE author_id = ? AND message_id = ? ORDER BY id ASC
	`, authorID, *messageID)
}

func (r *FileRepo) ListForDialogue(ctx context.Context, dialogueID int64) ([]*domain.File, error) {
	return r.listFiles(ctx, `
		SELECT `+fileColumns+` FROM files WHERE dialogue_id = ? ORDER BY id ASC
	`, dialogueID)
}

func (r *FileRepo) DeleteForAuthorAndMessage(ctx context.Context, authorID int64, messageID *int64) error {
	var err error
	if messageID == nil {
		_, err = r.db.ExecContext(ctx, `DELETE FROM files WHERE author_id = ? AND message_id IS NULL`, authorID)
	} else {
		_, err = r.db.ExecContext(ctx, `DELETE FROM files WHERE author_id = ? AND message_id = ?`, authorID, *messageID)
	}
	if err != nil {
		return fmt.Errorf("delete message files: %w", err)
	}
	return nil
}

func (r *FileRepo) DeleteForDialogue(ctx context.Context, dialogueID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE dialogue_id = ?`, dialogueID); err != nil {
		return fmt.Errorf("delete dialogue files: %w", err)
	}
	return nil
}

func (r *FileRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (r *FileRepo) listFiles(ctx context.Context, query string, args ...any) ([]*domain.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var res []*domain.File
	for rows.Next() {
		f := &domain.File{}
		if err := rows.Scan(
			&f.ID,
			&f.AuthorID,
			&f.MessageID,
			&f.DialogueID,
			&f.FileName,
			&f.FilePath,
			&f.URL,
			&f.Size,
			&f.MediaType,
			&f.Extension,
			&f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		res = append(res, f)
	}
	return res, rows.Err()
}
