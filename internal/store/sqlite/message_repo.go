package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"chatline/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, dialogue_id, author_id, content, is_edited, is_read, is_reference, created_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (dialogue_id, author_id, content, is_edited, is_read, is_reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, m.DialogueID, m.AuthorID, m.Content, m.IsEdited, m.IsRead, m.IsReference)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	return r.scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
}

func (r *MessageRepo) ListForDialogue(ctx context.Context, dialogueID int64) ([]*domain.Message, error) {
	return r.listMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE dialogue_id = ?
		ORDER BY id ASC
	`, dialogueID)
}

// ListUnread returns unread messages in a dialogue not authored by
// excludeAuthorID, in creation order.
func (r *MessageRepo) ListUnread(ctx context.Context, dialogueID, excludeAuthorID int64) ([]*domain.Message, error) {
	return r.listMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE dialogue_id = ? AND author_id <> ? AND is_read = 0
		ORDER BY id ASC
	`, dialogueID, excludeAuthorID)
}

func (r *MessageRepo) MarkRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE messages SET is_read = 1 WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// CountUnreadForUser aggregates unread messages addressed to the user
// across all dialogues they are a member of.
func (r *MessageRepo) CountUnreadForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN dialogues d ON d.id = m.dialogue_id
		WHERE (d.author_id = ? OR d.interlocutor_id = ?)
		  AND m.author_id <> ? AND m.is_read = 0
	`, userID, userID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) CountUnreadInDialogue(ctx context.Context, dialogueID, excludeAuthorID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE dialogue_id = ? AND author_id <> ? AND is_read = 0
	`, dialogueID, excludeAuthorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread in dialogue: %w", err)
	}
	return count, nil
}

// FindPreceding returns the newest message in the dialogue with an id
// strictly below beforeMessageID, or ErrNotFound when none precedes.
func (r *MessageRepo) FindPreceding(ctx context.Context, dialogueID, beforeMessageID int64) (*domain.Message, error) {
	return r.scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE dialogue_id = ? AND id < ?
		ORDER BY id DESC
		LIMIT 1
	`, dialogueID, beforeMessageID))
}

// FindLatest returns the newest message in the dialogue, or ErrNotFound
// when the dialogue holds no messages.
func (r *MessageRepo) FindLatest(ctx context.Context, dialogueID int64) (*domain.Message, error) {
	return r.scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE dialogue_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, dialogueID))
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET content = ?, is_edited = ?, is_read = ?, is_reference = ?
		WHERE id = ?
	`, m.Content, m.IsEdited, m.IsRead, m.IsReference, m.ID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

func (r *MessageRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (r *MessageRepo) DeleteForDialogue(ctx context.Context, dialogueID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE dialogue_id = ?`, dialogueID); err != nil {
		return fmt.Errorf("delete dialogue messages: %w", err)
	}
	return nil
}

func (r *MessageRepo) listMessages(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.DialogueID,
			&m.AuthorID,
			&m.Content,
			&m.IsEdited,
			&m.IsRead,
			&m.IsReference,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) scanMessage(row *sql.Row) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID,
		&m.DialogueID,
		&m.AuthorID,
		&m.Content,
		&m.IsEdited,
		&m.IsRead,
		&m.IsReference,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}
