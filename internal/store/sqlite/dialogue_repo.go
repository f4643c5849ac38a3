package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatline/internal/domain"
)

type DialogueRepo struct {
	db *sql.DB
}

func NewDialogueRepo(db *sql.DB) *DialogueRepo {
	return &DialogueRepo{db: db}
}

var _ domain.DialogueRepository = (*DialogueRepo)(nil)

const dialogueColumns = `id, author_id, interlocutor_id, last_message_id, created_at`

func (r *DialogueRepo) Create(ctx context.Context, d *domain.Dialogue) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO dialogues (author_id, interlocutor_id, last_message_id, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, d.AuthorID, d.InterlocutorID, d.LastMessageID)
	if err != nil {
		return fmt.Errorf("insert dialogue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return nil
}

func (r *DialogueRepo) GetByID(ctx context.Context, id int64) (*domain.Dialogue, error) {
	return r.scanDialogue(r.db.QueryRowContext(ctx,
		`SELECT `+dialogueColumns+` FROM dialogues WHERE id = ?`, id))
}

// FindByMembers looks up the dialogue for an unordered pair of members.
func (r *DialogueRepo) FindByMembers(ctx context.Context, userA, userB int64) (*domain.Dialogue, error) {
	return r.scanDialogue(r.db.QueryRowContext(ctx, `
		SELECT `+dialogueColumns+` FROM dialogues
		WHERE (author_id = ? AND interlocutor_id = ?)
		   OR (author_id = ? AND interlocutor_id = ?)
		LIMIT 1
	`, userA, userB, userB, userA))
}

func (r *DialogueRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Dialogue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+dialogueColumns+` FROM dialogues
		WHERE author_id = ? OR interlocutor_id = ?
		ORDER BY last_message_id DESC
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list dialogues: %w", err)
	}
	defer rows.Close()

	var res []*domain.Dialogue
	for rows.Next() {
		d := &domain.Dialogue{}
		if err := rows.Scan(
			&d.ID,
			&d.AuthorID,
			&d.InterlocutorID,
			&d.LastMessageID,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dialogue: %w", err)
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r *DialogueRepo) SetLastMessage(ctx context.Context, dialogueID int64, messageID *int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dialogues SET last_message_id = ? WHERE id = ?
	`, messageID, dialogueID)
	if err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	return nil
}

func (r *DialogueRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dialogues WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dialogue: %w", err)
	}
	return nil
}

func (r *DialogueRepo) scanDialogue(row *sql.Row) (*domain.Dialogue, error) {
	d := &domain.Dialogue{}
	err := row.Scan(
		&d.ID,
		&d.AuthorID,
		&d.InterlocutorID,
		&d.LastMessageID,
		&d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan dialogue: %w", err)
	}
	return d, nil
}
