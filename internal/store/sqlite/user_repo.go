package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatline/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, email, full_name, about_me, hashed_password, avatar_file_id,
	is_activated, activation_id, activation_expires_at,
	password_reset_id, password_reset_expires_at,
	is_online, last_visit, created_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (email, full_name, about_me, hashed_password,
			is_activated, activation_id, activation_expires_at,
			is_online, last_visit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`
	res, err := r.db.ExecContext(ctx, query,
		u.Email,
		u.FullName,
		u.AboutMe,
		u.HashedPassword,
		u.IsActivated,
		u.ActivationID,
		u.ActivationExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) GetByActivationID(ctx context.Context, activationID string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE activation_id = ?`, activationID)
}

func (r *UserRepo) GetByPasswordResetID(ctx context.Context, resetID string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_id = ?`, resetID)
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET email = ?, full_name = ?, about_me = ?, hashed_password = ?,
			avatar_file_id = ?, is_activated = ?, activation_id = ?,
			activation_expires_at = ?, password_reset_id = ?,
			password_reset_expires_at = ?, is_online = ?, last_visit = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		u.Email,
		u.FullName,
		u.AboutMe,
		u.HashedPassword,
		u.AvatarFileID,
		u.IsActivated,
		u.ActivationID,
		u.ActivationExpiresAt,
		u.PasswordResetID,
		u.PasswordResetExpiresAt,
		u.IsOnline,
		u.LastVisit,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepo) SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error {
	val := 0
	if isOnline {
		val = 1
	}
	query := `UPDATE users SET is_online = ?, last_visit = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, val, id); err != nil {
		return fmt.Errorf("set online status: %w", err)
	}
	return nil
}

func (r *UserRepo) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.listIDs(ctx, `SELECT friend_id FROM friends WHERE user_id = ? ORDER BY friend_id`, userID)
}

// AreFriends checks both directions: mirroring is two independent writes,
// so either row counts as friendship.
func (r *UserRepo) AreFriends(ctx context.Context, userID, otherID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`, userID, otherID, otherID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepo) AddFriend(ctx context.Context, userID, friendID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO friends (user_id, friend_id) VALUES (?, ?)
	`, userID, friendID)
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}

func (r *UserRepo) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM friends WHERE user_id = ? AND friend_id = ?
	`, userID, friendID)
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

func (r *UserRepo) ListRequestSenderIDs(ctx context.Context, recipientID int64) ([]int64, error) {
	return r.listIDs(ctx, `SELECT sender_id FROM friend_requests WHERE recipient_id = ? ORDER BY created_at`, recipientID)
}

func (r *UserRepo) HasFriendRequest(ctx context.Context, senderID, recipientID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM friend_requests WHERE sender_id = ? AND recipient_id = ?
	`, senderID, recipientID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check friend request: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepo) AddFriendRequest(ctx context.Context, senderID, recipientID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO friend_requests (sender_id, recipient_id) VALUES (?, ?)
	`, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("add friend request: %w", err)
	}
	return nil
}

func (r *UserRepo) RemoveFriendRequest(ctx context.Context, senderID, recipientID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM friend_requests WHERE sender_id = ? AND recipient_id = ?
	`, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}
	return nil
}

func (r *UserRepo) listIDs(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.AboutMe,
		&u.HashedPassword,
		&u.AvatarFileID,
		&u.IsActivated,
		&u.ActivationID,
		&u.ActivationExpiresAt,
		&u.PasswordResetID,
		&u.PasswordResetExpiresAt,
		&u.IsOnline,
		&u.LastVisit,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
