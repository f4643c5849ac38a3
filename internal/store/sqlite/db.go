package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. Statements are idempotent so repeated startup
// is safe.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			email VARCHAR(100) UNIQUE NOT NULL,
			full_name VARCHAR(100) NOT NULL,
			about_me TEXT DEFAULT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			avatar_file_id INTEGER DEFAULT NULL,
			is_activated BOOLEAN DEFAULT FALSE,
			activation_id VARCHAR(36) DEFAULT NULL,
			activation_expires_at DATETIME DEFAULT NULL,
			password_reset_id VARCHAR(36) DEFAULT NULL,
			password_reset_expires_at DATETIME DEFAULT NULL,
			is_online BOOLEAN DEFAULT FALSE,
			last_visit DATETIME DEFAULT CURRENT_TIMESTAMP,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Friendship is stored as mirrored pairs: (a,b) and (b,a).
		`CREATE TABLE IF NOT EXISTS friends (
			user_id INTEGER NOT NULL,
			friend_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, friend_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (friend_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS friend_requests (
			sender_id INTEGER NOT NULL,
			recipient_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (sender_id, recipient_id),
			FOREIGN KEY (sender_id) REFERENCES users(id),
			FOREIGN KEY (recipient_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS dialogues (
			id INTEGER PRIMARY KEY,
			author_id INTEGER NOT NULL,
			interlocutor_id INTEGER NOT NULL,
			last_message_id INTEGER DEFAULT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (author_id) REFERENCES users(id),
			FOREIGN KEY (interlocutor_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			dialogue_id INTEGER NOT NULL,
			author_id INTEGER NOT NULL,
			content TEXT DEFAULT NULL,
			is_edited BOOLEAN DEFAULT 0,
			is_read BOOLEAN DEFAULT 0,
			is_reference BOOLEAN DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (dialogue_id) REFERENCES dialogues(id),
			FOREIGN KEY (author_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY,
			author_id INTEGER NOT NULL,
			message_id INTEGER DEFAULT NULL,
			dialogue_id INTEGER DEFAULT NULL,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			url TEXT NOT NULL,
			size INTEGER NOT NULL,
			media_type TEXT NOT NULL,
			extension TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (author_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			user_id INTEGER PRIMARY KEY,
			refresh_token TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
		`CREATE INDEX IF NOT EXISTS idx_users_activation ON users(activation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_friends_user ON friends(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_recipient ON friend_requests(recipient_id);`,
		`CREATE INDEX IF NOT EXISTS idx_dialogues_author ON dialogues(author_id);`,
		`CREATE INDEX IF NOT EXISTS idx_dialogues_interlocutor ON dialogues(interlocutor_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_dialogue ON messages(dialogue_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_dialogue_unread ON messages(dialogue_id, is_read);`,
		`CREATE INDEX IF NOT EXISTS idx_files_message ON files(message_id);`,
		`CREATE INDEX IF NOT EXISTS idx_files_dialogue ON files(dialogue_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_refresh ON tokens(refresh_token);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
