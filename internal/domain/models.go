package domain

import "time"

// User represents an application account. Friend and pending-request sets
// live in their own tables and are loaded on demand.
type User struct {
	ID                     int64      `db:"id" json:"id"`
	Email                  string     `db:"email" json:"email"`
	FullName               string     `db:"full_name" json:"full_name"`
	AboutMe                *string    `db:"about_me" json:"about_me,omitempty"`
	HashedPassword         string     `db:"hashed_password" json:"-"`
	AvatarFileID           *int64     `db:"avatar_file_id" json:"-"`
	IsActivated            bool       `db:"is_activated" json:"is_activated"`
	ActivationID           *string    `db:"activation_id" json:"-"`
	ActivationExpiresAt    *time.Time `db:"activation_expires_at" json:"-"`
	PasswordResetID        *string    `db:"password_reset_id" json:"-"`
	PasswordResetExpiresAt *time.Time `db:"password_reset_expires_at" json:"-"`
	IsOnline               bool       `db:"is_online" json:"is_online"`
	LastVisit              time.Time  `db:"last_visit" json:"last_visit"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
}

// Profile is the public projection of a User sent to other members.
type Profile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AboutMe   *string   `json:"about_me,omitempty"`
	Avatar    *File     `json:"avatar,omitempty"`
	IsOnline  bool      `json:"is_online"`
	LastVisit time.Time `json:"last_visit"`
}

// PublicProfile strips private fields off a User.
func (u *User) PublicProfile() *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		AboutMe:   u.AboutMe,
		IsOnline:  u.IsOnline,
		LastVisit: u.LastVisit,
	}
}

// Dialogue is a two-member conversation. Membership is unordered: the
// author/interlocutor split only records who opened it. LastMessageID is a
// denormalized pointer and must be treated as a read optimization only.
type Dialogue struct {
	ID             int64     `db:"id"`
	AuthorID       int64     `db:"author_id"`
	InterlocutorID int64     `db:"interlocutor_id"`
	LastMessageID  *int64    `db:"last_message_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// Members returns both member ids.
func (d *Dialogue) Members() []int64 {
	return []int64{d.AuthorID, d.InterlocutorID}
}

// OtherMember returns the member that is not userID.
func (d *Dialogue) OtherMember(userID int64) int64 {
	if d.AuthorID == userID {
		return d.InterlocutorID
	}
	return d.AuthorID
}

// HasMember reports whether userID belongs to the dialogue. The test is
// symmetric in the two member columns.
func (d *Dialogue) HasMember(userID int64) bool {
	return d.AuthorID == userID || d.InterlocutorID == userID
}

// Message belongs to exactly one dialogue. Content is nil for pure
// attachment messages and AES-encrypted at rest otherwise. Message ids are
// monotonic and define creation order within a dialogue.
type Message struct {
	ID          int64     `db:"id"`
	DialogueID  int64     `db:"dialogue_id"`
	AuthorID    int64     `db:"author_id"`
	Content     *string   `db:"content"` // encrypted at rest
	IsEdited    bool      `db:"is_edited"`
	IsRead      bool      `db:"is_read"`
	IsReference bool      `db:"is_reference"` // trimmed text is a bare URL
	CreatedAt   time.Time `db:"created_at"`
}

// File is an uploaded blob. It is exclusively owned by the message it is
// attached to; MessageID stays nil for avatars.
type File struct {
	ID         int64     `db:"id" json:"id"`
	AuthorID   int64     `db:"author_id" json:"-"`
	MessageID  *int64    `db:"message_id" json:"-"`
	DialogueID *int64    `db:"dialogue_id" json:"-"`
	FileName   string    `db:"file_name" json:"file_name"`
	FilePath   string    `db:"file_path" json:"-"`
	URL        string    `db:"url" json:"url"`
	Size       int64     `db:"size" json:"size"`
	MediaType  string    `db:"media_type" json:"media_type"`
	Extension  string    `db:"extension" json:"extension"`
	CreatedAt  time.Time `db:"created_at" json:"-"`
}

// Token is the persisted refresh credential. One active row per user;
// reissue supersedes, logout deletes.
type Token struct {
	UserID       int64     `db:"user_id"`
	RefreshToken string    `db:"refresh_token"`
	CreatedAt    time.Time `db:"created_at"`
}
