package domain

import (
	"context"
)

// UserRepository defines persistence operations for users and the
// friendship relation. Friendship rows are mirrored: AddFriend writes a
// single direction and callers write both, as two independent updates.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByActivationID(ctx context.Context, activationID string) (*User, error)
	GetByPasswordResetID(ctx context.Context, resetID string) (*User, error)
	Update(ctx context.Context, u *User) error
	SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error

	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
	AreFriends(ctx context.Context, userID, otherID int64) (bool, error)
	AddFriend(ctx context.Context, userID, friendID int64) error
	RemoveFriend(ctx context.Context, userID, friendID int64) error

	ListRequestSenderIDs(ctx context.Context, recipientID int64) ([]int64, error)
	HasFriendRequest(ctx context.Context, senderID, recipientID int64) (bool, error)
	AddFriendRequest(ctx context.Context, senderID, recipientID int64) error
	RemoveFriendRequest(ctx context.Context, senderID, recipientID int64) error
}

// DialogueRepository defines persistence operations for dialogues. Pair
// lookup is symmetric in the two member columns.
type DialogueRepository interface {
	Create(ctx context.Context, d *Dialogue) error
	GetByID(ctx context.Context, id int64) (*Dialogue, error)
	FindByMembers(ctx context.Context, userA, userB int64) (*Dialogue, error)
	ListForUser(ctx context.Context, userID int64) ([]*Dialogue, error)
	SetLastMessage(ctx context.Context, dialogueID int64, messageID *int64) error
	Delete(ctx context.Context, id int64) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListForDialogue(ctx context.Context, dialogueID int64) ([]*Message, error)
	ListUnread(ctx context.Context, dialogueID, excludeAuthorID int64) ([]*Message, error)
	MarkRead(ctx context.Context, ids []int64) error
	CountUnreadForUser(ctx context.Context, userID int64) (int, error)
	CountUnreadInDialogue(ctx context.Context, dialogueID, excludeAuthorID int64) (int, error)
	FindPreceding(ctx context.Context, dialogueID, beforeMessageID int64) (*Message, error)
	FindLatest(ctx context.Context, dialogueID int64) (*Message, error)
	Update(ctx context.Context, m *Message) error
	Delete(ctx context.Context, id int64) error
	DeleteForDialogue(ctx context.Context, dialogueID int64) error
}

// FileRepository defines persistence operations for uploaded blobs.
type FileRepository interface {
	Create(ctx context.Context, f *File) error
	GetByID(ctx context.Context, id int64) (*File, error)
	ListForMessage(ctx context.Context, messageID int64) ([]*File, error)
	ListForAuthorAndMessage(ctx context.Context, authorID int64, messageID *int64) ([]*File, error)
	ListForDialogue(ctx context.Context, dialogueID int64) ([]*File, error)
	DeleteForAuthorAndMessage(ctx context.Context, authorID int64, messageID *int64) error
	DeleteForDialogue(ctx context.Context, dialogueID int64) error
	Delete(ctx context.Context, id int64) error
}

// TokenRepository persists refresh credentials, one row per user.
type TokenRepository interface {
	Save(ctx context.Context, userID int64, refreshToken string) error
	Find(ctx context.Context, refreshToken string) (*Token, error)
	Delete(ctx context.Context, refreshToken string) error
	DeleteForUser(ctx context.Context, userID int64) error
}
