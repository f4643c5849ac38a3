package service

import (
	"context"
	"fmt"

	"chatline/internal/domain"
	"chatline/internal/ws"
)

// Sentinel errors for the friendship relation.
var (
	ErrSelfFriendRequest = fmt.Errorf("%w: cannot send a friend request to yourself", domain.ErrConflict)
	ErrAlreadyFriends    = fmt.Errorf("%w: users are already friends", domain.ErrConflict)
	ErrRequestPending    = fmt.Errorf("%w: friend request already pending", domain.ErrConflict)
	ErrNoRequest         = fmt.Errorf("%w: no pending friend request", domain.ErrNotFound)
)

// UserService manages profiles and the friendship relation. Friendship is
// mirrored on both records as two independent single-row updates; reads
// therefore accept either direction as proof of friendship.
type UserService struct {
	users     domain.UserRepository
	files     *FileService
	dialogues *DialogueService
	notifier  Notifier
}

func NewUserService(users domain.UserRepository, files *FileService, dialogues *DialogueService, notifier Notifier) *UserService {
	return &UserService{
		users:     users,
		files:     files,
		dialogues: dialogues,
		notifier:  notifier,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) GetProfile(ctx context.Context, id int64) (*domain.Profile, error) {
	return loadProfile(ctx, s.users, s.files.files, id)
}

// GetFriends returns the public profiles of the user's friends.
func (s *UserService) GetFriends(ctx context.Context, userID int64) ([]*domain.Profile, error) {
	ids, err := s.users.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.loadProfiles(ctx, ids)
}

// GetRequests returns the public profiles of users with a pending request
// towards userID.
func (s *UserService) GetRequests(ctx context.Context, userID int64) ([]*domain.Profile, error) {
	ids, err := s.users.ListRequestSenderIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.loadProfiles(ctx, ids)
}

// SendFriendRequest records a pending request and notifies the recipient's
// live handle, if any.
func (s *UserService) SendFriendRequest(ctx context.Context, senderID, recipientID int64) error {
	if senderID == recipientID {
		return ErrSelfFriendRequest
	}
	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}

	friends, err := s.users.AreFriends(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	if friends {
		return ErrAlreadyFriends
	}
	pending, err := s.users.HasFriendRequest(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("check request: %w", err)
	}
	if pending {
		return ErrRequestPending
	}

	if err := s.users.AddFriendRequest(ctx, senderID, recipientID); err != nil {
		return err
	}

	sender, err := loadProfile(ctx, s.users, s.files.files, senderID)
	if err == nil {
		s.notifier.Push(recipientID, ws.Event{
			Type:    ws.EventNewFriendRequest,
			Payload: FriendRequestPayload{RecipientID: recipientID, Sender: sender},
		})
	}
	return nil
}

// AcceptRequest turns a pending request into a mirrored friendship. The
// two friend rows are independent updates; there is no multi-row
// transaction, and the symmetric AreFriends check absorbs a torn pair.
func (s *UserService) AcceptRequest(ctx context.Context, senderID, recipientID int64) error {
	pending, err := s.users.HasFriendRequest(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("check request: %w", err)
	}
	if !pending {
		return ErrNoRequest
	}

	if err := s.users.RemoveFriendRequest(ctx, senderID, recipientID); err != nil {
		return err
	}
	if err := s.users.AddFriend(ctx, senderID, recipientID); err != nil {
		return err
	}
	if err := s.users.AddFriend(ctx, recipientID, senderID); err != nil {
		return err
	}

	recipient, err := loadProfile(ctx, s.users, s.files.files, recipientID)
	if err == nil {
		s.notifier.Push(senderID, ws.Event{
			Type:    ws.EventNewFriendAccept,
			Payload: FriendAcceptPayload{SenderID: senderID, Recipient: recipient},
		})
	}
	return nil
}

// DenyRequest drops a pending request and returns the sender's name for
// the confirmation message.
func (s *UserService) DenyRequest(ctx context.Context, senderID, recipientID int64) (string, error) {
	pending, err := s.users.HasFriendRequest(ctx, senderID, recipientID)
	if err != nil {
		return "", fmt.Errorf("check request: %w", err)
	}
	if !pending {
		return "", ErrNoRequest
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return "", err
	}
	if err := s.users.RemoveFriendRequest(ctx, senderID, recipientID); err != nil {
		return "", err
	}
	return sender.FullName, nil
}

// RemoveFriend removes the mirrored friendship and cascades the pair's
// dialogue away (messages and attachments included). Both parties receive
// FRIEND_REMOVE.
func (s *UserService) RemoveFriend(ctx context.Context, authorID, friendID int64) (string, error) {
	friend, err := s.users.GetByID(ctx, friendID)
	if err != nil {
		return "", fmt.Errorf("get friend: %w", err)
	}

	if err := s.users.RemoveFriend(ctx, authorID, friendID); err != nil {
		return "", err
	}
	if err := s.users.RemoveFriend(ctx, friendID, authorID); err != nil {
		return "", err
	}

	dialogue, err := s.dialogues.RemoveByFriendship(ctx, authorID, friendID)
	if err != nil {
		return "", err
	}

	payload := FriendRemovePayload{UserIDs: []int64{authorID, friendID}}
	if dialogue != nil {
		payload.Dialogue = &RemovedDialogue{ID: dialogue.ID, MemberIDs: dialogue.Members()}
	}
	s.notifier.PushMany([]int64{authorID, friendID}, ws.Event{
		Type:    ws.EventFriendRemove,
		Payload: payload,
	})
	return friend.FullName, nil
}

type EditProfileInput struct {
	FullName *string
	AboutMe  *string
	Avatar   *Upload
}

// EditProfile updates the display fields and, when a new avatar is
// uploaded, replaces the previous avatar blob.
func (s *UserService) EditProfile(ctx context.Context, userID int64, in EditProfileInput) (*domain.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil && *in.FullName != "" {
		user.FullName = *in.FullName
	}
	if in.AboutMe != nil {
		user.AboutMe = in.AboutMe
	}

	if in.Avatar != nil {
		stored, err := s.files.Store(ctx, []Upload{*in.Avatar}, userID, CategoryAvatar, nil, nil)
		if err != nil {
			return nil, err
		}
		if user.AvatarFileID != nil {
			if err := s.files.DeleteByID(ctx, *user.AvatarFileID); err != nil {
				return nil, fmt.Errorf("delete old avatar: %w", err)
			}
		}
		user.AvatarFileID = &stored[0].ID
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return loadProfile(ctx, s.users, s.files.files, userID)
}

type FriendRequestPayload struct {
	RecipientID int64           `json:"recipient_id"`
	Sender      *domain.Profile `json:"sender"`
}

type FriendAcceptPayload struct {
	SenderID  int64           `json:"sender_id"`
	Recipient *domain.Profile `json:"recipient"`
}

type FriendRemovePayload struct {
	UserIDs  []int64          `json:"user_ids"`
	Dialogue *RemovedDialogue `json:"dialogue,omitempty"`
}

// RemovedDialogue is the snapshot of the dialogue deleted by the
// friendship cascade, enough for clients to drop it without a refetch.
type RemovedDialogue struct {
	ID        int64   `json:"id"`
	MemberIDs []int64 `json:"member_ids"`
}

func (s *UserService) loadProfiles(ctx context.Context, ids []int64) ([]*domain.Profile, error) {
	res := make([]*domain.Profile, 0, len(ids))
	for _, id := range ids {
		p, err := loadProfile(ctx, s.users, s.files.files, id)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}
