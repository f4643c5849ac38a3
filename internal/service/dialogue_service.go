package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatline/internal/domain"
	"chatline/internal/ws"
)

// Sentinel errors for dialogue pairing.
var (
	ErrSelfDialogue = fmt.Errorf("%w: cannot open a dialogue with yourself", domain.ErrConflict)
	ErrNotFriends   = fmt.Errorf("%w: users are not friends", domain.ErrUnauthorized)
)

// DialogueService coordinates dialogue pairing, membership authorization
// and the cascade that removes a dialogue when the underlying friendship
// goes away.
type DialogueService struct {
	dialogues domain.DialogueRepository
	messages  domain.MessageRepository
	users     domain.UserRepository
	files     *FileService
	msgSvc    *MessageService
	notifier  Notifier
}

func NewDialogueService(
	dialogues domain.DialogueRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	files *FileService,
	msgSvc *MessageService,
	notifier Notifier,
) *DialogueService {
	return &DialogueService{
		dialogues: dialogues,
		messages:  messages,
		users:     users,
		files:     files,
		msgSvc:    msgSvc,
		notifier:  notifier,
	}
}

// FindOrCreate returns the dialogue for the unordered pair, creating it
// when absent. At most one dialogue exists per pair; lookup and the
// friendship precondition are both symmetric in the two users.
func (s *DialogueService) FindOrCreate(ctx context.Context, authorID, interlocutorID int64) (*domain.Dialogue, error) {
	if authorID == interlocutorID {
		return nil, ErrSelfDialogue
	}
	if _, err := s.users.GetByID(ctx, interlocutorID); err != nil {
		return nil, fmt.Errorf("get interlocutor: %w", err)
	}
	friends, err := s.users.AreFriends(ctx, authorID, interlocutorID)
	if err != nil {
		return nil, fmt.Errorf("check friendship: %w", err)
	}
	if !friends {
		return nil, ErrNotFriends
	}

	existing, err := s.dialogues.FindByMembers(ctx, authorID, interlocutorID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find dialogue: %w", err)
	}

	dialogue := &domain.Dialogue{
		AuthorID:       authorID,
		InterlocutorID: interlocutorID,
	}
	if err := s.dialogues.Create(ctx, dialogue); err != nil {
		return nil, err
	}

	resp, err := s.toResponse(ctx, dialogue, authorID)
	if err == nil {
		s.notifier.PushMany(dialogue.Members(), ws.Event{Type: ws.EventDialogueCreated, Payload: resp})
	}
	return dialogue, nil
}

// CreateWithMessage opens (or finds) the dialogue and appends the first
// message in one action, mirroring the create-dialogue API which always
// carries an opening text.
func (s *DialogueService) CreateWithMessage(ctx context.Context, authorID, interlocutorID int64, text string) (*domain.Dialogue, *domain.Message, error) {
	dialogue, err := s.FindOrCreate(ctx, authorID, interlocutorID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.msgSvc.Create(ctx, MessageCreateInput{
		DialogueID: dialogue.ID,
		Text:       text,
	}, authorID)
	if err != nil {
		return nil, nil, err
	}
	return dialogue, msg, nil
}

// Get returns a dialogue after checking membership.
func (s *DialogueService) Get(ctx context.Context, dialogueID, userID int64) (*domain.Dialogue, error) {
	dialogue, err := s.dialogues.GetByID(ctx, dialogueID)
	if err != nil {
		return nil, err
	}
	if !dialogue.HasMember(userID) {
		return nil, ErrNotMember
	}
	return dialogue, nil
}

// DialogueResponse is the wire shape of a dialogue for one viewer:
// the other member's profile, the last message and the viewer's unread
// count (derived, never stored).
type DialogueResponse struct {
	ID           int64            `json:"id"`
	Interlocutor *domain.Profile  `json:"interlocutor"`
	LastMessage  *MessageResponse `json:"last_message"`
	UnreadCount  int              `json:"unread_count"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ListForUser returns all dialogues the user is a member of, each
// populated for that viewer.
func (s *DialogueService) ListForUser(ctx context.Context, userID int64) ([]*DialogueResponse, error) {
	dialogues, err := s.dialogues.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := make([]*DialogueResponse, 0, len(dialogues))
	for _, d := range dialogues {
		resp, err := s.toResponse(ctx, d, userID)
		if err != nil {
			return nil, err
		}
		res = append(res, resp)
	}
	return res, nil
}

// RemoveByFriendship cascades a friendship removal: the pair's dialogue,
// its messages and every attachment (rows and blobs) are deleted. No-op
// when the pair has no dialogue. The removed dialogue is returned for the
// FRIEND_REMOVE notification, nil when nothing existed.
func (s *DialogueService) RemoveByFriendship(ctx context.Context, userA, userB int64) (*domain.Dialogue, error) {
	dialogue, err := s.dialogues.FindByMembers(ctx, userA, userB)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find dialogue: %w", err)
	}

	if err := s.files.ReleaseDialogue(ctx, dialogue.ID); err != nil {
		return nil, fmt.Errorf("release dialogue attachments: %w", err)
	}
	if err := s.messages.DeleteForDialogue(ctx, dialogue.ID); err != nil {
		return nil, fmt.Errorf("delete dialogue messages: %w", err)
	}
	if err := s.dialogues.Delete(ctx, dialogue.ID); err != nil {
		return nil, fmt.Errorf("delete dialogue: %w", err)
	}
	return dialogue, nil
}

func (s *DialogueService) toResponse(ctx context.Context, d *domain.Dialogue, viewerID int64) (*DialogueResponse, error) {
	other := d.OtherMember(viewerID)
	interlocutor, err := loadProfile(ctx, s.users, s.files.files, other)
	if err != nil {
		return nil, fmt.Errorf("load interlocutor: %w", err)
	}

	resp := &DialogueResponse{
		ID:           d.ID,
		Interlocutor: interlocutor,
		CreatedAt:    d.CreatedAt,
	}

	if d.LastMessageID != nil {
		last, err := s.messages.GetByID(ctx, *d.LastMessageID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get last message: %w", err)
		}
		if err == nil {
			resp.LastMessage, err = s.msgSvc.ToResponse(ctx, last)
			if err != nil {
				return nil, err
			}
		}
	}

	unread, err := s.messages.CountUnreadInDialogue(ctx, d.ID, viewerID)
	if err != nil {
		return nil, err
	}
	resp.UnreadCount = unread
	return resp, nil
}
