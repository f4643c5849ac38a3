package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"chatline/internal/domain"
	"chatline/internal/security"
	"chatline/internal/ws"
)

// Sentinel errors used by handlers to map to HTTP status codes.
var (
	ErrEmptyMessage = fmt.Errorf("%w: message must have text or at least one attachment", domain.ErrValidation)
	ErrNotAuthor    = fmt.Errorf("%w: not the message author", domain.ErrUnauthorized)
	ErrNotMember    = fmt.Errorf("%w: not a member of this dialogue", domain.ErrUnauthorized)
)

// MessageService is the message lifecycle engine: create, edit, cascade
// delete, read-state transitions and unread counters. Every mutation
// re-reads fresh state before authorizing, and pushes the resulting state
// change to both dialogue members' live handles.
type MessageService struct {
	dialogues domain.DialogueRepository
	messages  domain.MessageRepository
	users     domain.UserRepository
	files     *FileService
	encryptor *security.Encryptor
	notifier  Notifier
}

func NewMessageService(
	dialogues domain.DialogueRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	files *FileService,
	encryptor *security.Encryptor,
	notifier Notifier,
) *MessageService {
	return &MessageService{
		dialogues: dialogues,
		messages:  messages,
		users:     users,
		files:     files,
		encryptor: encryptor,
		notifier:  notifier,
	}
}

type MessageCreateInput struct {
	DialogueID  int64
	Text        string
	Attachments []Upload
}

// Create appends a message to a dialogue. Text is trimmed and encrypted
// at rest; a trimmed text that is itself a URL is flagged as a bare link
// for client rendering. The dialogue's last-message pointer moves to the
// new message and both members receive MESSAGE_CREATED plus
// DIALOGUE_MESSAGE_UPDATE.
func (s *MessageService) Create(ctx context.Context, in MessageCreateInput, authorID int64) (*domain.Message, error) {
	dialogue, err := s.dialogues.GetByID(ctx, in.DialogueID)
	if err != nil {
		return nil, fmt.Errorf("get dialogue: %w", err)
	}
	if !dialogue.HasMember(authorID) {
		return nil, ErrNotMember
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &domain.Message{
		DialogueID:  in.DialogueID,
		AuthorID:    authorID,
		IsReference: isBareLink(text),
	}
	if text != "" {
		encrypted, err := s.encryptor.Encrypt(text)
		if err != nil {
			return nil, fmt.Errorf("encrypt content: %w", err)
		}
		msg.Content = &encrypted
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if len(in.Attachments) > 0 {
		if _, err := s.files.Store(ctx, in.Attachments, authorID, CategoryMessages, &msg.ID, &in.DialogueID); err != nil {
			// reclaim the half-created message so no empty shell remains
			_ = s.messages.Delete(ctx, msg.ID)
			return nil, err
		}
	}

	if err := s.dialogues.SetLastMessage(ctx, in.DialogueID, &msg.ID); err != nil {
		return nil, fmt.Errorf("set last message: %w", err)
	}

	resp, err := s.ToResponse(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.notifier.PushMany(dialogue.Members(), ws.Event{Type: ws.EventMessageCreated, Payload: resp})
	s.notifier.PushMany(dialogue.Members(), ws.Event{
		Type:    ws.EventDialogueMessageUpdate,
		Payload: DialogueMessageUpdate{DialogueID: in.DialogueID, Message: resp},
	})

	return msg, nil
}

type MessageEditInput struct {
	MessageID   int64
	Text        string
	Attachments []Upload
}

// Edit replaces text and the attachment set in place. Old attachments are
// released before the new set is stored. The dialogue update event is
// only emitted when the edited message is the dialogue's current last
// message.
func (s *MessageService) Edit(ctx context.Context, in MessageEditInput, authorID int64) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg.AuthorID != authorID {
		return nil, ErrNotAuthor
	}
	dialogue, err := s.dialogues.GetByID(ctx, msg.DialogueID)
	if err != nil {
		return nil, fmt.Errorf("get dialogue: %w", err)
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}

	if err := s.files.Release(ctx, authorID, &msg.ID); err != nil {
		return nil, fmt.Errorf("release attachments: %w", err)
	}
	if len(in.Attachments) > 0 {
		if _, err := s.files.Store(ctx, in.Attachments, authorID, CategoryMessages, &msg.ID, &msg.DialogueID); err != nil {
			return nil, err
		}
	}

	msg.Content = nil
	if text != "" {
		encrypted, err := s.encryptor.Encrypt(text)
		if err != nil {
			return nil, fmt.Errorf("encrypt content: %w", err)
		}
		msg.Content = &encrypted
	}
	msg.IsReference = isBareLink(text)
	msg.IsEdited = true

	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	resp, err := s.ToResponse(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.notifier.PushMany(dialogue.Members(), ws.Event{Type: ws.EventMessageEdited, Payload: resp})
	if dialogue.LastMessageID != nil && *dialogue.LastMessageID == msg.ID {
		s.notifier.PushMany(dialogue.Members(), ws.Event{
			Type:    ws.EventDialogueMessageUpdate,
			Payload: DialogueMessageUpdate{DialogueID: msg.DialogueID, Message: resp},
		})
	}

	return msg, nil
}

// Remove deletes a message with its attachments. When the removed message
// was the dialogue's most recent, the immediately preceding message (by
// creation order) is promoted to last message; when nothing precedes, the
// dialogue itself is deleted. Whether the removed message was last is
// recomputed from the message set, not read off the last-message pointer.
func (s *MessageService) Remove(ctx context.Context, messageID, authorID int64) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg.AuthorID != authorID {
		return ErrNotAuthor
	}
	dialogue, err := s.dialogues.GetByID(ctx, msg.DialogueID)
	if err != nil {
		return fmt.Errorf("get dialogue: %w", err)
	}

	resp, err := s.ToResponse(ctx, msg)
	if err != nil {
		return err
	}

	latest, err := s.messages.FindLatest(ctx, msg.DialogueID)
	if err != nil {
		return fmt.Errorf("find latest message: %w", err)
	}
	wasLast := latest.ID == msg.ID

	if err := s.files.Release(ctx, authorID, &msg.ID); err != nil {
		return fmt.Errorf("release attachments: %w", err)
	}
	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	members := dialogue.Members()
	s.notifier.PushMany(members, ws.Event{Type: ws.EventMessageDeleted, Payload: resp})

	if !wasLast {
		return nil
	}

	prev, err := s.messages.FindPreceding(ctx, msg.DialogueID, msg.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// only message in the dialogue: the dialogue goes with it
		if err := s.files.ReleaseDialogue(ctx, msg.DialogueID); err != nil {
			return fmt.Errorf("release dialogue attachments: %w", err)
		}
		if err := s.dialogues.Delete(ctx, msg.DialogueID); err != nil {
			return fmt.Errorf("delete dialogue: %w", err)
		}
		s.notifier.PushMany(members, ws.Event{
			Type:    ws.EventDialogueMessageUpdate,
			Payload: DialogueMessageUpdate{DialogueID: msg.DialogueID},
		})
	case err != nil:
		return fmt.Errorf("find preceding message: %w", err)
	default:
		if err := s.dialogues.SetLastMessage(ctx, msg.DialogueID, &prev.ID); err != nil {
			return fmt.Errorf("promote last message: %w", err)
		}
		promoted, err := s.ToResponse(ctx, prev)
		if err != nil {
			return err
		}
		s.notifier.PushMany(members, ws.Event{
			Type:    ws.EventDialogueMessageUpdate,
			Payload: DialogueMessageUpdate{DialogueID: msg.DialogueID, Message: promoted},
		})
	}
	return nil
}

// MarkRead flips every unread message authored by the other member. The
// other member receives MESSAGES_READ with the affected ids; the viewer
// receives UNREADMESSAGES_DECREASE for multi-device sync. With nothing
// unread this is a no-op with no events.
func (s *MessageService) MarkRead(ctx context.Context, dialogueID, viewerID int64) error {
	dialogue, err := s.dialogues.GetByID(ctx, dialogueID)
	if err != nil {
		return fmt.Errorf("get dialogue: %w", err)
	}
	if !dialogue.HasMember(viewerID) {
		return ErrNotMember
	}

	unread, err := s.messages.ListUnread(ctx, dialogueID, viewerID)
	if err != nil {
		return fmt.Errorf("list unread: %w", err)
	}
	if len(unread) == 0 {
		return nil
	}

	ids := make([]int64, len(unread))
	for i, m := range unread {
		ids[i] = m.ID
	}
	if err := s.messages.MarkRead(ctx, ids); err != nil {
		return err
	}

	s.notifier.Push(dialogue.OtherMember(viewerID), ws.Event{
		Type:    ws.EventMessagesRead,
		Payload: MessagesReadPayload{MessageIDs: ids, DialogueID: dialogueID},
	})
	s.notifier.Push(viewerID, ws.Event{
		Type:    ws.EventUnreadDecrease,
		Payload: UnreadDecreasePayload{Count: len(ids)},
	})
	return nil
}

// List returns the dialogue's messages in creation order, after applying
// the same read promotion as MarkRead (viewing a dialogue reads it).
func (s *MessageService) List(ctx context.Context, dialogueID, viewerID int64) ([]*MessageResponse, error) {
	if err := s.MarkRead(ctx, dialogueID, viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForDialogue(ctx, dialogueID)
	if err != nil {
		return nil, err
	}
	return s.ToResponses(ctx, msgs)
}

// UnreadCount aggregates unread messages addressed to the user across all
// their dialogues.
func (s *MessageService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.messages.CountUnreadForUser(ctx, userID)
}

// MessageResponse is the decrypted wire shape of a message.
type MessageResponse struct {
	ID          int64           `json:"id"`
	DialogueID  int64           `json:"dialogue_id"`
	Author      *domain.Profile `json:"author"`
	Content     *string         `json:"content"`
	Files       []*domain.File  `json:"files"`
	IsEdited    bool            `json:"is_edited"`
	IsRead      bool            `json:"is_read"`
	IsReference bool            `json:"is_reference"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DialogueMessageUpdate carries a dialogue's new last message; Message is
// nil when the dialogue was deleted.
type DialogueMessageUpdate struct {
	DialogueID int64            `json:"dialogue_id"`
	Message    *MessageResponse `json:"message"`
}

type MessagesReadPayload struct {
	MessageIDs []int64 `json:"message_ids"`
	DialogueID int64   `json:"dialogue_id"`
}

type UnreadDecreasePayload struct {
	Count int `json:"count"`
}

// ToResponse decrypts a message and attaches its author profile and files.
func (s *MessageService) ToResponse(ctx context.Context, m *domain.Message) (*MessageResponse, error) {
	var content *string
	if m.Content != nil {
		plain, err := s.encryptor.Decrypt(*m.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypt content: %w", err)
		}
		content = &plain
	}
	author, err := loadProfile(ctx, s.users, s.files.files, m.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("load author: %w", err)
	}
	files, err := s.files.ListForMessage(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	if files == nil {
		files = []*domain.File{}
	}
	return &MessageResponse{
		ID:          m.ID,
		DialogueID:  m.DialogueID,
		Author:      author,
		Content:     content,
		Files:       files,
		IsEdited:    m.IsEdited,
		IsRead:      m.IsRead,
		IsReference: m.IsReference,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// ToResponses converts a slice of messages.
func (s *MessageService) ToResponses(ctx context.Context, msgs []*domain.Message) ([]*MessageResponse, error) {
	res := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		dto, err := s.ToResponse(ctx, m)
		if err != nil {
			return nil, err
		}
		res = append(res, dto)
	}
	return res, nil
}

// isBareLink reports whether the trimmed text is a syntactically valid
// absolute http(s) URL. Rendering hint only, not a security boundary.
func isBareLink(text string) bool {
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return false
	}
	u, err := url.Parse(text)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
