package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chatline/internal/domain"
)

// Validation errors surfaced by uploads.
var (
	ErrInvalidMediaType = fmt.Errorf("%w: media type not allowed for category", domain.ErrValidation)
	ErrFileTooLarge     = fmt.Errorf("%w: file exceeds size limit", domain.ErrValidation)
)

// Upload categories. Messages accept arbitrary media; avatars and voice
// notes are restricted to their allow-lists.
const (
	CategoryMessages = "messages"
	CategoryAvatar   = "avatar"
	CategoryAudio    = "audio"
)

var categoryAllowList = map[string]map[string]struct{}{
	CategoryAvatar: {
		"image/png":  {},
		"image/jpeg": {},
		"image/gif":  {},
		"image/webp": {},
	},
	CategoryAudio: {
		"audio/mpeg": {},
		"audio/ogg":  {},
		"audio/wav":  {},
		"audio/webm": {},
	},
	CategoryMessages: nil, // any type
}

// Upload is one inbound blob.
type Upload struct {
	FileName  string
	MediaType string
	Size      int64
	Content   io.Reader
}

// FileService is the blob/attachment manager: it writes upload bytes under
// the category/dialogue namespace, records File rows, and reclaims both on
// release.
type FileService struct {
	files     domain.FileRepository
	uploadDir string
	baseURL   string
	maxBytes  int64
	log       logrus.FieldLogger
}

func NewFileService(files domain.FileRepository, uploadDir, baseURL string, maxBytes int64, log logrus.FieldLogger) *FileService {
	return &FileService{
		files:     files,
		uploadDir: uploadDir,
		baseURL:   baseURL,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// Store persists the uploads and records a File entity per blob. Message
// attachments are namespaced by dialogue id so a dialogue cascade can
// sweep its directory.
func (s *FileService) Store(
	ctx context.Context,
	uploads []Upload,
	authorID int64,
	category string,
	messageID *int64,
	dialogueID *int64,
) ([]*domain.File, error) {
	allowed, ok := categoryAllowList[category]
	if !ok {
		return nil, fmt.Errorf("%w: unknown upload category %q", domain.ErrValidation, category)
	}

	var stored []*domain.File
	for _, up := range uploads {
		if allowed != nil {
			if _, ok := allowed[up.MediaType]; !ok {
				return nil, ErrInvalidMediaType
			}
		}
		if s.maxBytes > 0 && up.Size > s.maxBytes {
			return nil, ErrFileTooLarge
		}

		ext := extensionFor(up.MediaType, up.FileName)
		filename := uuid.NewString()
		if ext != "" {
			filename += "." + ext
		}

		relDir := category
		if dialogueID != nil {
			relDir = filepath.Join(category, strconv.FormatInt(*dialogueID, 10))
		}
		dir := filepath.Join(s.uploadDir, relDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
		path := filepath.Join(dir, filename)

		size, err := s.writeBlob(path, up.Content)
		if err != nil {
			return nil, err
		}

		f := &domain.File{
			AuthorID:   authorID,
			MessageID:  messageID,
			DialogueID: dialogueID,
			FileName:   up.FileName,
			FilePath:   path,
			URL:        s.baseURL + "/uploads/" + filepath.ToSlash(relDir) + "/" + filename,
			Size:       size,
			MediaType:  up.MediaType,
			Extension:  ext,
		}
		if err := s.files.Create(ctx, f); err != nil {
			// keep the store consistent with the metadata
			s.unlink(path)
			return nil, err
		}
		stored = append(stored, f)
	}
	return stored, nil
}

// Release deletes all File records matching the author and, when given,
// the owning message, together with their backing bytes. Byte deletion is
// best-effort: a failed unlink is logged and never blocks the metadata
// removal.
func (s *FileService) Release(ctx context.Context, authorID int64, messageID *int64) error {
	files, err := s.files.ListForAuthorAndMessage(ctx, authorID, messageID)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	for _, f := range files {
		s.unlink(f.FilePath)
	}
	return s.files.DeleteForAuthorAndMessage(ctx, authorID, messageID)
}

// ReleaseDialogue reclaims every attachment recorded for a dialogue,
// invoked by the friendship-removal cascade.
func (s *FileService) ReleaseDialogue(ctx context.Context, dialogueID int64) error {
	files, err := s.files.ListForDialogue(ctx, dialogueID)
	if err != nil {
		return fmt.Errorf("list dialogue files: %w", err)
	}
	for _, f := range files {
		s.unlink(f.FilePath)
	}
	return s.files.DeleteForDialogue(ctx, dialogueID)
}

// ListForMessage returns the attachments of a message.
func (s *FileService) ListForMessage(ctx context.Context, messageID int64) ([]*domain.File, error) {
	return s.files.ListForMessage(ctx, messageID)
}

// GetByID returns one file record.
func (s *FileService) GetByID(ctx context.Context, id int64) (*domain.File, error) {
	return s.files.GetByID(ctx, id)
}

// DeleteByID removes one file record and its bytes (used for avatar
// replacement).
func (s *FileService) DeleteByID(ctx context.Context, id int64) error {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.unlink(f.FilePath)
	return s.files.Delete(ctx, f.ID)
}

func (s *FileService) writeBlob(path string, content io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	defer out.Close()

	reader := content
	if s.maxBytes > 0 {
		reader = io.LimitReader(content, s.maxBytes+1)
	}
	n, err := io.Copy(out, reader)
	if err != nil {
		s.unlink(path)
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		s.unlink(path)
		return 0, ErrFileTooLarge
	}
	return n, nil
}

func (s *FileService) unlink(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.WithField("path", path).WithError(err).Warn("blob deletion failed")
	}
}

// extensionFor derives the stored extension from the declared media type,
// falling back to the original filename.
func extensionFor(mediaType, fileName string) string {
	if i := strings.Index(mediaType, "/"); i >= 0 && i < len(mediaType)-1 {
		sub := mediaType[i+1:]
		if j := strings.Index(sub, ";"); j >= 0 {
			sub = sub[:j]
		}
		return sub
	}
	return strings.TrimPrefix(filepath.Ext(fileName), ".")
}
