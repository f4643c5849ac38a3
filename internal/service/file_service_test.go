package service_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/internal/domain"
	"chatline/internal/service"
	"chatline/internal/store/sqlite"
)

// newFileService builds a FileService on a fresh store plus one seeded
// author, returned as the author id to use in uploads.
func newFileService(t *testing.T, maxBytes int64) (*service.FileService, string, int64) {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	author := &domain.User{Email: "author@example.com", FullName: "Author", HashedPassword: "hashed"}
	require.NoError(t, sqlite.NewUserRepo(db).Create(context.Background(), author))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	dir := t.TempDir()
	return service.NewFileService(sqlite.NewFileRepo(db), dir, "http://localhost:8000", maxBytes, log), dir, author.ID
}

func TestFileServiceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("AvatarMediaTypeRestricted", func(t *testing.T) {
		svc, _, author := newFileService(t, 1<<20)
		_, err := svc.Store(ctx, []service.Upload{{
			FileName:  "malware.exe",
			MediaType: "application/octet-stream",
			Size:      10,
			Content:   strings.NewReader("0123456789"),
		}}, author, service.CategoryAvatar, nil, nil)
		assert.ErrorIs(t, err, service.ErrInvalidMediaType)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("MessagesAcceptAnyType", func(t *testing.T) {
		svc, dir, author := newFileService(t, 1<<20)
		msgID, dlgID := int64(7), int64(3)
		stored, err := svc.Store(ctx, []service.Upload{{
			FileName:  "notes.bin",
			MediaType: "application/octet-stream",
			Size:      5,
			Content:   strings.NewReader("hello"),
		}}, author, service.CategoryMessages, &msgID, &dlgID)
		require.NoError(t, err)
		require.Len(t, stored, 1)

		f := stored[0]
		assert.Equal(t, int64(5), f.Size)
		assert.Contains(t, f.URL, "/uploads/messages/3/")
		assert.True(t, strings.HasPrefix(f.FilePath, dir))

		data, err := os.ReadFile(f.FilePath)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("SizeLimitEnforcedAgainstActualBytes", func(t *testing.T) {
		svc, _, author := newFileService(t, 4)
		// declared size lies; the write path still stops at the limit
		_, err := svc.Store(ctx, []service.Upload{{
			FileName:  "big.txt",
			MediaType: "text/plain",
			Size:      1,
			Content:   strings.NewReader("way too large"),
		}}, author, service.CategoryMessages, nil, nil)
		assert.ErrorIs(t, err, service.ErrFileTooLarge)
	})

	t.Run("ReleaseRemovesBytesAndRows", func(t *testing.T) {
		svc, _, author := newFileService(t, 1<<20)
		msgID, dlgID := int64(1), int64(1)
		stored, err := svc.Store(ctx, []service.Upload{{
			FileName:  "gone.txt",
			MediaType: "text/plain",
			Size:      3,
			Content:   strings.NewReader("bye"),
		}}, author, service.CategoryMessages, &msgID, &dlgID)
		require.NoError(t, err)

		require.NoError(t, svc.Release(ctx, author, &msgID))

		_, err = os.Stat(stored[0].FilePath)
		assert.True(t, os.IsNotExist(err))

		files, err := svc.ListForMessage(ctx, msgID)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}
