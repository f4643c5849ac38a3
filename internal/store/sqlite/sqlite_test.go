package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/internal/domain"
	"chatline/internal/store/sqlite"
)

type testRepos struct {
	Users     *sqlite.UserRepo
	Dialogues *sqlite.DialogueRepo
	Messages  *sqlite.MessageRepo
	Files     *sqlite.FileRepo
	Tokens    *sqlite.TokenRepo
}

func newTestDB(t *testing.T) *testRepos {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	return &testRepos{
		Users:     sqlite.NewUserRepo(db),
		Dialogues: sqlite.NewDialogueRepo(db),
		Messages:  sqlite.NewMessageRepo(db),
		Files:     sqlite.NewFileRepo(db),
		Tokens:    sqlite.NewTokenRepo(db),
	}
}

func createUser(t *testing.T, users domain.UserRepository, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:          email,
		FullName:       "Test User",
		HashedPassword: "hashed",
		IsActivated:    true,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestUserRepo(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	alice := createUser(t, repos.Users, "alice@example.com")
	bob := createUser(t, repos.Users, "bob@example.com")

	t.Run("GetByEmail", func(t *testing.T) {
		got, err := repos.Users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		_, err = repos.Users.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("FriendRequests", func(t *testing.T) {
		has, err := repos.Users.HasFriendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, repos.Users.AddFriendRequest(ctx, alice.ID, bob.ID))
		// duplicate insert is a no-op
		require.NoError(t, repos.Users.AddFriendRequest(ctx, alice.ID, bob.ID))

		has, err = repos.Users.HasFriendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, has)

		senders, err := repos.Users.ListRequestSenderIDs(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{alice.ID}, senders)

		require.NoError(t, repos.Users.RemoveFriendRequest(ctx, alice.ID, bob.ID))
		has, err = repos.Users.HasFriendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("MirroredFriendship", func(t *testing.T) {
		require.NoError(t, repos.Users.AddFriend(ctx, alice.ID, bob.ID))

		// one direction written is already friendship in both directions
		friends, err := repos.Users.AreFriends(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, friends)

		require.NoError(t, repos.Users.AddFriend(ctx, bob.ID, alice.ID))
		ids, err := repos.Users.ListFriendIDs(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{bob.ID}, ids)

		require.NoError(t, repos.Users.RemoveFriend(ctx, alice.ID, bob.ID))
		require.NoError(t, repos.Users.RemoveFriend(ctx, bob.ID, alice.ID))
		friends, err = repos.Users.AreFriends(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, friends)
	})

	t.Run("OnlineStatus", func(t *testing.T) {
		require.NoError(t, repos.Users.SetOnlineStatus(ctx, alice.ID, true))
		got, err := repos.Users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, got.IsOnline)

		require.NoError(t, repos.Users.SetOnlineStatus(ctx, alice.ID, false))
		got, err = repos.Users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, got.IsOnline)
	})
}

func TestDialogueRepo(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	alice := createUser(t, repos.Users, "alice@example.com")
	bob := createUser(t, repos.Users, "bob@example.com")

	d := &domain.Dialogue{AuthorID: alice.ID, InterlocutorID: bob.ID}
	require.NoError(t, repos.Dialogues.Create(ctx, d))
	require.NotZero(t, d.ID)

	t.Run("FindByMembersIsSymmetric", func(t *testing.T) {
		got, err := repos.Dialogues.FindByMembers(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)

		got, err = repos.Dialogues.FindByMembers(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)

		_, err = repos.Dialogues.FindByMembers(ctx, alice.ID, alice.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("SetLastMessage", func(t *testing.T) {
		msg := &domain.Message{DialogueID: d.ID, AuthorID: alice.ID}
		require.NoError(t, repos.Messages.Create(ctx, msg))

		require.NoError(t, repos.Dialogues.SetLastMessage(ctx, d.ID, &msg.ID))
		got, err := repos.Dialogues.GetByID(ctx, d.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastMessageID)
		assert.Equal(t, msg.ID, *got.LastMessageID)

		require.NoError(t, repos.Dialogues.SetLastMessage(ctx, d.ID, nil))
		got, err = repos.Dialogues.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Nil(t, got.LastMessageID)
	})

	t.Run("ListForUser", func(t *testing.T) {
		list, err := repos.Dialogues.ListForUser(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, d.ID, list[0].ID)
	})
}

func TestMessageRepo(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	alice := createUser(t, repos.Users, "alice@example.com")
	bob := createUser(t, repos.Users, "bob@example.com")
	d := &domain.Dialogue{AuthorID: alice.ID, InterlocutorID: bob.ID}
	require.NoError(t, repos.Dialogues.Create(ctx, d))

	content := "encrypted-blob"
	first := &domain.Message{DialogueID: d.ID, AuthorID: alice.ID, Content: &content}
	second := &domain.Message{DialogueID: d.ID, AuthorID: alice.ID, Content: &content}
	third := &domain.Message{DialogueID: d.ID, AuthorID: bob.ID, Content: &content}
	for _, m := range []*domain.Message{first, second, third} {
		require.NoError(t, repos.Messages.Create(ctx, m))
	}
	assert.Less(t, first.ID, second.ID)
	assert.Less(t, second.ID, third.ID)

	t.Run("ListForDialogueInCreationOrder", func(t *testing.T) {
		msgs, err := repos.Messages.ListForDialogue(ctx, d.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, first.ID, msgs[0].ID)
		assert.Equal(t, third.ID, msgs[2].ID)
	})

	t.Run("UnreadExcludesOwnMessages", func(t *testing.T) {
		// bob sees alice's two messages, alice sees bob's one
		unread, err := repos.Messages.ListUnread(ctx, d.ID, bob.ID)
		require.NoError(t, err)
		assert.Len(t, unread, 2)

		count, err := repos.Messages.CountUnreadInDialogue(ctx, d.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = repos.Messages.CountUnreadForUser(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("MarkRead", func(t *testing.T) {
		require.NoError(t, repos.Messages.MarkRead(ctx, []int64{first.ID, second.ID}))
		unread, err := repos.Messages.ListUnread(ctx, d.ID, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, unread)

		// empty id list is a no-op
		require.NoError(t, repos.Messages.MarkRead(ctx, nil))
	})

	t.Run("FindLatestAndPreceding", func(t *testing.T) {
		latest, err := repos.Messages.FindLatest(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, third.ID, latest.ID)

		prev, err := repos.Messages.FindPreceding(ctx, d.ID, third.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, prev.ID)

		_, err = repos.Messages.FindPreceding(ctx, d.ID, first.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DeleteForDialogue", func(t *testing.T) {
		require.NoError(t, repos.Messages.DeleteForDialogue(ctx, d.ID))
		_, err := repos.Messages.FindLatest(ctx, d.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestFileRepo(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	alice := createUser(t, repos.Users, "alice@example.com")
	bob := createUser(t, repos.Users, "bob@example.com")
	d := &domain.Dialogue{AuthorID: alice.ID, InterlocutorID: bob.ID}
	require.NoError(t, repos.Dialogues.Create(ctx, d))
	msg := &domain.Message{DialogueID: d.ID, AuthorID: alice.ID}
	require.NoError(t, repos.Messages.Create(ctx, msg))

	attachment := &domain.File{
		AuthorID:   alice.ID,
		MessageID:  &msg.ID,
		DialogueID: &d.ID,
		FileName:   "photo.png",
		FilePath:   "/tmp/photo.png",
		URL:        "http://localhost/uploads/messages/1/photo.png",
		Size:       123,
		MediaType:  "image/png",
		Extension:  "png",
	}
	avatar := &domain.File{
		AuthorID:  alice.ID,
		FileName:  "me.jpg",
		FilePath:  "/tmp/me.jpg",
		URL:       "http://localhost/uploads/avatar/me.jpg",
		Size:      456,
		MediaType: "image/jpeg",
		Extension: "jpg",
	}
	require.NoError(t, repos.Files.Create(ctx, attachment))
	require.NoError(t, repos.Files.Create(ctx, avatar))

	t.Run("ListForMessage", func(t *testing.T) {
		files, err := repos.Files.ListForMessage(ctx, msg.ID)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, attachment.ID, files[0].ID)
	})

	t.Run("NilMessageIDMatchesAvatarsOnly", func(t *testing.T) {
		files, err := repos.Files.ListForAuthorAndMessage(ctx, alice.ID, nil)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, avatar.ID, files[0].ID)
	})

	t.Run("DeleteForDialogue", func(t *testing.T) {
		require.NoError(t, repos.Files.DeleteForDialogue(ctx, d.ID))
		files, err := repos.Files.ListForDialogue(ctx, d.ID)
		require.NoError(t, err)
		assert.Empty(t, files)

		// the avatar has no dialogue and survives
		got, err := repos.Files.GetByID(ctx, avatar.ID)
		require.NoError(t, err)
		assert.Equal(t, "me.jpg", got.FileName)
	})
}

func TestTokenRepo(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	alice := createUser(t, repos.Users, "alice@example.com")

	require.NoError(t, repos.Tokens.Save(ctx, alice.ID, "refresh-1"))

	t.Run("ReissueSupersedes", func(t *testing.T) {
		require.NoError(t, repos.Tokens.Save(ctx, alice.ID, "refresh-2"))

		_, err := repos.Tokens.Find(ctx, "refresh-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		tok, err := repos.Tokens.Find(ctx, "refresh-2")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, tok.UserID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repos.Tokens.Delete(ctx, "refresh-2"))
		_, err := repos.Tokens.Find(ctx, "refresh-2")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
