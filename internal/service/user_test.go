package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
	"github.com/sakif/warbler/internal/repository/sqlite"
)

// =========================================================================
// HELPERS
// =========================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	svc   *UserService
	store *sqlite.Store
	user1 *model.User
	user2 *model.User
}

// newEnv resets an in-memory store and seeds user1 and user2 through Signup,
// the same way an account is created for real.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(sqlite.Config{DSN: sqlite.MemoryDSN}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Reset(ctx))

	svc := NewUserService(store, auth.NewPasswordServiceWithCost(4), quietLogger())

	u1, err := svc.Signup("testuser", "test@test.com", "password", "")
	require.NoError(t, err)
	u2, err := svc.Signup("testuser2", "test2@test.com", "password", "")
	require.NoError(t, err)

	sess := store.NewSession()
	sess.AddUser(u1)
	sess.AddUser(u2)
	require.NoError(t, sess.Commit(ctx))

	return &env{svc: svc, store: store, user1: u1, user2: u2}
}

// failingStore is a repository.Store whose lookups fail with err.
// Methods the tests never reach panic through the nil embedded interface.
type failingStore struct {
	repository.Store
	err error
}

func (f failingStore) GetUserByUsername(context.Context, string) (*model.User, error) {
	return nil, f.err
}

func (f failingStore) IsLiked(context.Context, int64, int64) (bool, error) {
	return false, f.err
}

// =========================================================================
// SIGNUP TESTS
// =========================================================================

func TestSignup_Valid(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Signup("testtesttest", "testtest@test.com", "password", "")
	require.NoError(t, err)
	assert.Zero(t, u.ID, "Signup must not persist the user")

	sess := e.store.NewSession()
	sess.AddUser(u)
	require.NoError(t, sess.Commit(ctx))

	stored, err := e.store.GetUserByUsername(ctx, "testtesttest")
	require.NoError(t, err)
	assert.Equal(t, "testtesttest", stored.Username)
	assert.Equal(t, "testtest@test.com", stored.Email)
	assert.NotEqual(t, "password", stored.Password)
	assert.True(t, strings.HasPrefix(stored.Password, "$2a$"), "password %q is not a bcrypt hash", stored.Password)
	assert.Equal(t, model.DefaultImageURL, stored.ImageURL)
}

func TestSignup_KeepsImageURL(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Signup("pic", "pic@test.com", "password", "/img/me.png")
	require.NoError(t, err)
	assert.Equal(t, "/img/me.png", u.ImageURL)
}

func TestSignup_IntegrityFailuresAtCommit(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"missing username", "", "fresh@test.com"},
		{"missing email", "fresh", ""},
		{"duplicate username", "testuser", "fresh@test.com"},
		{"duplicate email", "fresh", "test@test.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)

			u, err := e.svc.Signup(tt.username, tt.email, "password", "")
			require.NoError(t, err, "Signup does not pre-validate identity fields")

			sess := e.store.NewSession()
			sess.AddUser(u)
			err = sess.Commit(context.Background())
			sess.Rollback()

			assert.ErrorIs(t, err, apperror.ErrIntegrity)
		})
	}
}

func TestSignup_EmptyPassword(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Signup("testtest", "email@email.com", "", "")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "password", appErr.Field)
}

func TestSignup_PasswordTooLong(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Signup("long", "long@test.com", strings.Repeat("p", auth.MaxPasswordBytes+1), "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, "registered", "reg@test.com", "password", "")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	n, err := e.store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = e.svc.Register(ctx, "registered", "other@test.com", "password", "")
	assert.ErrorIs(t, err, apperror.ErrIntegrity)
}

// =========================================================================
// AUTHENTICATE TESTS
// =========================================================================

func TestAuthenticate_Valid(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Authenticate(context.Background(), e.user1.Username, "password")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, e.user1.ID, u.ID)
}

func TestAuthenticate_UnknownUsername(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Authenticate(context.Background(), "badusername", "password")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Authenticate(context.Background(), e.user1.Username, "badpassword")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestAuthenticate_CorruptHash(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.user2.Password = "HASHED_PASSWORD"
	sess := e.store.NewSession()
	sess.UpdateUser(e.user2)
	require.NoError(t, sess.Commit(ctx))

	u, err := e.svc.Authenticate(ctx, e.user2.Username, "HASHED_PASSWORD")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestAuthenticate_StorageFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	svc := NewUserService(failingStore{err: boom}, auth.NewPasswordServiceWithCost(4), quietLogger())

	u, err := svc.Authenticate(context.Background(), "anyone", "password")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, boom)
}

// =========================================================================
// FOLLOW AND LIKE TESTS
// =========================================================================

func TestFollowHelpers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.svc.Follow(ctx, e.user1, e.user2))

	ok, err := e.svc.IsFollowing(ctx, e.user1, e.user2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.svc.IsFollowing(ctx, e.user2, e.user1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.svc.IsFollowedBy(ctx, e.user2, e.user1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.svc.IsFollowedBy(ctx, e.user1, e.user2)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, e.svc.Follow(ctx, e.user1, e.user2), apperror.ErrIntegrity)

	require.NoError(t, e.svc.Unfollow(ctx, e.user1, e.user2))
	ok, err = e.svc.IsFollowing(ctx, e.user1, e.user2)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, e.svc.Unfollow(ctx, e.user1, e.user2), apperror.ErrNotFound)
}

func TestToggleLike(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	msg, err := e.svc.Post(ctx, e.user1, "like this")
	require.NoError(t, err)

	liked, err := e.svc.ToggleLike(ctx, e.user2, msg)
	require.NoError(t, err)
	assert.True(t, liked)

	likes, err := e.store.Likes(ctx, e.user2.ID)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, msg.ID, likes[0].ID)

	liked, err = e.svc.ToggleLike(ctx, e.user2, msg)
	require.NoError(t, err)
	assert.False(t, liked)

	likes, err = e.store.Likes(ctx, e.user2.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestToggleLike_StorageFailure(t *testing.T) {
	boom := errors.New("locked")
	svc := NewUserService(failingStore{err: boom}, auth.NewPasswordServiceWithCost(4), quietLogger())

	_, err := svc.ToggleLike(context.Background(), &model.User{ID: 1}, &model.Message{ID: 1})
	assert.ErrorIs(t, err, boom)
}

// =========================================================================
// POST TESTS
// =========================================================================

func TestPost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	msg, err := e.svc.Post(ctx, e.user1, "hello warble")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	messages, err := e.store.Messages(ctx, e.user1.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello warble", messages[0].Text)
}

func TestPost_Validation(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"too long", strings.Repeat("w", model.MaxMessageLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.svc.Post(context.Background(), e.user1, tt.text)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestPost_MultibyteAtLimit(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Post(context.Background(), e.user1, strings.Repeat("é", model.MaxMessageLength))
	assert.NoError(t, err)
}
