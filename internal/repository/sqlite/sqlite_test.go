package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// MemoryDSN gives every test its own fresh database, destroyed when the
// Store is closed by t.Cleanup.

// testPasswords hashes with bcrypt cost 4 so fixtures are cheap to build.
var testPasswords = auth.NewPasswordServiceWithCost(4)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DSN: MemoryDSN}, quietLogger())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newSignedUpUser builds a user the way signup does (hashed password),
// commits it and returns it. id 0 lets the store pick one.
func newSignedUpUser(t *testing.T, s *Store, id int64, username, password string) *model.User {
	t.Helper()
	hash, err := testPasswords.Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &model.User{
		ID:       id,
		Username: username,
		Email:    username + "@email.com",
		Password: hash,
	}
	sess := s.NewSession()
	sess.AddUser(u)
	if err := sess.Commit(context.Background()); err != nil {
		t.Fatalf("failed to commit test user %q: %v", username, err)
	}
	return u
}

// fixture mirrors the two-user setup every model test starts from:
// the schema is reset, then user1 (id 999) and user2 (id 666) are created.
type fixture struct {
	store *Store
	user1 *model.User
	user2 *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newTestStore(t)
	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	newSignedUpUser(t, s, 999, "user1", "password1")
	newSignedUpUser(t, s, 666, "user2", "password2")

	// Re-read both users so the fixture holds what the database stored.
	u1, err := s.GetUserByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetUserByID(999) error = %v", err)
	}
	u2, err := s.GetUserByID(context.Background(), 666)
	if err != nil {
		t.Fatalf("GetUserByID(666) error = %v", err)
	}
	return &fixture{store: s, user1: u1, user2: u2}
}

// commit runs fn against a fresh session and commits it.
func (f *fixture) commit(t *testing.T, fn func(sess *Session)) error {
	t.Helper()
	sess := f.store.NewSession()
	fn(sess)
	err := sess.Commit(context.Background())
	if err != nil {
		sess.Rollback()
	}
	return err
}

// =========================================================================
// LIFECYCLE TESTS
// =========================================================================

func TestNew_CreatesAllTables(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"users", "messages", "follows", "likes"} {
		var name string
		err := s.conn.QueryRowContext(context.Background(),
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing: %v", table, err)
		}
	}
}

func TestNew_EmptyDSN(t *testing.T) {
	_, err := New(Config{}, quietLogger())
	if err == nil {
		t.Fatal("New() should reject an empty DSN")
	}
}

func TestNew_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var on int
	if err := s.conn.QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("reading foreign_keys pragma: %v", err)
	}
	if on != 1 {
		t.Errorf("PRAGMA foreign_keys = %d, want 1", on)
	}
}

func TestReset_ClearsData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newSignedUpUser(t, s, 0, "ghost", "boo")

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	n, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountUsers() after Reset = %d, want 0", n)
	}

	// The schema must be usable again straight away.
	newSignedUpUser(t, s, 0, "fresh", "start")
}

func TestReset_Twice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Reset(ctx); err != nil {
			t.Fatalf("Reset() #%d error = %v", i+1, err)
		}
	}
}

func TestNew_FileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warbler.db")
	ctx := context.Background()

	s, err := New(Config{DSN: path}, quietLogger())
	if err != nil {
		t.Fatalf("New(%q) error = %v", path, err)
	}
	newSignedUpUser(t, s, 42, "durable", "pw")
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening runs migrations again; they must be a no-op.
	s, err = New(Config{DSN: path}, quietLogger())
	if err != nil {
		t.Fatalf("reopening %q: %v", path, err)
	}
	defer s.Close()

	u, err := s.GetUserByID(ctx, 42)
	if err != nil {
		t.Fatalf("GetUserByID(42) after reopen: %v", err)
	}
	if u.Username != "durable" {
		t.Errorf("Username = %q, want %q", u.Username, "durable")
	}
}
