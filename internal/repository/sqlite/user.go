package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

// compile-time check that *Store implements repository.UserRepository
var _ repository.UserRepository = (*Store)(nil)

// userColumns must stay in the order scanUser reads them.
const userColumns = `u.id, u.username, u.email, u.password, u.image_url,
	u.header_image_url, u.bio, u.location`

// Page size limits for ListUsers.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Password,
		&u.ImageURL,
		&u.HeaderImageURL,
		&u.Bio,
		&u.Location,
	)
	return u, err
}

// GetUserByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by exact username.
// Returns apperror.ErrNotFound if no user has that username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.username = ?`, username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return &u, nil
}

// ListUsers pages through users ordered by id, optionally filtered by a
// username substring (opts.Query).
//
// Limit is clamped to 1..100 (default 20); a negative offset counts as 0.
func (s *Store) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	return s.queryUsers(ctx, "listing users",
		`SELECT `+userColumns+` FROM users u
		 WHERE ? = '' OR u.username LIKE '%' || ? || '%'
		 ORDER BY u.id
		 LIMIT ? OFFSET ?`,
		opts.Query, opts.Query, limit, offset,
	)
}

// Messages returns every message authored by userID in insertion order.
func (s *Store) Messages(ctx context.Context, userID int64) ([]model.Message, error) {
	return s.queryMessages(ctx, "listing messages of user",
		`SELECT `+messageColumns+` FROM messages m
		 WHERE m.user_id = ?
		 ORDER BY m.id`,
		userID,
	)
}

// Following returns the users userID follows.
func (s *Store) Following(ctx context.Context, userID int64) ([]model.User, error) {
	return s.queryUsers(ctx, "listing following",
		`SELECT `+userColumns+` FROM users u
		 JOIN follows f ON f.user_being_followed_id = u.id
		 WHERE f.user_following_id = ?
		 ORDER BY u.id`,
		userID,
	)
}

// Followers returns the users following userID.
func (s *Store) Followers(ctx context.Context, userID int64) ([]model.User, error) {
	return s.queryUsers(ctx, "listing followers",
		`SELECT `+userColumns+` FROM users u
		 JOIN follows f ON f.user_following_id = u.id
		 WHERE f.user_being_followed_id = ?
		 ORDER BY u.id`,
		userID,
	)
}

// Likes returns the messages userID has liked.
func (s *Store) Likes(ctx context.Context, userID int64) ([]model.Message, error) {
	return s.queryMessages(ctx, "listing likes of user",
		`SELECT `+messageColumns+` FROM messages m
		 JOIN likes l ON l.message_id = m.id
		 WHERE l.user_id = ?
		 ORDER BY m.id`,
		userID,
	)
}

// IsFollowing reports whether userID follows otherID.
func (s *Store) IsFollowing(ctx context.Context, userID, otherID int64) (bool, error) {
	return s.exists(ctx, "checking follow",
		`SELECT EXISTS (
			SELECT 1 FROM follows
			WHERE user_following_id = ? AND user_being_followed_id = ?
		)`,
		userID, otherID,
	)
}

// IsFollowedBy reports whether otherID follows userID.
func (s *Store) IsFollowedBy(ctx context.Context, userID, otherID int64) (bool, error) {
	return s.IsFollowing(ctx, otherID, userID)
}

// CountUsers returns the number of rows in users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

func (s *Store) queryUsers(ctx context.Context, what, query string, args ...any) ([]model.User, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", what, err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s: scanning user row: %w", what, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %s: iterating users: %w", what, err)
	}
	return users, nil
}

func (s *Store) exists(ctx context.Context, what, query string, args ...any) (bool, error) {
	var found bool
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("sqlite: %s: %w", what, err)
	}
	return found, nil
}
