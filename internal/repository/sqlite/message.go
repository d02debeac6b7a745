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

var _ repository.MessageRepository = (*Store)(nil)

const messageColumns = `m.id, m.text, m.timestamp, m.user_id`

func scanMessage(row rowScanner) (model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.Text, &m.Timestamp, &m.UserID)
	return m, err
}

// GetMessageByID retrieves a single message.
// Returns apperror.ErrNotFound if it doesn't exist.
func (s *Store) GetMessageByID(ctx context.Context, id int64) (*model.Message, error) {
	m, err := scanMessage(s.conn.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages m WHERE m.id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting message %d: %w", id, err)
	}
	return &m, nil
}

// LikesByUser returns the raw like edges of userID, ordered by message id.
func (s *Store) LikesByUser(ctx context.Context, userID int64) ([]model.Like, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT user_id, message_id FROM likes WHERE user_id = ? ORDER BY message_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing like edges of user %d: %w", userID, err)
	}
	defer rows.Close()

	likes := make([]model.Like, 0)
	for rows.Next() {
		var l model.Like
		if err := rows.Scan(&l.UserID, &l.MessageID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning like row: %w", err)
		}
		likes = append(likes, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating likes: %w", err)
	}
	return likes, nil
}

// IsLiked reports whether userID has liked messageID.
func (s *Store) IsLiked(ctx context.Context, userID, messageID int64) (bool, error) {
	return s.exists(ctx, "checking like",
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = ? AND message_id = ?)`,
		userID, messageID,
	)
}

func (s *Store) queryMessages(ctx context.Context, what, query string, args ...any) ([]model.Message, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", what, err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s: scanning message row: %w", what, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %s: iterating messages: %w", what, err)
	}
	return messages, nil
}
