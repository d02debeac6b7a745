package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

var _ repository.UnitOfWork = (*Session)(nil)

// Session is a unit of work: it queues writes and applies them all in one
// transaction when Commit is called.
//
// LIFECYCLE:
//
//	sess := store.NewSession()
//	sess.AddUser(u)            // nothing touches the database yet
//	sess.Follow(u, other)
//	if err := sess.Commit(ctx); err != nil {
//	    sess.Rollback()        // drop the failed batch before reusing sess
//	    return err
//	}
//
// Commit is all-or-nothing. If any statement fails (or the database
// rejects the transaction) nothing is persisted and every id or default
// that Commit wrote into the queued structs is reverted.
//
// A Session is not safe for concurrent use.
type Session struct {
	id     xid.ID
	store  *Store
	ops    []op
	logger *slog.Logger
}

// op is one queued write. run executes it inside the transaction and
// returns an undo func restoring any fields it wrote into caller structs.
type op struct {
	name string
	run  func(ctx context.Context, tx *sql.Tx) (undo func(), err error)
}

// NewSession starts an empty unit of work.
func (s *Store) NewSession() *Session {
	id := xid.New()
	return &Session{
		id:     id,
		store:  s,
		logger: s.logger.With(slog.String("session", id.String())),
	}
}

// ID identifies the session in logs.
func (sess *Session) ID() string {
	return sess.id.String()
}

// Pending reports how many writes are queued.
func (sess *Session) Pending() int {
	return len(sess.ops)
}

// AddUser queues an INSERT of u.
//
// u.ID == 0 lets the database assign an id; it is written back into u.
// Empty Username, Email or Password are stored as NULL and rejected by the
// schema, surfacing as apperror.ErrIntegrity from Commit.
func (sess *Session) AddUser(u *model.User) {
	sess.queue("add user", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		prev := *u
		undo := func() { *u = prev }

		if u.ImageURL == "" {
			u.ImageURL = model.DefaultImageURL
		}
		if u.HeaderImageURL == "" {
			u.HeaderImageURL = model.DefaultHeaderImageURL
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, email, password, image_url, header_image_url, bio, location)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			nullID(u.ID),
			nullString(u.Username),
			nullString(u.Email),
			nullString(u.Password),
			u.ImageURL,
			u.HeaderImageURL,
			u.Bio,
			u.Location,
		)
		if err != nil {
			return undo, fmt.Errorf("inserting user %q: %w", u.Username, mapError(err))
		}
		if u.ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return undo, fmt.Errorf("reading new user id: %w", err)
			}
			u.ID = id
		}
		return undo, nil
	})
}

// UpdateUser queues an UPDATE of every profile column of u, keyed by u.ID.
// A missing row fails the commit with apperror.ErrNotFound.
func (sess *Session) UpdateUser(u *model.User) {
	sess.queue("update user", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET username = ?, email = ?, password = ?, image_url = ?,
			     header_image_url = ?, bio = ?, location = ?
			 WHERE id = ?`,
			nullString(u.Username),
			nullString(u.Email),
			nullString(u.Password),
			orDefault(u.ImageURL, model.DefaultImageURL),
			orDefault(u.HeaderImageURL, model.DefaultHeaderImageURL),
			u.Bio,
			u.Location,
			u.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating user %d: %w", u.ID, mapError(err))
		}
		return nil, requireAffected(res, "user", u.ID)
	})
}

// DeleteUser queues a DELETE of u. Messages, follow edges in both
// directions and likes owned by u are removed by ON DELETE CASCADE.
func (sess *Session) DeleteUser(u *model.User) {
	sess.queue("delete user", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, u.ID)
		if err != nil {
			return nil, fmt.Errorf("deleting user %d: %w", u.ID, mapError(err))
		}
		return nil, requireAffected(res, "user", u.ID)
	})
}

// AddMessage queues an INSERT of m. A zero Timestamp is set to the current
// UTC time; a zero ID is assigned by the database. Both are written back.
func (sess *Session) AddMessage(m *model.Message) {
	sess.queue("add message", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		prev := *m
		undo := func() { *m = prev }

		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now().UTC()
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, text, timestamp, user_id) VALUES (?, ?, ?, ?)`,
			nullID(m.ID),
			nullString(m.Text),
			m.Timestamp,
			m.UserID,
		)
		if err != nil {
			return undo, fmt.Errorf("inserting message for user %d: %w", m.UserID, mapError(err))
		}
		if m.ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return undo, fmt.Errorf("reading new message id: %w", err)
			}
			m.ID = id
		}
		return undo, nil
	})
}

// Follow queues a follows edge follower → followed.
//
// Ids are read when the edge is written, so users added earlier in the
// same session can be followed before they have ids.
// Duplicate edges and self-follows fail the commit with apperror.ErrIntegrity.
func (sess *Session) Follow(follower, followed *model.User) {
	sess.queue("follow", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO follows (user_being_followed_id, user_following_id) VALUES (?, ?)`,
			followed.ID, follower.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("following %d -> %d: %w", follower.ID, followed.ID, mapError(err))
		}
		return nil, nil
	})
}

// Unfollow queues removal of the edge follower → followed.
// A missing edge fails the commit with apperror.ErrNotFound.
func (sess *Session) Unfollow(follower, followed *model.User) {
	sess.queue("unfollow", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM follows WHERE user_being_followed_id = ? AND user_following_id = ?`,
			followed.ID, follower.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("unfollowing %d -> %d: %w", follower.ID, followed.ID, mapError(err))
		}
		return nil, requireAffectedEdge(res, "follow", follower.ID, followed.ID)
	})
}

// Like queues a likes edge for (u, m). Liking the same message twice fails
// the commit with apperror.ErrIntegrity; the table holds one edge per pair.
func (sess *Session) Like(u *model.User, m *model.Message) {
	sess.queue("like", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO likes (user_id, message_id) VALUES (?, ?)`,
			u.ID, m.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("liking message %d by user %d: %w", m.ID, u.ID, mapError(err))
		}
		return nil, nil
	})
}

// Unlike queues removal of the likes edge for (u, m).
func (sess *Session) Unlike(u *model.User, m *model.Message) {
	sess.queue("unlike", func(ctx context.Context, tx *sql.Tx) (func(), error) {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE user_id = ? AND message_id = ?`,
			u.ID, m.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("unliking message %d by user %d: %w", m.ID, u.ID, mapError(err))
		}
		return nil, requireAffectedEdge(res, "like", u.ID, m.ID)
	})
}

// Commit applies every queued write in one transaction.
//
// On success the queue is emptied. On failure the transaction is rolled
// back, caller structs are restored and the queue is left intact; call
// Rollback to discard it.
func (sess *Session) Commit(ctx context.Context) error {
	if len(sess.ops) == 0 {
		return nil
	}

	tx, err := sess.store.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: session %s: beginning transaction: %w", sess.id, err)
	}

	// undos run in reverse order so a struct touched twice ends up as it
	// was before the first op.
	var undos []func()
	fail := func(err error) error {
		_ = tx.Rollback()
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i]()
		}
		sess.logger.Debug("session commit failed",
			slog.Int("ops", len(sess.ops)),
			slog.String("error", err.Error()),
		)
		return err
	}

	for _, o := range sess.ops {
		undo, err := o.run(ctx, tx)
		if undo != nil {
			undos = append(undos, undo)
		}
		if err != nil {
			return fail(fmt.Errorf("sqlite: session %s: %s: %w", sess.id, o.name, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("sqlite: session %s: committing: %w", sess.id, mapError(err)))
	}

	sess.logger.Debug("session committed", slog.Int("ops", len(sess.ops)))
	sess.ops = nil
	return nil
}

// Rollback discards every queued write. Nothing has reached the database
// yet, so there is nothing to undo there.
func (sess *Session) Rollback() {
	if len(sess.ops) > 0 {
		sess.logger.Debug("session rolled back", slog.Int("ops", len(sess.ops)))
	}
	sess.ops = nil
}

func (sess *Session) queue(name string, run func(ctx context.Context, tx *sql.Tx) (func(), error)) {
	sess.ops = append(sess.ops, op{name: name, run: run})
}

// nullString maps "" to SQL NULL so NOT NULL columns reject missing values.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullID maps 0 to SQL NULL so INTEGER PRIMARY KEY picks the next rowid.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func requireAffected(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, strconv.FormatInt(id, 10))
	}
	return nil
}

func requireAffectedEdge(res sql.Result, resource string, from, to int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, fmt.Sprintf("%d/%d", from, to))
	}
	return nil
}
