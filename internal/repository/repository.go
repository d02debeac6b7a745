// Package repository declares the storage contracts the service layer
// depends on. Implementations live in subpackages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/warbler/internal/model"
)

// ListOptions pages through a listing. Query, when set, filters users by a
// case-insensitive username substring.
type ListOptions struct {
	Limit  int
	Offset int
	Query  string
}

// UserRepository reads users and their relationship collections.
// Every collection is an explicit query; nothing is loaded implicitly.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)

	Messages(ctx context.Context, userID int64) ([]model.Message, error)
	Following(ctx context.Context, userID int64) ([]model.User, error)
	Followers(ctx context.Context, userID int64) ([]model.User, error)
	Likes(ctx context.Context, userID int64) ([]model.Message, error)

	IsFollowing(ctx context.Context, userID, otherID int64) (bool, error)
	IsFollowedBy(ctx context.Context, userID, otherID int64) (bool, error)
}

// MessageRepository reads messages and like edges.
type MessageRepository interface {
	GetMessageByID(ctx context.Context, id int64) (*model.Message, error)
	LikesByUser(ctx context.Context, userID int64) ([]model.Like, error)
	IsLiked(ctx context.Context, userID, messageID int64) (bool, error)
}

// UnitOfWork batches writes and applies them in one transaction on Commit.
//
// Entities are passed by pointer: ids the store assigns during Commit are
// written back, and later operations in the same batch see them.
type UnitOfWork interface {
	AddUser(u *model.User)
	UpdateUser(u *model.User)
	DeleteUser(u *model.User)
	AddMessage(m *model.Message)
	Follow(follower, followed *model.User)
	Unfollow(follower, followed *model.User)
	Like(u *model.User, m *model.Message)
	Unlike(u *model.User, m *model.Message)

	Commit(ctx context.Context) error
	Rollback()
}

// Store is everything the service layer needs from persistence.
type Store interface {
	UserRepository
	MessageRepository
	Begin() UnitOfWork
}
