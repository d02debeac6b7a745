package model

// Follow is a directed edge: FollowerID follows FollowedID.
// The pair is the primary key of the follows table.
type Follow struct {
	FollowerID int64 `json:"followerId" db:"user_following_id"`
	FollowedID int64 `json:"followedId" db:"user_being_followed_id"`
}

// Like records that UserID liked MessageID. One edge per pair.
type Like struct {
	UserID    int64 `json:"userId"    db:"user_id"`
	MessageID int64 `json:"messageId" db:"message_id"`
}
