package model

import "time"

// MaxMessageLength is the longest warble text accepted by the store.
const MaxMessageLength = 140

// Message is a short text post authored by exactly one user.
//
// Timestamp is filled in by the session on commit when left zero.
type Message struct {
	ID        int64     `json:"id"        db:"id"`
	Text      string    `json:"text"      db:"text"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	UserID    int64     `json:"userId"    db:"user_id"`
}
