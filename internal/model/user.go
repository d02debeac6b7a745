// Package model defines the data structures used throughout the application.
// Relationships are not fields; they are loaded by explicit repository queries.
package model

// Default profile images applied when a user signs up without one.
const (
	DefaultImageURL       = "/static/images/default-pic.png"
	DefaultHeaderImageURL = "/static/images/warbler-hero.jpg"
)

// User represents a Warbler account.
//
// Relationship collections (messages, following, followers, likes) are NOT
// fields here. They are fetched with explicit repository queries so that
// every database round-trip is visible at the call site.
//
// ID ZERO MEANS "ASSIGN ONE":
// A user with ID 0 gets a store-assigned id on
// commit. Any non-zero ID is written as-is, which lets callers (and tests)
// pick ids explicitly.
//
// Username and Email are plain strings. An empty string is stored as SQL
// NULL, so the NOT NULL constraint rejects it at commit time.
type User struct {
	ID             int64  `json:"id"             db:"id"`
	Username       string `json:"username"       db:"username"`
	Email          string `json:"email"          db:"email"`
	Password       string `json:"-"              db:"password"` // bcrypt hash, never plaintext
	ImageURL       string `json:"imageUrl"       db:"image_url"`
	HeaderImageURL string `json:"headerImageUrl" db:"header_image_url"`
	Bio            string `json:"bio"            db:"bio"`
	Location       string `json:"location"       db:"location"`
}
