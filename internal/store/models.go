package store

import "time"

type User struct {
	ID                    string
	Username              string
	Email                 string
	PasswordHash          string
	IsVerified            bool
	IsAdmin               bool
	Avatar                string
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Note struct {
	ID         string
	Title      string
	Content    string
	Images     []string
	UserID     string
	IsPinned   bool
	IsPublic   bool
	IsApproved bool
	IsRejected bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NoteWithAuthor joins the owner's public identity onto a note for listings
// that show who wrote it. Password material is never carried here.
type NoteWithAuthor struct {
	Note
	AuthorUsername string
	AuthorEmail    string
	AuthorAvatar   string
}

// ModerationStats are the admin dashboard counters.
type ModerationStats struct {
	Pending  int
	Approved int
	Rejected int
}

// NotePatch is a partial update; nil fields are left untouched. Moderation
// flags are deliberately absent.
type NotePatch struct {
	Title    *string
	Content  *string
	Images   *[]string
	IsPinned *bool
	IsPublic *bool
}
