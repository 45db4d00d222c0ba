// Package authz is the single place note access rules live. Every endpoint
// consults these functions instead of repeating inline checks.
package authz

import "inkwell/api/internal/store"

// CanReadNote reports whether callerID may fetch the note by id. An empty
// callerID is an anonymous caller. Non-owners only see notes that are both
// public and approved; submission alone does not make a note readable.
func CanReadNote(callerID string, note store.Note) bool {
	if callerID != "" && callerID == note.UserID {
		return true
	}
	return note.IsPublic && note.IsApproved
}

// CanMutateNote reports whether callerID may edit or delete the note.
// Owner only; moderation flags are not mutable through this path.
func CanMutateNote(callerID string, note store.Note) bool {
	return callerID != "" && callerID == note.UserID
}

// CanModerate reports whether the user may approve, reject, or inspect the
// moderation queue.
func CanModerate(user store.User) bool {
	return user.IsAdmin
}
