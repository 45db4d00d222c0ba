package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

const userColumns = `id, username, email, password_hash, is_verified, is_admin, avatar, verification_token, verification_expires_at, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.IsVerified, &user.IsAdmin, &user.Avatar,
		&user.VerificationToken, &user.VerificationExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, verification_token, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.VerificationToken, user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_token <> '' AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, username string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET username=$2, updated_at=NOW() WHERE id=$1
		RETURNING `+userColumns, userID, username))
}

func (s *PostgresStore) UpdateUserAvatar(ctx context.Context, userID, avatar string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET avatar=$2, updated_at=NOW() WHERE id=$1
		RETURNING `+userColumns, userID, avatar))
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}

// ── Token revocations (fallback when Redis is not configured) ──

func (s *PostgresStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1 AND expires_at > NOW())
	`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Notes ──

const noteColumns = `id, title, content, images, user_id, is_pinned, is_public, is_approved, is_rejected, created_at, updated_at`

func scanNoteFields(note *Note, images *[]byte) []any {
	return []any{
		&note.ID, &note.Title, &note.Content, images, &note.UserID,
		&note.IsPinned, &note.IsPublic, &note.IsApproved, &note.IsRejected,
		&note.CreatedAt, &note.UpdatedAt,
	}
}

func decodeImages(raw []byte, note *Note) error {
	note.Images = []string{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &note.Images); err != nil {
		return fmt.Errorf("decode note images: %w", err)
	}
	return nil
}

func encodeImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode note images: %w", err)
	}
	return raw, nil
}

func (s *PostgresStore) InsertNote(ctx context.Context, note Note) error {
	images, err := encodeImages(note.Images)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, images, user_id, is_pinned, is_public, is_approved, is_rejected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, note.ID, note.Title, note.Content, images, note.UserID,
		note.IsPinned, note.IsPublic, note.IsApproved, note.IsRejected)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	var note Note
	var images []byte
	err := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=$1`, noteID).
		Scan(scanNoteFields(&note, &images)...)
	if err != nil {
		return Note{}, err
	}
	if err := decodeImages(images, &note); err != nil {
		return Note{}, err
	}
	return note, nil
}

// UpdateNote writes the full mutable row back; callers load, patch, then
// save. Last write wins.
func (s *PostgresStore) UpdateNote(ctx context.Context, note Note) (Note, error) {
	images, err := encodeImages(note.Images)
	if err != nil {
		return Note{}, err
	}
	var updated Note
	var rawImages []byte
	err = s.db.QueryRowContext(ctx, `
		UPDATE notes
		SET title=$2, content=$3, images=$4, is_pinned=$5, is_public=$6, is_approved=$7, is_rejected=$8, updated_at=NOW()
		WHERE id=$1
		RETURNING `+noteColumns,
		note.ID, note.Title, note.Content, images,
		note.IsPinned, note.IsPublic, note.IsApproved, note.IsRejected).
		Scan(scanNoteFields(&updated, &rawImages)...)
	if err != nil {
		return Note{}, err
	}
	if err := decodeImages(rawImages, &updated); err != nil {
		return Note{}, err
	}
	return updated, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, noteID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, noteID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListNotesByOwner returns the caller's notes, pinned first, newest first
// within each group.
func (s *PostgresStore) ListNotesByOwner(ctx context.Context, userID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE user_id=$1
		ORDER BY is_pinned DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list own notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

func collectNotes(rows *sql.Rows) ([]Note, error) {
	notes := []Note{}
	for rows.Next() {
		var note Note
		var images []byte
		if err := rows.Scan(scanNoteFields(&note, &images)...); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if err := decodeImages(images, &note); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *PostgresStore) ListPublicNotes(ctx context.Context) ([]NoteWithAuthor, error) {
	return s.listNotesWithAuthor(ctx, `n.is_public AND n.is_approved`)
}

func (s *PostgresStore) ListPendingNotes(ctx context.Context) ([]NoteWithAuthor, error) {
	return s.listNotesWithAuthor(ctx, `n.is_public AND NOT n.is_approved AND NOT n.is_rejected`)
}

func (s *PostgresStore) listNotesWithAuthor(ctx context.Context, where string) ([]NoteWithAuthor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.title, n.content, n.images, n.user_id,
			n.is_pinned, n.is_public, n.is_approved, n.is_rejected,
			n.created_at, n.updated_at,
			u.username, u.email, u.avatar
		FROM notes n
		JOIN users u ON u.id = n.user_id
		WHERE `+where+`
		ORDER BY n.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list notes with author: %w", err)
	}
	defer rows.Close()

	notes := []NoteWithAuthor{}
	for rows.Next() {
		var item NoteWithAuthor
		var images []byte
		fields := scanNoteFields(&item.Note, &images)
		fields = append(fields, &item.AuthorUsername, &item.AuthorEmail, &item.AuthorAvatar)
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("scan note with author: %w", err)
		}
		if err := decodeImages(images, &item.Note); err != nil {
			return nil, err
		}
		notes = append(notes, item)
	}
	return notes, rows.Err()
}

// ModerationCounts mirrors the admin dashboard: pending are submitted and
// undecided, approved are live public notes, rejected counts every note an
// admin has turned down.
func (s *PostgresStore) ModerationCounts(ctx context.Context) (ModerationStats, error) {
	var stats ModerationStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE is_public AND NOT is_approved AND NOT is_rejected),
			COUNT(*) FILTER (WHERE is_public AND is_approved),
			COUNT(*) FILTER (WHERE is_rejected)
		FROM notes
	`).Scan(&stats.Pending, &stats.Approved, &stats.Rejected)
	if err != nil {
		return ModerationStats{}, fmt.Errorf("moderation counts: %w", err)
	}
	return stats, nil
}
