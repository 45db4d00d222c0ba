package app

import (
	"context"
	"net/http"

	"inkwell/api/internal/authz"
)

// Moderation transitions over (isPublic, isApproved, isRejected):
// a public unapproved unrejected note is pending review; approval keeps it
// public, rejection pulls it off the public feed until the owner resubmits.

func (s *Service) ApproveNote(ctx context.Context, session Session, noteID string) (map[string]any, error) {
	if err := s.requireModerator(ctx, session); err != nil {
		return nil, err
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	note.IsApproved = true
	note.IsRejected = false

	updated, err := s.store.UpdateNote(ctx, note)
	if err != nil {
		return nil, err
	}
	s.indexNote(updated)
	return notePayload(updated), nil
}

// RejectNote is idempotent: rejecting an already rejected note changes
// nothing.
func (s *Service) RejectNote(ctx context.Context, session Session, noteID string) (map[string]any, error) {
	if err := s.requireModerator(ctx, session); err != nil {
		return nil, err
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	note.IsApproved = false
	note.IsPublic = false
	note.IsRejected = true

	updated, err := s.store.UpdateNote(ctx, note)
	if err != nil {
		return nil, err
	}
	s.indexNote(updated)
	return notePayload(updated), nil
}

func (s *Service) ListPendingNotes(ctx context.Context, session Session) ([]map[string]any, error) {
	if err := s.requireModerator(ctx, session); err != nil {
		return nil, err
	}
	notes, err := s.store.ListPendingNotes(ctx)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		payload = append(payload, noteWithAuthorPayload(note))
	}
	return payload, nil
}

func (s *Service) PendingCount(ctx context.Context, session Session) (int, error) {
	if err := s.requireModerator(ctx, session); err != nil {
		return 0, err
	}
	stats, err := s.store.ModerationCounts(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Pending, nil
}

func (s *Service) NoteStats(ctx context.Context, session Session) (map[string]any, error) {
	if err := s.requireModerator(ctx, session); err != nil {
		return nil, err
	}
	stats, err := s.store.ModerationCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"pending":  stats.Pending,
		"approved": stats.Approved,
		"rejected": stats.Rejected,
	}, nil
}

// requireModerator re-reads the caller so a revoked admin flag takes
// effect immediately, not at next login.
func (s *Service) requireModerator(ctx context.Context, session Session) error {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return err
	}
	if !authz.CanModerate(user) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
	}
	return nil
}
