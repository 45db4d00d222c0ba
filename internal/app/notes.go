package app

import (
	"context"
	"net/http"
	"strings"

	"inkwell/api/internal/authz"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type CreateNoteInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type UpdateNoteInput struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Images   *[]string `json:"images"`
	IsPinned *bool     `json:"isPinned"`
	IsPublic *bool     `json:"isPublic"`
}

func (s *Service) CreateNote(ctx context.Context, session Session, input CreateNoteInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	images := input.Images
	if images == nil {
		images = []string{}
	}

	note := store.Note{
		ID:      util.NewID("note"),
		Title:   title,
		Content: content,
		Images:  images,
		UserID:  session.UserID,
	}
	if err := s.store.InsertNote(ctx, note); err != nil {
		return nil, err
	}

	created, err := s.store.GetNote(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	s.indexNote(created)
	return notePayload(created), nil
}

func (s *Service) GetNote(ctx context.Context, session Session, noteID string) (map[string]any, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !authz.CanReadNote(session.UserID, note) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return notePayload(note), nil
}

// ListOwnNotes returns the caller's notes, pinned first, newest first
// within each group.
func (s *Service) ListOwnNotes(ctx context.Context, session Session) ([]map[string]any, error) {
	notes, err := s.store.ListNotesByOwner(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		payload = append(payload, notePayload(note))
	}
	return payload, nil
}

// ListPublicNotes is anonymous-accessible and only ever exposes notes
// that passed moderation.
func (s *Service) ListPublicNotes(ctx context.Context) ([]map[string]any, error) {
	notes, err := s.store.ListPublicNotes(ctx)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		payload = append(payload, noteWithAuthorPayload(note))
	}
	return payload, nil
}

// UpdateNote applies a partial patch. Only the owner may update, and the
// moderation flags are not reachable from here: making a note public
// submits it, making it private again leaves the moderation outcome
// untouched.
func (s *Service) UpdateNote(ctx context.Context, session Session, noteID string, input UpdateNoteInput) (map[string]any, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateNote(session.UserID, note) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title cannot be blank", nil)
		}
		note.Title = title
	}
	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if content == "" {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content cannot be blank", nil)
		}
		note.Content = content
	}
	if input.Images != nil {
		images := *input.Images
		if images == nil {
			images = []string{}
		}
		note.Images = images
	}
	if input.IsPinned != nil {
		note.IsPinned = *input.IsPinned
	}
	if input.IsPublic != nil {
		note.IsPublic = *input.IsPublic
	}

	updated, err := s.store.UpdateNote(ctx, note)
	if err != nil {
		return nil, err
	}
	s.indexNote(updated)
	return notePayload(updated), nil
}

func (s *Service) DeleteNote(ctx context.Context, session Session, noteID string) error {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if !authz.CanMutateNote(session.UserID, note) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if err := s.store.DeleteNote(ctx, noteID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteNote(noteID)
	}
	return nil
}

func (s *Service) indexNote(note store.Note) {
	if s.search == nil {
		return
	}
	s.search.IndexNote(search.NoteRecord{
		ID:       note.ID,
		Title:    note.Title,
		Content:  note.Content,
		OwnerID:  note.UserID,
		Pinned:   note.IsPinned,
		Public:   note.IsPublic,
		Approved: note.IsApproved,
	})
}

func notePayload(note store.Note) map[string]any {
	images := note.Images
	if images == nil {
		images = []string{}
	}
	return map[string]any{
		"id":         note.ID,
		"title":      note.Title,
		"content":    note.Content,
		"images":     images,
		"userId":     note.UserID,
		"isPinned":   note.IsPinned,
		"isPublic":   note.IsPublic,
		"isApproved": note.IsApproved,
		"isRejected": note.IsRejected,
		"createdAt":  note.CreatedAt,
		"updatedAt":  note.UpdatedAt,
	}
}

func noteWithAuthorPayload(note store.NoteWithAuthor) map[string]any {
	payload := notePayload(note.Note)
	payload["user"] = map[string]any{
		"id":       note.UserID,
		"username": note.AuthorUsername,
		"email":    note.AuthorEmail,
		"avatar":   note.AuthorAvatar,
	}
	return payload
}
