package app

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"inkwell/api/internal/account"
	"inkwell/api/internal/assets"
	"inkwell/api/internal/auth"
	"inkwell/api/internal/config"
	"inkwell/api/internal/email"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	Username  string
	IsAdmin   bool
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	InsertNote(context.Context, store.Note) error
	GetNote(context.Context, string) (store.Note, error)
	UpdateNote(context.Context, store.Note) (store.Note, error)
	DeleteNote(context.Context, string) error
	ListNotesByOwner(context.Context, string) ([]store.Note, error)
	ListPublicNotes(context.Context) ([]store.NoteWithAuthor, error)
	ListPendingNotes(context.Context) ([]store.NoteWithAuthor, error)
	ModerationCounts(context.Context) (store.ModerationStats, error)
	Ping(ctx context.Context) error
}

// tokenRevoker is satisfied by both the redis store and the postgres
// fallback; logout blacklists the token's jti until its natural expiry.
type tokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type assetStore interface {
	Upload(ctx context.Context, folder, filename, contentType string, reader io.Reader, size int64) (string, error)
}

type noteIndex interface {
	Search(q search.Query) search.Response
	IndexNote(n search.NoteRecord)
	DeleteNote(id string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	accounts *account.Service
	revoker  tokenRevoker
	mailer   *email.Service
	search   noteIndex
	assets   assetStore
}

func New(cfg config.Config, dataStore *store.PostgresStore, accounts *account.Service, revoker tokenRevoker, mailer *email.Service, searchSvc *search.Service, assetSvc *assets.Service) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		accounts: accounts,
		revoker:  revoker,
		mailer:   mailer,
	}
	if searchSvc != nil {
		s.search = searchSvc
	}
	if assetSvc != nil {
		s.assets = assetSvc
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SignUp registers an account and mails the verification link. Without
// SMTP configured the link is logged instead so dev setups can proceed.
func (s *Service) SignUp(ctx context.Context, username, emailAddr, password string) (map[string]any, error) {
	resp, err := s.accounts.SignUp(ctx, account.SignUpRequest{
		Username: username,
		Email:    emailAddr,
		Password: password,
	})
	if err != nil {
		return nil, mapAccountError(err)
	}

	verifyURL := s.cfg.AppBaseURL + "/verifyemail?token=" + resp.VerificationToken
	if s.mailer != nil && s.mailer.IsConfigured() {
		go func() {
			if err := s.mailer.SendVerificationEmail(emailAddr, username, verifyURL); err != nil {
				log.Printf("email: send verification to %s: %v", emailAddr, err)
			}
		}()
	} else {
		log.Printf("email: smtp not configured, verification link for %s: %s", emailAddr, verifyURL)
	}

	return map[string]any{
		"userId":  resp.UserID,
		"message": "Account created. Please verify your email.",
	}, nil
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, store.User, error) {
	user, err := s.accounts.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, store.User{}, mapAccountError(err)
	}
	session, err := s.issueSession(user)
	if err != nil {
		return Session{}, store.User{}, err
	}
	return session, user, nil
}

func (s *Service) issueSession(user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:      user.ID,
		Username: user.Username,
		JTI:      jti,
		Exp:      expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsTokenRevoked(ctx, claims.JTI)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, auth.ErrInvalidToken
		}
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session) error {
	if session.JTI != "" && s.revoker != nil {
		_ = s.revoker.RevokeToken(ctx, session.JTI, session.ExpiresAt)
	}
	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if err := s.accounts.VerifyEmail(ctx, token); err != nil {
		return mapAccountError(err)
	}
	return nil
}

// RequestPasswordReset never reveals whether the email is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	token, err := s.accounts.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	resetURL := s.cfg.AppBaseURL + "/resetpassword?token=" + token
	if s.mailer != nil && s.mailer.IsConfigured() {
		go func() {
			if err := s.mailer.SendPasswordResetEmail(emailAddr, emailAddr, resetURL); err != nil {
				log.Printf("email: send password reset to %s: %v", emailAddr, err)
			}
		}()
	} else {
		log.Printf("email: smtp not configured, reset link for %s: %s", emailAddr, resetURL)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.accounts.ResetPassword(ctx, token, newPassword); err != nil {
		return mapAccountError(err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.accounts.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, username string) (map[string]any, error) {
	user, err := s.accounts.UpdateProfile(ctx, session.UserID, username)
	if err != nil {
		return nil, mapAccountError(err)
	}
	return userPayload(user), nil
}

func (s *Service) UpdateAvatar(ctx context.Context, session Session, avatarURL string) (map[string]any, error) {
	user, err := s.accounts.UpdateAvatar(ctx, session.UserID, avatarURL)
	if err != nil {
		return nil, mapAccountError(err)
	}
	return userPayload(user), nil
}

// Upload stores a binary under the given folder and returns its public URL.
func (s *Service) Upload(ctx context.Context, folder, filename, contentType string, reader io.Reader, size int64) (string, error) {
	if s.assets == nil {
		return "", domainError(http.StatusServiceUnavailable, "UPLOADS_DISABLED", "Asset storage is not configured", nil)
	}
	return s.assets.Upload(ctx, folder, filename, contentType, reader, size)
}

func (s *Service) Search(ctx context.Context, session Session, text string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:     text,
		CallerID: session.UserID,
		Limit:    limit,
		Offset:   offset,
	}), nil
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"isVerified": user.IsVerified,
		"isAdmin":    user.IsAdmin,
		"avatar":     user.Avatar,
		"createdAt":  user.CreatedAt,
		"updatedAt":  user.UpdatedAt,
	}
}

func mapAccountError(err error) error {
	if err == nil {
		return nil
	}

	var input account.InputError
	if errors.As(err, &input) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", string(input), nil)
	}

	switch {
	case errors.Is(err, account.ErrUsernameTaken), errors.Is(err, account.ErrEmailTaken):
		return domainError(http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, account.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil)
	case errors.Is(err, account.ErrNotVerified):
		return domainError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", err.Error(), nil)
	case errors.Is(err, account.ErrBadToken):
		return domainError(http.StatusBadRequest, "INVALID_TOKEN", err.Error(), nil)
	}
	return err
}
