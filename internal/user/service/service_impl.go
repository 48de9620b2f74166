package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicer/internal/auth/password"
	"github.com/smallbiznis/invoicer/internal/auth/token"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/user/domain"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"github.com/smallbiznis/invoicer/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Tokens *token.Manager
	Repo   domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	tokens   *token.Manager
	repo     domain.Repository
	validate *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		tokens:   p.Tokens,
		repo:     p.Repo,
		validate: validator.New(),
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthResult, error) {
	email, err := s.normalizeEmail(req.Email)
	if err != nil {
		return domain.AuthResult{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.AuthResult{}, domain.ErrInvalidName
	}
	if violations := password.Validate(req.Password); len(violations) > 0 {
		return domain.AuthResult{}, &domain.WeakPasswordError{Violations: violations}
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if existing != nil {
		return domain.AuthResult{}, domain.ErrEmailTaken
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.AuthResult{}, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.AuthResult{}, domain.ErrEmailTaken
		}
		return domain.AuthResult{}, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.AuthResult{}, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if user == nil || !password.Verify(req.Password, user.PasswordHash) {
		return domain.AuthResult{}, domain.ErrInvalidCredentials
	}

	return s.issue(*user)
}

func (s *Service) Me(ctx context.Context) (domain.User, error) {
	user, err := s.current(ctx)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (domain.User, error) {
	if req.Name == nil && req.Email == nil && req.AvatarURL == nil {
		return domain.User{}, domain.ErrNothingToUpdate
	}

	user, err := s.current(ctx)
	if err != nil {
		return domain.User{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.User{}, domain.ErrInvalidName
		}
		user.Name = name
	}
	if req.Email != nil {
		email, err := s.normalizeEmail(*req.Email)
		if err != nil {
			return domain.User{}, err
		}
		if email != user.Email {
			other, err := s.repo.FindByEmail(ctx, s.db, email)
			if err != nil {
				return domain.User{}, err
			}
			if other != nil && other.ID != user.ID {
				return domain.User{}, domain.ErrEmailTaken
			}
		}
		user.Email = email
	}
	if req.AvatarURL != nil {
		avatar := strings.TrimSpace(*req.AvatarURL)
		if avatar == "" {
			user.AvatarURL = nil
		} else {
			user.AvatarURL = &avatar
		}
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateProfile(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) error {
	user, err := s.current(ctx)
	if err != nil {
		return err
	}
	if !password.Verify(req.CurrentPassword, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if violations := password.Validate(req.NewPassword); len(violations) > 0 {
		return &domain.WeakPasswordError{Violations: violations}
	}

	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, s.db, user.ID, hash, s.clock.Now())
}

func (s *Service) current(ctx context.Context) (*domain.User, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func (s *Service) issue(user domain.User) (domain.AuthResult, error) {
	signed, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		if errors.Is(err, token.ErrMissingSecret) {
			s.log.Error("jwt secret not configured")
		}
		return domain.AuthResult{}, err
	}
	return domain.AuthResult{User: user, Token: signed, ExpiresAt: expiresAt}, nil
}
