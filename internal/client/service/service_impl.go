package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicer/internal/client/domain"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	validate *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("client.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		validate: validator.New(),
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Client, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.List(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clients = append(clients, *item)
	}
	return clients, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Client, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Client{}, domain.ErrInvalidUser
	}
	clientID, err := parseID(id)
	if err != nil {
		return domain.Client{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, userID, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	if item == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Create(ctx context.Context, input domain.ClientInput) (domain.Client, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Client{}, domain.ErrInvalidUser
	}

	client, err := s.build(input)
	if err != nil {
		return domain.Client{}, err
	}
	now := s.clock.Now()
	client.ID = s.genID.Generate()
	client.UserID = userID
	client.CreatedAt = now
	client.UpdatedAt = now

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

func (s *Service) Update(ctx context.Context, id string, input domain.ClientInput) (domain.Client, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Client{}, domain.ErrInvalidUser
	}
	clientID, err := parseID(id)
	if err != nil {
		return domain.Client{}, err
	}

	client, err := s.build(input)
	if err != nil {
		return domain.Client{}, err
	}
	client.ID = clientID
	client.UserID = userID
	client.UpdatedAt = s.clock.Now()

	updated, err := s.repo.Update(ctx, s.db, &client)
	if err != nil {
		return domain.Client{}, err
	}
	if !updated {
		return domain.Client{}, domain.ErrNotFound
	}

	stored, err := s.repo.FindByID(ctx, s.db, userID, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	if stored == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *stored, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidUser
	}
	clientID, err := parseID(id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, s.db, userID, clientID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) build(input domain.ClientInput) (domain.Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Client{}, domain.ErrInvalidName
	}

	email := optional(input.Email)
	if email != nil {
		if err := s.validate.Var(*email, "email"); err != nil {
			return domain.Client{}, domain.ErrInvalidEmail
		}
	}

	return domain.Client{
		Name:    name,
		Email:   email,
		Company: optional(input.Company),
		Phone:   optional(input.Phone),
		Address: optional(input.Address),
		TaxID:   optional(input.TaxID),
	}, nil
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
