package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	templatedomain "github.com/smallbiznis/invoicer/internal/invoicetemplate/domain"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  templatedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  templatedomain.Repository
}

func NewService(p Params) templatedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoicetemplate.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) List(ctx context.Context) ([]templatedomain.InvoiceTemplate, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, templatedomain.ErrInvalidUser
	}

	items, err := s.repo.List(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	out := make([]templatedomain.InvoiceTemplate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (templatedomain.InvoiceTemplate, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrInvalidUser
	}
	templateID, err := parseID(id)
	if err != nil {
		return templatedomain.InvoiceTemplate{}, err
	}

	tmpl, err := s.repo.FindByID(ctx, s.db, userID, templateID)
	if err != nil {
		return templatedomain.InvoiceTemplate{}, err
	}
	if tmpl == nil {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrNotFound
	}
	return *tmpl, nil
}

func (s *Service) Create(ctx context.Context, input templatedomain.TemplateInput) (templatedomain.InvoiceTemplate, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrInvalidUser
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrInvalidName
	}

	now := s.clock.Now()
	tmpl := templatedomain.InvoiceTemplate{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		Data:      normalizeData(input.Data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &tmpl); err != nil {
		return templatedomain.InvoiceTemplate{}, err
	}
	return tmpl, nil
}

func (s *Service) Update(ctx context.Context, id string, input templatedomain.TemplateInput) (templatedomain.InvoiceTemplate, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrInvalidUser
	}
	templateID, err := parseID(id)
	if err != nil {
		return templatedomain.InvoiceTemplate{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrInvalidName
	}

	tmpl := templatedomain.InvoiceTemplate{
		ID:        templateID,
		UserID:    userID,
		Name:      name,
		Data:      normalizeData(input.Data),
		UpdatedAt: s.clock.Now(),
	}
	updated, err := s.repo.Update(ctx, s.db, &tmpl)
	if err != nil {
		return templatedomain.InvoiceTemplate{}, err
	}
	if !updated {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrNotFound
	}

	stored, err := s.repo.FindByID(ctx, s.db, userID, templateID)
	if err != nil {
		return templatedomain.InvoiceTemplate{}, err
	}
	if stored == nil {
		return templatedomain.InvoiceTemplate{}, templatedomain.ErrNotFound
	}
	return *stored, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return templatedomain.ErrInvalidUser
	}
	templateID, err := parseID(id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, s.db, userID, templateID)
	if err != nil {
		return err
	}
	if !deleted {
		return templatedomain.ErrNotFound
	}
	return nil
}

func normalizeData(data map[string]any) datatypes.JSONMap {
	if data == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(data)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, templatedomain.ErrInvalidID
	}
	return id, nil
}
