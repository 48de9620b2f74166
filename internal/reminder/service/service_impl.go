package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/reminder/domain"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Policies *config.ReminderConfigHolder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	policies *config.ReminderConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reminder.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		policies: p.Policies,
	}
}

func (s *Service) ListRules(ctx context.Context) ([]domain.Rule, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListRules(ctx, s.db, userID)
}

func (s *Service) CreateRule(ctx context.Context, input domain.RuleInput) (domain.Rule, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Rule{}, domain.ErrInvalidUser
	}

	rule, err := s.buildRule(ctx, userID, input)
	if err != nil {
		return domain.Rule{}, err
	}
	now := s.clock.Now()
	rule.ID = s.genID.Generate()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.repo.InsertRule(ctx, s.db, &rule); err != nil {
		return domain.Rule{}, err
	}
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, id string, input domain.RuleInput) (domain.Rule, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.Rule{}, domain.ErrInvalidUser
	}
	ruleID, err := parseID(id)
	if err != nil {
		return domain.Rule{}, err
	}

	rule, err := s.buildRule(ctx, userID, input)
	if err != nil {
		return domain.Rule{}, err
	}
	rule.ID = ruleID
	rule.UpdatedAt = s.clock.Now()

	updated, err := s.repo.UpdateRule(ctx, s.db, &rule)
	if err != nil {
		return domain.Rule{}, err
	}
	if !updated {
		return domain.Rule{}, domain.ErrNotFound
	}

	stored, err := s.repo.FindRule(ctx, s.db, userID, ruleID)
	if err != nil {
		return domain.Rule{}, err
	}
	if stored == nil {
		return domain.Rule{}, domain.ErrNotFound
	}
	return *stored, nil
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidUser
	}
	ruleID, err := parseID(id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeleteRule(ctx, s.db, userID, ruleID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) ListLogs(ctx context.Context, invoiceID string) ([]domain.Log, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return nil, err
	}

	owned, err := s.repo.InvoiceOwned(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, domain.ErrNotFound
	}
	return s.repo.ListLogs(ctx, s.db, id)
}

func (s *Service) buildRule(ctx context.Context, userID snowflake.ID, input domain.RuleInput) (domain.Rule, error) {
	policy := s.policies.Get()
	rule := domain.Rule{
		UserID:        userID,
		Enabled:       true,
		DaysBeforeDue: policy.DefaultDaysBeforeDue,
		DaysAfterDue:  policy.DefaultDaysAfterDue,
	}

	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}
	if input.DaysBeforeDue != nil {
		if *input.DaysBeforeDue < 0 {
			return domain.Rule{}, domain.ErrInvalidDaysBeforeDue
		}
		rule.DaysBeforeDue = *input.DaysBeforeDue
	}
	if input.DaysAfterDue != nil {
		if *input.DaysAfterDue < 0 {
			return domain.Rule{}, domain.ErrInvalidDaysAfterDue
		}
		rule.DaysAfterDue = *input.DaysAfterDue
	}

	if invoiceID, err := optionalID(input.InvoiceID); err != nil {
		return domain.Rule{}, err
	} else if invoiceID != nil {
		owned, err := s.repo.InvoiceOwned(ctx, s.db, userID, *invoiceID)
		if err != nil {
			return domain.Rule{}, err
		}
		if !owned {
			return domain.Rule{}, domain.ErrInvoiceNotFound
		}
		rule.InvoiceID = invoiceID
	}

	if clientID, err := optionalID(input.ClientID); err != nil {
		return domain.Rule{}, err
	} else if clientID != nil {
		owned, err := s.repo.ClientOwned(ctx, s.db, userID, *clientID)
		if err != nil {
			return domain.Rule{}, err
		}
		if !owned {
			return domain.Rule{}, domain.ErrClientNotFound
		}
		rule.ClientID = clientID
	}

	return rule, nil
}

func optionalID(raw *string) (*snowflake.ID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := parseID(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
