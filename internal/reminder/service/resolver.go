package service

import (
	"context"

	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/reminder/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	DB       *gorm.DB
	Repo     domain.Repository
	Policies *config.ReminderConfigHolder `optional:"true"`
}

type RuleResolver struct {
	db       *gorm.DB
	repo     domain.Repository
	policies *config.ReminderConfigHolder
}

func NewResolver(p ResolverParams) domain.Resolver {
	return &RuleResolver{db: p.DB, repo: p.Repo, policies: p.Policies}
}

// Resolve returns the best enabled rule, or the configured default with a nil ID.
func (r *RuleResolver) Resolve(ctx context.Context, invoice domain.InvoiceRef) (domain.ResolvedRule, error) {
	rule, err := r.repo.BestRule(ctx, r.db, invoice)
	if err != nil {
		return domain.ResolvedRule{}, err
	}
	if rule == nil {
		policy := r.policies.Get()
		return domain.ResolvedRule{
			DaysBeforeDue: policy.DefaultDaysBeforeDue,
			DaysAfterDue:  policy.DefaultDaysAfterDue,
		}, nil
	}
	id := rule.ID
	return domain.ResolvedRule{
		ID:            &id,
		DaysBeforeDue: rule.DaysBeforeDue,
		DaysAfterDue:  rule.DaysAfterDue,
	}, nil
}
