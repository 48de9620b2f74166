package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/reminder/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type LedgerParams struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Repo  domain.Repository
}

type LogLedger struct {
	db    *gorm.DB
	genID *snowflake.Node
	repo  domain.Repository
}

func NewLedger(p LedgerParams) domain.Ledger {
	return &LogLedger{db: p.DB, genID: p.GenID, repo: p.Repo}
}

func (l *LogLedger) AlreadySent(ctx context.Context, invoiceID snowflake.ID, reminderType domain.ReminderType, scheduledFor time.Time) (bool, error) {
	count, err := l.repo.CountSent(ctx, l.db, invoiceID, reminderType, scheduledFor)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Append assigns an id when missing and stores the row.
func (l *LogLedger) Append(ctx context.Context, entry domain.Log) (domain.Log, error) {
	if entry.ID == 0 {
		entry.ID = l.genID.Generate()
	}
	if err := l.repo.InsertLog(ctx, l.db, &entry); err != nil {
		return domain.Log{}, err
	}
	return entry, nil
}
