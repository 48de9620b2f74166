package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	statusPaid             = "paid"
	paymentStatusCompleted = "completed"
)

var ErrInvalidInvoice = errors.New("invalid_invoice")

var Module = fx.Module("balance.service",
	fx.Provide(New),
)

// Balance is the cached settlement view of one invoice. It is always rebuildable from
// the invoice total and its completed payments.
type Balance struct {
	InvoiceID snowflake.ID    `gorm:"primaryKey" json:"invoiceId"`
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Reconciler keeps invoice_balances in step with payments.
type Reconciler interface {
	// SyncBalance recomputes and stores the balance. It returns nil without error when
	// the invoice does not exist.
	SyncBalance(ctx context.Context, invoiceID snowflake.ID) (*Balance, error)
	// GetBalance returns the cached row, computing it on first read.
	GetBalance(ctx context.Context, invoiceID snowflake.ID) (*Balance, error)
	// Invalidate drops the cached row inside tx so the next read recomputes it.
	Invalidate(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) error
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) Reconciler {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("balance.service"),
		clock: p.Clock,
	}
}

type invoiceRow struct {
	ID       snowflake.ID
	Currency string
	Status   string
	Total    decimal.Decimal
}

type paidRow struct {
	Paid decimal.Decimal
}

func (s *Service) SyncBalance(ctx context.Context, invoiceID snowflake.ID) (*Balance, error) {
	if invoiceID == 0 {
		return nil, ErrInvalidInvoice
	}

	var result *Balance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv invoiceRow
		if err := tx.Raw(
			`SELECT id, currency, status, total FROM invoices WHERE id = ?`,
			invoiceID,
		).Scan(&inv).Error; err != nil {
			return err
		}
		if inv.ID == 0 {
			return nil
		}

		var paid paidRow
		if err := tx.Raw(
			`SELECT COALESCE(SUM(amount), 0) AS paid FROM payments WHERE invoice_id = ? AND status = ?`,
			invoiceID,
			paymentStatusCompleted,
		).Scan(&paid).Error; err != nil {
			return err
		}

		now := s.clock.Now()
		bal := Balance{
			InvoiceID: invoiceID,
			Currency:  inv.Currency,
			Total:     inv.Total.Round(2),
			Paid:      paid.Paid.Round(2),
			UpdatedAt: now,
		}
		bal.Balance = bal.Total.Sub(bal.Paid).Round(2)

		if err := tx.Exec(
			`INSERT INTO invoice_balances (invoice_id, currency, total, paid, balance, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (invoice_id) DO UPDATE
			 SET currency = excluded.currency,
			     total = excluded.total,
			     paid = excluded.paid,
			     balance = excluded.balance,
			     updated_at = excluded.updated_at`,
			bal.InvoiceID,
			bal.Currency,
			bal.Total,
			bal.Paid,
			bal.Balance,
			bal.UpdatedAt,
		).Error; err != nil {
			return fmt.Errorf("upsert invoice balance: %w", err)
		}

		if bal.Balance.LessThanOrEqual(decimal.Zero) && inv.Status != statusPaid {
			if err := tx.Exec(
				`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
				statusPaid,
				now,
				invoiceID,
				statusPaid,
			).Error; err != nil {
				return fmt.Errorf("mark invoice paid: %w", err)
			}
			s.log.Info("invoice settled",
				zap.String("invoice_id", invoiceID.String()),
				zap.String("previous_status", inv.Status),
			)
		}

		result = &bal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) GetBalance(ctx context.Context, invoiceID snowflake.ID) (*Balance, error) {
	if invoiceID == 0 {
		return nil, ErrInvalidInvoice
	}

	var cached Balance
	if err := s.db.WithContext(ctx).Raw(
		`SELECT invoice_id, currency, total, paid, balance, updated_at
		 FROM invoice_balances WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&cached).Error; err != nil {
		return nil, err
	}
	if cached.InvoiceID != 0 {
		return &cached, nil
	}
	return s.SyncBalance(ctx, invoiceID)
}

func (s *Service) Invalidate(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) error {
	if tx == nil {
		tx = s.db
	}
	return tx.WithContext(ctx).Exec(`DELETE FROM invoice_balances WHERE invoice_id = ?`, invoiceID).Error
}
