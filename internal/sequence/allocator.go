package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidUser = errors.New("invalid_user")

var Module = fx.Module("sequence.allocator",
	fx.Provide(New),
)

// Allocator hands out per-user invoice numbers.
type Allocator interface {
	// Allocate consumes the next number. Pass the caller's transaction so the increment
	// rolls back together with the invoice insert.
	Allocate(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (string, error)
	// Peek previews the number Allocate would return next without consuming it.
	Peek(ctx context.Context, userID snowflake.ID) (string, error)
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	metrics  *metrics.Metrics
	template string
}

func New(p Params) Allocator {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("sequence.allocator"),
		clock:    p.Clock,
		metrics:  p.Metrics,
		template: DefaultTemplate,
	}
}

type counterRow struct {
	CurrentNumber int64
}

// The increment and the read of the new value happen in one upsert statement so two
// concurrent allocations for the same user can never observe the same value.
const allocateSQL = `INSERT INTO invoice_counters (user_id, current_number, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (user_id) DO UPDATE
SET current_number = invoice_counters.current_number + 1, updated_at = excluded.updated_at
RETURNING current_number`

func (s *Service) Allocate(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (string, error) {
	if userID == 0 {
		return "", ErrInvalidUser
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()
	var row counterRow
	if err := tx.WithContext(ctx).Raw(allocateSQL, userID, now).Scan(&row).Error; err != nil {
		return "", fmt.Errorf("allocate invoice number: %w", err)
	}
	if row.CurrentNumber <= 0 {
		return "", fmt.Errorf("allocate invoice number: counter returned %d", row.CurrentNumber)
	}

	s.metrics.RecordSequenceAllocation(ctx)
	return FormatNumber(s.template, now, row.CurrentNumber)
}

func (s *Service) Peek(ctx context.Context, userID snowflake.ID) (string, error) {
	if userID == 0 {
		return "", ErrInvalidUser
	}

	var row counterRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT current_number FROM invoice_counters WHERE user_id = ?`,
		userID,
	).Scan(&row).Error
	if err != nil {
		return "", err
	}
	return FormatNumber(s.template, s.clock.Now(), row.CurrentNumber+1)
}
