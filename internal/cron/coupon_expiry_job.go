package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/internal/coupons"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
	"github.com/hasanarpat/memento-mori/pkg/outbox/payloads"
)

const (
	CouponExpiryJobName      = "coupon_expiry"
	defaultCouponExpiryBatch = 200
)

type CouponExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Coupons   coupons.Repository
	Outbox    outboxOnceEmitter
	BatchSize int
}

type outboxOnceEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NewCouponExpiryJob builds the job that deactivates coupons whose
// valid_until has passed and records a coupon_expired event for each.
func NewCouponExpiryJob(params CouponExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCouponExpiryBatch
	}
	return &couponExpiryJob{
		logg:    params.Logger,
		db:      params.DB,
		coupons: params.Coupons,
		outbox:  params.Outbox,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type couponExpiryJob struct {
	logg    *logger.Logger
	db      txRunner
	coupons coupons.Repository
	outbox  outboxOnceEmitter
	batch   int
	now     func() time.Time
}

func (j *couponExpiryJob) Name() string { return CouponExpiryJobName }

func (j *couponExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.coupons.ListExpiredActive(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("list expired coupons: %w", err)
	}
	var errs error
	deactivated := 0
	for _, coupon := range expired {
		ok, err := j.expire(ctx, coupon)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire coupon %s: %w", coupon.Code, err))
			continue
		}
		if ok {
			deactivated++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates":  len(expired),
		"deactivated": deactivated,
	})
	j.logg.Info(logCtx, "cron.coupon_expiry.complete")
	return errs
}

func (j *couponExpiryJob) expire(ctx context.Context, coupon models.Coupon) (bool, error) {
	var changed bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := j.coupons.WithTx(tx).Deactivate(ctx, coupon.ID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		changed = true
		var validUntil time.Time
		if coupon.ValidUntil != nil {
			validUntil = coupon.ValidUntil.UTC()
		}
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCouponExpired,
			AggregateType: enums.AggregateCoupon,
			AggregateID:   coupon.ID,
			Data: payloads.CouponExpiredEvent{
				CouponID:   coupon.ID,
				Code:       coupon.Code,
				ValidUntil: validUntil,
			},
		})
	})
	return changed, err
}
