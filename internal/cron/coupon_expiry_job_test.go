package cron

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasanarpat/memento-mori/internal/coupons"
	"github.com/hasanarpat/memento-mori/pkg/db"
	"github.com/hasanarpat/memento-mori/pkg/db/dbtest"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
)

func TestCouponExpiryJobDeactivatesPastCoupons(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	mk := func(code string, until *time.Time) *models.Coupon {
		c := &models.Coupon{Code: code, DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5), ValidUntil: until, Active: true}
		dbtest.MustCreate(t, conn, c)
		return c
	}
	expired := mk("HALLOWEEN", &past)
	mk("SAMHAIN", &future)
	mk("FOREVER", nil)

	jobIface, err := NewCouponExpiryJob(CouponExpiryJobParams{
		Logger:  logger.Nop(),
		DB:      db.FromConn(conn),
		Coupons: coupons.NewRepository(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
	})
	require.NoError(t, err)
	job := jobIface.(*couponExpiryJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	var active []models.Coupon
	require.NoError(t, conn.Where("active = ?", true).Order("code").Find(&active).Error)
	require.Len(t, active, 2)
	assert.Equal(t, "FOREVER", active[0].Code)
	assert.Equal(t, "SAMHAIN", active[1].Code)

	var events []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", enums.EventCouponExpired).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, expired.ID, events[0].AggregateID)
}
