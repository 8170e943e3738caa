package slotleads_test

import (
	"context"
	"testing"
	"time"

	slotleads "github.com/phbpx/slotleads"
	"github.com/stretchr/testify/assert"
)

func TestNewPayment(t *testing.T) {
	paidAt := time.Date(2026, time.March, 3, 10, 30, 0, 0, time.UTC)

	p := slotleads.NewPayment(paidAt)

	assert.Equal(t, paidAt, p.PaidAt)
	assert.Equal(t, time.Date(2027, time.March, 3, 10, 30, 0, 0, time.UTC), p.RenewalAt)
}

func TestNewPayment_NormalizesToUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	paidAt := time.Date(2026, time.January, 1, 3, 0, 0, 0, ist)

	p := slotleads.NewPayment(paidAt)

	assert.Equal(t, time.UTC, p.PaidAt.Location())
	assert.True(t, p.PaidAt.Equal(paidAt))
	assert.Equal(t, time.Date(2026, time.December, 31, 21, 30, 0, 0, time.UTC), p.RenewalAt)
}

func TestCallerFrom(t *testing.T) {
	ctx := context.Background()
	assert.True(t, slotleads.CallerFrom(ctx).IsAnonymous())

	ctx = slotleads.WithCaller(ctx, "asha")
	assert.Equal(t, slotleads.Identity("asha"), slotleads.CallerFrom(ctx))
}
