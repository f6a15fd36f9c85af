package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newFake(interval time.Duration) (*MinInterval, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMinInterval(interval)
	m.now = clock.Now
	m.sleep = clock.Sleep
	return m, clock
}

func TestMinIntervalFirstCallIsFree(t *testing.T) {
	m, clock := newFake(time.Second)

	require.NoError(t, m.Wait(context.Background()))
	assert.Empty(t, clock.sleeps)
}

func TestMinIntervalSpacesConsecutiveCalls(t *testing.T) {
	m, clock := newFake(time.Second)
	ctx := context.Background()

	require.NoError(t, m.Wait(ctx))
	clock.now = clock.now.Add(300 * time.Millisecond)
	require.NoError(t, m.Wait(ctx))
	require.NoError(t, m.Wait(ctx))

	assert.Equal(t, []time.Duration{700 * time.Millisecond, time.Second}, clock.sleeps)
}

func TestMinIntervalNoSleepAfterLongGap(t *testing.T) {
	m, clock := newFake(500 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, m.Wait(ctx))
	clock.now = clock.now.Add(2 * time.Second)
	require.NoError(t, m.Wait(ctx))

	assert.Empty(t, clock.sleeps)
}

func TestMinIntervalReset(t *testing.T) {
	m, clock := newFake(time.Second)
	ctx := context.Background()

	require.NoError(t, m.Wait(ctx))
	m.Reset()
	require.NoError(t, m.Wait(ctx))

	assert.Empty(t, clock.sleeps)
}

func TestMinIntervalCancelled(t *testing.T) {
	m := NewMinInterval(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, m.Wait(ctx))
	cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.Canceled)
}

func TestNew(t *testing.T) {
	assert.IsType(t, Unlimited{}, New(0))
	l := New(time.Second)
	require.IsType(t, &MinInterval{}, l)
	assert.Equal(t, time.Second, l.(*MinInterval).interval)
}
