package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
)

func TestMemoryLockerSerializesSameDeal(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	lease, err := locker.AcquireDeal(ctx, "deal-1")
	require.NoError(t, err)

	_, err = locker.AcquireDeal(ctx, "deal-1")
	require.Error(t, err)
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	require.NoError(t, lease.Release(ctx))

	lease2, err := locker.AcquireDeal(ctx, "deal-1")
	require.NoError(t, err)
	require.NoError(t, lease2.Release(ctx))
}

func TestMemoryLockerIndependentDeals(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	leaseA, err := locker.AcquireDeal(ctx, "deal-a")
	require.NoError(t, err)
	defer leaseA.Release(ctx)

	leaseB, err := locker.AcquireDeal(ctx, "deal-b")
	require.NoError(t, err)
	require.NoError(t, leaseB.Release(ctx))
}

func TestMemoryLockerHonorsContextCancel(t *testing.T) {
	locker := NewMemoryLocker(time.Second)
	ctx := context.Background()

	lease, err := locker.AcquireDeal(ctx, "deal-1")
	require.NoError(t, err)
	defer lease.Release(ctx)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = locker.AcquireDeal(cancelled, "deal-1")
	require.ErrorIs(t, err, context.Canceled)
}
