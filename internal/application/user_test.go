package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/infrastructure/storage"
)

func TestUserService_Dialog(t *testing.T) {
	svc := NewUserService(storage.NewMemoryUserRepository())
	ctx := context.Background()

	user, err := svc.BeginCheck(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingScan, user.State)

	user, err = svc.StartProcessing(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, user.Busy())

	_, err = svc.BeginCheck(ctx, 1, 10)
	require.ErrorIs(t, err, entity.ErrBusy)

	require.NoError(t, svc.Finish(ctx, 1))
	user, err = svc.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestUserService_CancelFromAnyState(t *testing.T) {
	svc := NewUserService(storage.NewMemoryUserRepository())
	ctx := context.Background()

	_, err := svc.StartProcessing(ctx, 2, 20)
	require.NoError(t, err)

	user, err := svc.Cancel(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestUserService_StartProcessingOnce(t *testing.T) {
	svc := NewUserService(storage.NewMemoryUserRepository())
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.StartProcessing(ctx, 3, 30); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, started)
}
