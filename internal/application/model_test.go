package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModelManager_LoadSucceedsOnKthAttempt(t *testing.T) {
	for k := 1; k <= 3; k++ {
		provider := newFakeProvider("")
		provider.failures = k - 1

		m := NewModelManager(provider, ModelConfig{ModelID: "medgemma"}, discardLogger())
		require.NoError(t, m.Load(context.Background(), 3))
		require.True(t, m.Loaded())
		require.Equal(t, int32(k), provider.baseCalls.Load())
		require.Equal(t, "cuda:0", m.Handle().Device)
	}
}

func TestModelManager_LoadFailsAfterExactlyNAttempts(t *testing.T) {
	provider := newFakeProvider("")
	provider.failures = 100

	m := NewModelManager(provider, ModelConfig{ModelID: "medgemma"}, discardLogger())
	err := m.Load(context.Background(), 3)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrModelInit)
	require.Contains(t, err.Error(), "weights not reachable")

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	require.Equal(t, 3, loadErr.Attempts)
	require.Equal(t, int32(3), provider.baseCalls.Load())
	require.False(t, m.Loaded())
}

func TestModelManager_FailedReloadDropsPreviousModel(t *testing.T) {
	provider := newFakeProvider("")
	m := loadedManager(provider)
	require.True(t, m.Loaded())

	provider.failures = 1 << 30
	require.ErrorIs(t, m.Load(context.Background(), 2), ErrModelInit)
	require.False(t, m.Loaded())
	require.Nil(t, m.Handle())
	require.True(t, provider.model.closed.Load())
	require.Equal(t, int32(0), provider.cacheCalls.Load())
}

func TestModelManager_LoadUsesDefaultRetries(t *testing.T) {
	provider := newFakeProvider("")
	provider.failures = 100

	m := NewModelManager(provider, ModelConfig{ModelID: "medgemma", DefaultRetries: 2}, discardLogger())
	require.Error(t, m.Load(context.Background(), 0))
	require.Equal(t, int32(2), provider.baseCalls.Load())
}

func TestModelManager_AdapterFailureClosesBase(t *testing.T) {
	provider := newFakeProvider("")
	provider.adapterErr = errors.New("adapter missing")

	m := NewModelManager(provider, ModelConfig{ModelID: "medgemma"}, discardLogger())
	require.Error(t, m.Load(context.Background(), 1))
	require.True(t, provider.model.closed.Load())
	require.False(t, m.Loaded())
}

func TestModelManager_UnloadIsIdempotent(t *testing.T) {
	provider := newFakeProvider("")
	provider.accelerator = true
	m := loadedManager(provider)

	m.Unload(context.Background())
	require.False(t, m.Loaded())
	require.Nil(t, m.Handle())
	require.True(t, provider.model.closed.Load())
	require.Equal(t, int32(1), provider.cacheCalls.Load())

	m.Unload(context.Background())
	require.False(t, m.Loaded())
	require.Equal(t, int32(2), provider.cacheCalls.Load())
}

func TestModelManager_UnloadWithoutAccelerator(t *testing.T) {
	provider := newFakeProvider("")
	m := NewModelManager(provider, ModelConfig{ModelID: "medgemma"}, discardLogger())

	m.Unload(context.Background())
	require.Equal(t, int32(0), provider.cacheCalls.Load())
}

func TestModelManager_AdapterDefaultsToModelID(t *testing.T) {
	m := NewModelManager(newFakeProvider(""), ModelConfig{ModelID: "medgemma"}, nil)
	require.Equal(t, "medgemma", m.cfg.AdapterID)
	require.Equal(t, "medgemma", m.ModelID())
}
