package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultAppSettings(), *settings)
	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set(domain.KeyAPIURL, "https://rag.example.com"))
	require.NoError(t, service.Set(domain.KeyPollInterval, "5s"))
	require.NoError(t, service.Set(domain.KeyAPIMaxRetries, "5"))
	require.NoError(t, service.Set(domain.KeyAPIRateLimit, "2.5"))
	require.NoError(t, service.Set(domain.KeyUploadMaxSize, "10MB"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "https://rag.example.com", settings.API.URL)
	assert.Equal(t, 5*time.Second, settings.PollInterval)
	assert.Equal(t, 5, settings.API.MaxRetries)
	assert.InDelta(t, 2.5, settings.API.RateLimit, 0.0001)
	assert.Equal(t, int64(10_000_000), settings.Upload.MaxSize)
}

func TestSettingsService_Get_InvalidStoredValuesUseDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set(domain.KeyPollInterval, "soon")
	_ = store.Set(domain.KeyAPIMaxRetries, -1)

	settings, err := NewSettingsService(store).Get()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, settings.PollInterval)
	assert.Equal(t, 3, settings.API.MaxRetries)
}

func TestSettingsService_SetValidation(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	tests := []struct {
		key   string
		value string
	}{
		{domain.KeyAPIURL, "ftp://example.com"},
		{domain.KeyAPIURL, "localhost:8000"},
		{domain.KeyAPITimeout, "0s"},
		{domain.KeyPollInterval, "often"},
		{domain.KeyAPIMaxRetries, "0"},
		{domain.KeyAPIRateLimit, "-1"},
		{domain.KeyUploadMaxSize, "lots"},
		{domain.KeyDaemonAddr, "8787"},
		{domain.KeySessionToken, "x"},
		{"nonsense", "x"},
	}
	for _, tt := range tests {
		err := service.Set(tt.key, tt.value)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%s=%s", tt.key, tt.value)
	}
}

func TestSettingsService_ValueAndUnset(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	_, ok := service.Value(domain.KeyDaemonAddr)
	assert.False(t, ok)

	require.NoError(t, service.Set(domain.KeyDaemonAddr, " 0.0.0.0:9000 "))
	v, ok := service.Value(domain.KeyDaemonAddr)
	assert.True(t, ok)
	assert.Equal(t, "0.0.0.0:9000", v)

	require.NoError(t, service.Unset(domain.KeyDaemonAddr))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8787", settings.DaemonAddr)

	assert.ErrorIs(t, service.Unset(domain.KeySessionSecret), domain.ErrInvalidInput)
}

func TestSettingsService_Keys(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	keys := service.Keys()
	assert.Equal(t, domain.UserSettableKeys, keys)
	keys[0] = "mutated"
	assert.Equal(t, domain.KeyAPIURL, domain.UserSettableKeys[0])
}
