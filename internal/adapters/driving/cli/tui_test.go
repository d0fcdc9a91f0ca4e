package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui"
)

func TestTUICmd_Use(t *testing.T) {
	assert.Equal(t, "tui", tuiCmd.Use)
}

func TestNewTUIPorts(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	ports := newTUIPorts()

	require.NoError(t, ports.Validate())
	assert.Equal(t, mocks.poller, ports.Poller)
	assert.Equal(t, mocks.settings, ports.Settings)
}

func TestTUICmd_MissingServices(t *testing.T) {
	SetServices(&Services{})

	_, err := executeCommand("", "tui")

	require.Error(t, err)
	assert.ErrorIs(t, err, tui.ErrInvalidPorts)
}
