package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(nil, nil)

	require.NotNil(t, bar)
	assert.Nil(t, bar.Toast())
	assert.Equal(t, 80, bar.Width())
	assert.Contains(t, bar.View(), "Ready")
}

func TestBar_ShowAndExpire(t *testing.T) {
	bar := NewBar(nil, nil)

	n := domain.NewNotification(domain.LevelSuccess, "Processed", "report.pdf")
	bar, cmd := bar.Update(messages.Notify{Notification: n})

	require.NotNil(t, cmd)
	require.NotNil(t, bar.Toast())
	assert.Contains(t, bar.View(), "Processed: report.pdf")

	bar, _ = bar.Update(messages.ToastExpired{Seq: 1})
	assert.Nil(t, bar.Toast())
}

func TestBar_StaleExpiryKeepsNewerToast(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.Show(domain.NewNotification(domain.LevelInfo, "First", ""))
	bar.Show(domain.NewNotification(domain.LevelError, "Second", ""))

	bar, _ = bar.Update(messages.ToastExpired{Seq: 1})

	require.NotNil(t, bar.Toast())
	assert.Equal(t, "Second", bar.Toast().Title)
}

func TestBar_InFlight(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetInFlight(2)

	assert.Contains(t, bar.View(), "2 processing")

	bar.Show(domain.NewNotification(domain.LevelWarning, "Slow", ""))
	assert.Contains(t, bar.View(), "Slow")
	assert.NotContains(t, bar.View(), "processing")
}

func TestBar_SetBindings(t *testing.T) {
	km := keymap.DefaultKeyMap()
	bar := NewBar(nil, km)
	bar.SetWidth(200)

	bar.SetBindings(km.DocumentsHelp())
	assert.Contains(t, bar.View(), "reprocess")

	bar.SetBindings(nil)
	assert.NotContains(t, bar.View(), "reprocess")
	assert.Contains(t, bar.View(), "help")
}

func TestBar_Clear(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.Show(domain.NewNotification(domain.LevelInfo, "Hi", ""))

	bar.Clear()

	assert.Nil(t, bar.Toast())
}
