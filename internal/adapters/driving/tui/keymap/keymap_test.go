package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("q", km.Quit))
	assert.True(t, Matches("ctrl+c", km.Quit))
	assert.True(t, Matches("?", km.Help))
	assert.True(t, Matches("esc", km.Back))
	assert.True(t, Matches("k", km.Up))
	assert.True(t, Matches("j", km.Down))
	assert.True(t, Matches("p", km.Process))
	assert.True(t, Matches("R", km.Reprocess))
	assert.True(t, Matches("delete", km.Delete))
	assert.True(t, Matches("Y", km.Confirm))
	assert.True(t, Matches("esc", km.Deny))
}

func TestMatches_IsCaseSensitive(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("r", km.Refresh))
	assert.False(t, Matches("r", km.Reprocess))
	assert.False(t, Matches("", km.Refresh))
}

func TestHelpGroups(t *testing.T) {
	km := DefaultKeyMap()

	assert.Len(t, km.ShortHelp(), 2)
	assert.Contains(t, km.DocumentsHelp(), km.Process)
	assert.NotEmpty(t, km.FullHelp())
	for _, group := range km.FullHelp() {
		assert.NotEmpty(t, group)
	}
}
