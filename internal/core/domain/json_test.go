package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooseString(t *testing.T) {
	assert.Equal(t, "abc", LooseString(json.RawMessage(`"abc"`)))
	assert.Equal(t, "42", LooseString(json.RawMessage(`42`)))
	assert.Equal(t, "1.5", LooseString(json.RawMessage(`1.5`)))
	assert.Empty(t, LooseString(json.RawMessage(`null`)))
	assert.Empty(t, LooseString(json.RawMessage(`{"a":1}`)))
	assert.Empty(t, LooseString(nil))
}

func TestLooseNumbers(t *testing.T) {
	f, ok := LooseFloat(json.RawMessage(`"2.5"`))
	require.True(t, ok)
	assert.InDelta(t, 2.5, f, 1e-9)

	n, ok := LooseInt(json.RawMessage(`6.6`))
	require.True(t, ok)
	assert.Equal(t, 7, n)

	for _, raw := range []string{`null`, `"seven"`, `true`, `[]`, ``} {
		_, ok := LooseFloat(json.RawMessage(raw))
		assert.False(t, ok, raw)
	}
}

func TestSource_UnmarshalNumericFields(t *testing.T) {
	var s Source
	require.NoError(t, json.Unmarshal([]byte(`{"document_id":12,"chunk_id":"c-1","filename":"a.pdf","page":"4","score":0.75}`), &s))

	assert.Equal(t, Source{DocumentID: "12", ChunkID: "c-1", Filename: "a.pdf", Page: 4, Score: 0.75}, s)
}
