package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "✓ Upload complete: a.pdf uploaded.",
		Format(domain.NewNotification(domain.LevelSuccess, "Upload complete", "a.pdf uploaded.")))
	assert.Equal(t, "✗ Query failed",
		Format(domain.NewNotification(domain.LevelError, "Query failed", "")))
	assert.Equal(t, "· Odd: x",
		Format(domain.Notification{Level: "odd", Title: "Odd", Message: "x"}))
}

func TestWriter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	w.Notify(domain.NewNotification(domain.LevelSuccess, "Done", ""))
	w.Notify(domain.NewNotification(domain.LevelWarning, "Careful", "1 failed."))

	assert.Equal(t, "! Careful: 1 failed.\n", buf.String())
}

func TestChannel_DropsWhenFull(t *testing.T) {
	c := NewChannel(1)

	c.Notify(domain.NewNotification(domain.LevelInfo, "first", ""))
	c.Notify(domain.NewNotification(domain.LevelInfo, "second", ""))

	got := <-c.C()
	assert.Equal(t, "first", got.Title)
	select {
	case n := <-c.C():
		t.Fatalf("unexpected notification %q", n.Title)
	default:
	}
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewWriter(&a, false), nil, NewWriter(&b, false)}

	m.Notify(domain.NewNotification(domain.LevelError, "Boom", ""))

	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), "Boom")
}
