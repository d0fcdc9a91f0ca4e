package domain

import "time"

// Level is the severity of a user notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is a short user-facing message (a toast).
type Notification struct {
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotification creates a notification stamped with the current time.
func NewNotification(level Level, title, message string) Notification {
	return Notification{Level: level, Title: title, Message: message, CreatedAt: time.Now()}
}
