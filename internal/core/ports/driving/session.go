package driving

import "github.com/custodia-labs/ragdesk/internal/core/domain"

// SessionService manages the local login session.
type SessionService interface {
	// Login checks the password and stores a new session.
	Login(password string) (*domain.Session, error)

	// Logout clears the stored session.
	Logout() error

	// Current returns the active session or domain.ErrSessionExpired.
	Current() (*domain.Session, error)

	// UsingDevPassword reports whether the development password is in effect.
	UsingDevPassword() bool

	// Invalidate drops the session and the stored API token after the
	// backend rejected them.
	Invalidate() error

	// Verify checks a session token issued by Login.
	Verify(token string) (*domain.Session, error)
}
