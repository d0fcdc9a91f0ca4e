package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// sessionSubject is the JWT subject of a console session.
const sessionSubject = "ragdesk"

// secretBytes is the length of the generated signing secret.
const secretBytes = 32

// SessionService issues and checks local login sessions. A session is an
// HS256 JWT stored in the ConfigStore, signed with a per-install secret.
type SessionService struct {
	store driven.ConfigStore
	hash  []byte
	dev   bool
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionService creates a session service for password. The password
// may be plaintext or a bcrypt hash; an empty one falls back to
// domain.DevPassword.
func NewSessionService(store driven.ConfigStore, password string) (*SessionService, error) {
	return newSessionService(store, password, bcrypt.DefaultCost)
}

func newSessionService(store driven.ConfigStore, password string, cost int) (*SessionService, error) {
	s := &SessionService{store: store, ttl: domain.SessionTTL, now: time.Now}

	if password == "" || password == domain.DevPassword {
		password = domain.DevPassword
		s.dev = true
	}

	if isBcryptHash(password) {
		if _, err := bcrypt.Cost([]byte(password)); err != nil {
			return nil, fmt.Errorf("auth.password: %w", err)
		}
		s.hash = []byte(password)
		return s, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	s.hash = hash
	return s, nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// UsingDevPassword reports whether the development password is in effect.
func (s *SessionService) UsingDevPassword() bool {
	return s.dev
}

// Login checks password and stores a session valid for domain.SessionTTL.
func (s *SessionService) Login(password string) (*domain.Session, error) {
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		return nil, domain.ErrInvalidPassword
	}
	if s.dev {
		logger.Warn("logged in with the development password; set RAGDESK_PASSWORD")
	}

	secret, err := s.secret()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		Subject:   sessionSubject,
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	claims := jwt.MapClaims{
		"sub": session.Subject,
		"iat": session.IssuedAt.Unix(),
		"exp": session.ExpiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	if err := s.store.Set(domain.KeySessionToken, token); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// Logout clears the stored session.
func (s *SessionService) Logout() error {
	return s.store.Delete(domain.KeySessionToken)
}

// Invalidate clears the session and the stored API token.
func (s *SessionService) Invalidate() error {
	return errors.Join(
		s.store.Delete(domain.KeySessionToken),
		s.store.Delete(domain.KeyAPIToken),
	)
}

// Current returns the stored session if it is still valid.
func (s *SessionService) Current() (*domain.Session, error) {
	token := s.store.GetString(domain.KeySessionToken)
	if token == "" {
		return nil, fmt.Errorf("%w: not logged in", domain.ErrSessionExpired)
	}
	return s.Verify(token)
}

// Verify checks a token issued by Login.
func (s *SessionService) Verify(token string) (*domain.Session, error) {
	secret := s.store.GetString(domain.KeySessionSecret)
	if secret == "" || token == "" {
		return nil, domain.ErrSessionExpired
	}

	parsed, err := jwt.Parse(token,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(sessionSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrSessionExpired
	}

	session := &domain.Session{Subject: sessionSubject}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}
	if iat, err := parsed.Claims.GetIssuedAt(); err == nil && iat != nil {
		session.IssuedAt = iat.Time
	}
	return session, nil
}

// secret returns the signing secret, creating it on first use.
func (s *SessionService) secret() ([]byte, error) {
	if existing := s.store.GetString(domain.KeySessionSecret); existing != "" {
		return []byte(existing), nil
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := s.store.Set(domain.KeySessionSecret, secret); err != nil {
		return nil, fmt.Errorf("store session secret: %w", err)
	}
	return []byte(secret), nil
}
