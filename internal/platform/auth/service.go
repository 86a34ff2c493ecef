package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/leap/qmapi/internal/platform/telemetry"
	"github.com/leap/qmapi/pkg/apperrors"
)

// InvalidCredentials is the only message a failed login ever gets.
const InvalidCredentials = "Invalid username or password"

type Options struct {
	TTL        time.Duration
	LoginDelay time.Duration
}

type Service struct {
	users   *Directory
	store   Store
	tokens  *TokenSigner
	ttl     time.Duration
	delay   time.Duration
	now     func() time.Time
	metrics *telemetry.Metrics
}

func NewService(users *Directory, store Store, tokens *TokenSigner, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	return &Service{
		users:  users,
		store:  store,
		tokens: tokens,
		ttl:    opts.TTL,
		delay:  opts.LoginDelay,
		now:    time.Now,
	}
}

func (s *Service) SetMetrics(m *telemetry.Metrics) { s.metrics = m }

// Login checks the credentials after the configured delay. An active session
// of the same user is extended and reused. It returns the session and the
// token to place in the cookie.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, "", err
	}
	if !s.users.Verify(username, password) {
		s.metrics.ObserveLogin("failure")
		zerolog.Ctx(ctx).Info().Str("username", username).Msg("login rejected")
		return nil, "", apperrors.NewUnauthorizedError(InvalidCredentials)
	}

	now := s.now()
	sess, err := s.store.FindByUser(ctx, username)
	switch {
	case err == nil:
		sess.LastLogin = now
		sess.ExpiresAt = now.Add(s.ttl)
	case errors.Is(err, ErrSessionNotFound):
		id, err := newSessionID()
		if err != nil {
			return nil, "", apperrors.NewInternalError("failed to create session", err)
		}
		sess = &Session{ID: id, Username: username, CreatedAt: now, LastLogin: now, ExpiresAt: now.Add(s.ttl)}
	default:
		return nil, "", apperrors.NewDataAccessError("failed to load session", err)
	}

	if err := s.store.Save(ctx, *sess); err != nil {
		return nil, "", apperrors.NewDataAccessError("failed to store session", err)
	}
	token, err := s.tokens.Sign(sess)
	if err != nil {
		return nil, "", apperrors.NewInternalError("failed to sign session", err)
	}
	s.metrics.ObserveLogin("success")
	return sess, token, nil
}

// Logout revokes the session behind token, if any. Unknown or malformed
// tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.store.Delete(ctx, claims.ID); err != nil {
		return apperrors.NewDataAccessError("failed to delete session", err)
	}
	return nil
}

// Resolve maps a cookie token to its live session.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid session token")
	}
	sess, err := s.store.Get(ctx, claims.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, apperrors.NewUnauthorizedError("session expired")
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to load session", err)
	}
	if sess.Username != claims.Subject {
		return nil, apperrors.NewUnauthorizedError("invalid session token")
	}
	return sess, nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
