package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leap/qmapi/pkg/apperrors"
)

type failingStore struct{ *MemoryStore }

func (failingStore) FindByUser(context.Context, string) (*Session, error) {
	return nil, errors.New("redis: connection refused")
}

func newTestService(t *testing.T, now *time.Time) (*Service, *MemoryStore) {
	t.Helper()
	users, err := ParseUsers([]string{"user@aco.org:password", "user@payer.org:password"})
	if err != nil {
		t.Fatalf("parse users: %v", err)
	}
	store := newClockedStore(now)
	svc := NewService(users, store, newTestSigner(t, now), Options{TTL: time.Hour})
	svc.now = func() time.Time { return *now }
	return svc, store
}

func TestService_LoginAndResolve(t *testing.T) {
	now := epoch
	svc, _ := newTestService(t, &now)
	ctx := context.Background()

	sess, token, err := svc.Login(ctx, "user@aco.org", "password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(sess.ID) != 64 {
		t.Errorf("expected 32 byte hex session id, got %q", sess.ID)
	}
	if !sess.LastLogin.Equal(epoch) {
		t.Errorf("expected lastLogin %v, got %v", epoch, sess.LastLogin)
	}

	resolved, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Username != "user@aco.org" {
		t.Errorf("unexpected user %s", resolved.Username)
	}
}

func TestService_LoginFailuresShareMessage(t *testing.T) {
	now := epoch
	svc, store := newTestService(t, &now)

	for _, creds := range [][2]string{{"user@aco.org", "nope"}, {"ghost@aco.org", "password"}, {"", ""}} {
		_, _, err := svc.Login(context.Background(), creds[0], creds[1])
		if !apperrors.IsUnauthorized(err) {
			t.Fatalf("%v: expected unauthorized, got %v", creds, err)
		}
		if msg := apperrors.Message(err); msg != InvalidCredentials {
			t.Errorf("%v: expected %q, got %q", creds, InvalidCredentials, msg)
		}
	}
	if store.Len() != 0 {
		t.Error("failed logins must not create sessions")
	}
}

func TestService_ReloginReusesSession(t *testing.T) {
	now := epoch
	svc, store := newTestService(t, &now)
	ctx := context.Background()

	first, _, _ := svc.Login(ctx, "user@aco.org", "password")
	now = epoch.Add(10 * time.Minute)
	second, _, err := svc.Login(ctx, "user@aco.org", "password")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if first.ID != second.ID {
		t.Error("expected the active session to be reused")
	}
	if !second.LastLogin.Equal(now) || !second.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expected refreshed lastLogin and expiry, got %v / %v", second.LastLogin, second.ExpiresAt)
	}
	if store.Len() != 1 {
		t.Errorf("expected one session, got %d", store.Len())
	}
}

func TestService_Logout(t *testing.T) {
	now := epoch
	svc, store := newTestService(t, &now)
	ctx := context.Background()

	_, token, _ := svc.Login(ctx, "user@aco.org", "password")
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected session to be revoked")
	}
	if _, err := svc.Resolve(ctx, token); !apperrors.IsUnauthorized(err) {
		t.Errorf("expected revoked token to be unauthorized, got %v", err)
	}

	if err := svc.Logout(ctx, ""); err != nil {
		t.Errorf("logout without cookie should succeed: %v", err)
	}
	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Errorf("logout with a bad cookie should succeed: %v", err)
	}
}

func TestService_ResolveExpired(t *testing.T) {
	now := epoch
	svc, _ := newTestService(t, &now)

	_, token, _ := svc.Login(context.Background(), "user@payer.org", "password")
	now = epoch.Add(2 * time.Hour)

	if _, err := svc.Resolve(context.Background(), token); !apperrors.IsUnauthorized(err) {
		t.Errorf("expected expired session to be unauthorized, got %v", err)
	}
}

func TestService_LoginDelayHonoursContext(t *testing.T) {
	now := epoch
	svc, _ := newTestService(t, &now)
	svc.delay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := svc.Login(ctx, "user@aco.org", "password")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("login delay ignored the context")
	}
}

func TestService_LoginDelayApplied(t *testing.T) {
	now := epoch
	svc, _ := newTestService(t, &now)
	svc.delay = 30 * time.Millisecond

	start := time.Now()
	_, _, _ = svc.Login(context.Background(), "user@aco.org", "wrong")
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected at least 30ms delay, got %v", elapsed)
	}
}

func TestService_StoreFailure(t *testing.T) {
	now := epoch
	users, _ := ParseUsers([]string{"ann:pw"})
	signer := newTestSigner(t, &now)
	svc := NewService(users, failingStore{NewMemoryStore()}, signer, Options{TTL: time.Hour})

	_, _, err := svc.Login(context.Background(), "ann", "pw")
	if !apperrors.IsDataAccess(err) {
		t.Errorf("expected data access error, got %v", err)
	}
}
