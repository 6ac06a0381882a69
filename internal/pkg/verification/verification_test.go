package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meetloom/billing-sync/internal/pkg/adminapi"
	"github.com/meetloom/billing-sync/internal/pkg/tokenstore"
)

type fakeAdmin struct {
	mu    sync.Mutex
	calls int
	last  string
	err   error
}

func (f *fakeAdmin) FindOrCreateUser(ctx context.Context, email, name string) (*adminapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = email
	if f.err != nil {
		return nil, f.err
	}
	return &adminapi.User{ID: 1, Email: email, Name: name}, nil
}

func TestVerifyLifecycle(t *testing.T) {
	admin := &fakeAdmin{}
	var mailedTo string
	svc := NewService(tokenstore.New(nil), admin, func(to, name string) error {
		mailedTo = to
		return nil
	})
	ctx := context.Background()

	token, err := svc.CreateToken(ctx, TokenData{Email: "ops@acme.test", Company: "Acme"})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a token")
	}

	if got := svc.Verify(ctx, token); got != ResultSuccess {
		t.Fatalf("Verify = %v, want success", got)
	}
	if admin.calls != 1 || admin.last != "ops@acme.test" {
		t.Fatalf("expected one admin provisioning call, got %d for %q", admin.calls, admin.last)
	}
	if mailedTo != "ops@acme.test" {
		t.Fatalf("expected welcome mail to ops@acme.test, got %q", mailedTo)
	}

	// The token is single-use: it was deleted on success.
	if got := svc.Verify(ctx, token); got != ResultFailed {
		t.Fatalf("second Verify = %v, want failed", got)
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	svc := NewService(tokenstore.New(nil), &fakeAdmin{}, nil)
	if got := svc.Verify(context.Background(), "nope"); got != ResultFailed {
		t.Fatalf("Verify = %v, want failed", got)
	}
	if got := svc.Verify(context.Background(), ""); got != ResultFailed {
		t.Fatalf("Verify(empty) = %v, want failed", got)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	admin := &fakeAdmin{}
	store := tokenstore.New(nil)
	svc := NewService(store, admin, nil)
	ctx := context.Background()

	now := time.Now()
	svc.now = func() time.Time { return now }

	token, err := svc.CreateToken(ctx, TokenData{Email: "ops@acme.test"})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	// Past the 24h window the attempt reports expired, not failed, and the
	// token is purged.
	now = now.Add(25 * time.Hour)
	if got := svc.Verify(ctx, token); got != ResultExpired {
		t.Fatalf("Verify = %v, want expired", got)
	}
	if got := svc.Verify(ctx, token); got != ResultFailed {
		t.Fatalf("Verify after purge = %v, want failed", got)
	}
	if admin.calls != 0 {
		t.Fatalf("expired verification must not provision users, got %d calls", admin.calls)
	}
}

func TestVerifySucceedsDespiteAdminOutage(t *testing.T) {
	admin := &fakeAdmin{err: adminapi.ErrCircuitOpen}
	svc := NewService(tokenstore.New(nil), admin, nil)
	ctx := context.Background()

	token, err := svc.CreateToken(ctx, TokenData{Email: "ops@acme.test"})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if got := svc.Verify(ctx, token); got != ResultSuccess {
		t.Fatalf("Verify = %v, want success even with admin API down", got)
	}
}

func TestCreateTokenRequiresEmail(t *testing.T) {
	svc := NewService(tokenstore.New(nil), &fakeAdmin{}, nil)
	if _, err := svc.CreateToken(context.Background(), TokenData{}); !errors.Is(err, errEmailRequired) {
		t.Fatalf("expected errEmailRequired, got %v", err)
	}
}
