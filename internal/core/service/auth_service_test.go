package service

import (
	"context"
	"errors"
	"testing"

	"github.com/clanforge/clan-registry/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub auth store
// ---------------------------------------------------------------------------

type stubAuthStore struct {
	set     domain.AuthorizationSet
	saveErr error
	saves   int
}

func (s *stubAuthStore) LoadAuthorization(_ context.Context) domain.AuthorizationSet {
	return s.set
}

func (s *stubAuthStore) SaveAuthorization(_ context.Context, mutate func(*domain.AuthorizationSet) (bool, error)) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	changed, err := mutate(&s.set)
	if err != nil {
		return err
	}
	if changed {
		s.saves++
	}
	return nil
}

const testOwnerID int64 = 1000

func newTestGate(store *stubAuthStore) *AuthService {
	return NewAuthService(store, testOwnerID, discardLogger)
}

// ---------------------------------------------------------------------------
// Check
// ---------------------------------------------------------------------------

func TestAuthService_Check_OwnerAlwaysAdmin(t *testing.T) {
	gate := newTestGate(&stubAuthStore{})

	access := gate.Check(context.Background(), testOwnerID)
	if !access.Allowed || !access.Admin {
		t.Errorf("owner access = %+v, want allowed admin", access)
	}
}

func TestAuthService_Check_StrangerDenied(t *testing.T) {
	gate := newTestGate(&stubAuthStore{})

	access := gate.Check(context.Background(), 555)
	if access.Allowed || access.Admin {
		t.Errorf("stranger access = %+v, want denied", access)
	}
}

func TestAuthService_Check_MemberAndAdmin(t *testing.T) {
	store := &stubAuthStore{}
	store.set.Grant(10)
	store.set.Promote(20)
	gate := newTestGate(store)
	ctx := context.Background()

	member := gate.Check(ctx, 10)
	if !member.Allowed || member.Admin {
		t.Errorf("member access = %+v, want allowed non-admin", member)
	}
	admin := gate.Check(ctx, 20)
	if !admin.Allowed || !admin.Admin {
		t.Errorf("admin access = %+v, want allowed admin", admin)
	}
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func TestAuthService_Grant_RequiresAdmin(t *testing.T) {
	store := &stubAuthStore{}
	store.set.Grant(10) // member, not admin
	gate := newTestGate(store)
	ctx := context.Background()

	if err := gate.Grant(ctx, 10, 99); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for non-admin actor, got %v", err)
	}
	if store.set.Has(99) {
		t.Error("denied grant must not change the set")
	}

	if err := gate.Grant(ctx, testOwnerID, 99); err != nil {
		t.Fatalf("owner grant failed: %v", err)
	}
	if !store.set.Has(99) {
		t.Error("granted ID missing")
	}
}

func TestAuthService_Revoke_OwnerProtected(t *testing.T) {
	gate := newTestGate(&stubAuthStore{})

	err := gate.Revoke(context.Background(), testOwnerID, testOwnerID)
	if !errors.Is(err, domain.ErrOwnerProtected) {
		t.Fatalf("expected ErrOwnerProtected, got %v", err)
	}
}

func TestAuthService_Revoke_RemovesBothRoles(t *testing.T) {
	store := &stubAuthStore{}
	store.set.Promote(30)
	gate := newTestGate(store)

	if err := gate.Revoke(context.Background(), testOwnerID, 30); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.set.Has(30) || store.set.HasAdmin(30) {
		t.Error("revoked ID kept a role")
	}
}

func TestAuthService_Promote_OwnerIsNoOp(t *testing.T) {
	store := &stubAuthStore{}
	gate := newTestGate(store)

	if err := gate.Promote(context.Background(), testOwnerID, testOwnerID); err != nil {
		t.Fatalf("promoting the owner should be a clean no-op, got %v", err)
	}
	if store.saves != 0 {
		t.Error("owner promotion must not persist anything")
	}
}

func TestAuthService_Demote_OwnerProtected(t *testing.T) {
	gate := newTestGate(&stubAuthStore{})

	err := gate.Demote(context.Background(), testOwnerID, testOwnerID)
	if !errors.Is(err, domain.ErrOwnerProtected) {
		t.Fatalf("expected ErrOwnerProtected, got %v", err)
	}
}

func TestAuthService_Demote_KeepsMembership(t *testing.T) {
	store := &stubAuthStore{}
	store.set.Promote(30)
	gate := newTestGate(store)

	if err := gate.Demote(context.Background(), testOwnerID, 30); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if store.set.HasAdmin(30) {
		t.Error("demoted ID still admin")
	}
	if !store.set.Has(30) {
		t.Error("demotion must keep membership")
	}
}
