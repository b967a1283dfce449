package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/core/domain"
	"github.com/clanforge/clan-registry/internal/core/ports"
)

// Access is the gate's answer for one user ID.
type Access struct {
	Allowed bool
	Admin   bool
}

// AuthService is the authorization gate: it answers membership questions
// against the stored authorization set and applies admin-only mutations to
// it. Every check re-reads the authorization document; staleness is bounded
// by one record store read.
type AuthService struct {
	store   ports.AuthStore
	ownerID int64
	log     zerolog.Logger
}

func NewAuthService(store ports.AuthStore, ownerID int64, log zerolog.Logger) *AuthService {
	return &AuthService{store: store, ownerID: ownerID, log: log}
}

// Check reports whether userID may use the bot and whether it holds admin
// rights. The configured owner is always allowed and always an admin.
func (s *AuthService) Check(ctx context.Context, userID int64) Access {
	if userID == s.ownerID {
		return Access{Allowed: true, Admin: true}
	}
	set := s.store.LoadAuthorization(ctx)
	return Access{
		Allowed: set.Has(userID) || set.HasAdmin(userID),
		Admin:   set.HasAdmin(userID),
	}
}

// Grant authorizes targetID. The actor must hold admin rights.
func (s *AuthService) Grant(ctx context.Context, actorID, targetID int64) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.store.SaveAuthorization(ctx, func(set *domain.AuthorizationSet) (bool, error) {
		return set.Grant(targetID), nil
	})
}

// Revoke removes targetID from both sets. The owner is never removable.
func (s *AuthService) Revoke(ctx context.Context, actorID, targetID int64) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if targetID == s.ownerID {
		return domain.ErrOwnerProtected
	}
	return s.store.SaveAuthorization(ctx, func(set *domain.AuthorizationSet) (bool, error) {
		return set.Revoke(targetID), nil
	})
}

// Promote grants targetID admin rights (authorizing it when needed).
func (s *AuthService) Promote(ctx context.Context, actorID, targetID int64) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if targetID == s.ownerID {
		// implicit admin already, nothing to persist
		return nil
	}
	return s.store.SaveAuthorization(ctx, func(set *domain.AuthorizationSet) (bool, error) {
		return set.Promote(targetID), nil
	})
}

// Demote removes targetID's admin rights, keeping membership. The owner's
// implicit admin rights cannot be demoted.
func (s *AuthService) Demote(ctx context.Context, actorID, targetID int64) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if targetID == s.ownerID {
		return domain.ErrOwnerProtected
	}
	return s.store.SaveAuthorization(ctx, func(set *domain.AuthorizationSet) (bool, error) {
		return set.Demote(targetID), nil
	})
}

func (s *AuthService) requireAdmin(ctx context.Context, actorID int64) error {
	if access := s.Check(ctx, actorID); !access.Admin {
		s.log.Warn().Int64("actor", actorID).Msg("authorization mutation denied")
		return domain.ErrAccessDenied
	}
	return nil
}
