package ports

import (
	"context"

	"github.com/clanforge/clan-registry/internal/core/domain"
)

// MemberTotals summarizes one member's registered accounts.
type MemberTotals struct {
	Accounts int
	Attack   int64
	Defense  int64
}

// UpsertAccountInput carries a commit from the conversation flow or a one-shot
// command.
type UpsertAccountInput struct {
	MemberID    string
	DisplayName string // chat platform name, refreshed on every write
	Account     domain.Account
}

// UpsertAccountResult reports whether the account was created or replaced and
// the member's totals after the write.
type UpsertAccountResult struct {
	Outcome domain.UpsertOutcome
	Totals  MemberTotals
}

// RecordStore is the durable mapping from member ID to MemberRecord.
type RecordStore interface {
	// LoadAll fetches and parses the records document. A missing document,
	// transport failure, or parse failure yields an empty map (logged);
	// reads never fail the caller.
	LoadAll(ctx context.Context) domain.ClanData
	// Member returns one member's record, or nil when absent.
	Member(ctx context.Context, memberID string) *domain.MemberRecord
	// UpsertAccount replaces the case-insensitive username match in place
	// (position preserved) or appends, creating the member record when
	// absent, then persists with retry.
	UpsertAccount(ctx context.Context, in UpsertAccountInput) (*UpsertAccountResult, error)
	// DeleteAccount removes the first case-insensitive match and reports
	// whether a removal occurred. Absent member or username is a clean
	// false, and nothing is written.
	DeleteAccount(ctx context.Context, memberID, username string) (bool, error)
	// DeleteMember removes the whole record and revokes the member's
	// authorization. Always rejected for the configured owner.
	DeleteMember(ctx context.Context, memberID string) (bool, error)
}

// AuthStore persists the authorization set.
type AuthStore interface {
	// LoadAuthorization reads the authorization document, degrading to an
	// empty set on any failure.
	LoadAuthorization(ctx context.Context) domain.AuthorizationSet
	// SaveAuthorization runs mutate against the current set inside the
	// read-merge-write cycle and persists the result with retry. A mutate
	// that changes nothing skips the write.
	SaveAuthorization(ctx context.Context, mutate func(*domain.AuthorizationSet) (changed bool, err error)) error
}
