package domain

import (
	"testing"
	"time"
)

func TestMemberRecord_FindAccount_CaseInsensitive(t *testing.T) {
	m := &MemberRecord{Accounts: []Account{
		{Username: "Guerrero123"},
		{Username: "Shadow"},
	}}

	if i := m.FindAccount("guerrero123"); i != 0 {
		t.Errorf("expected index 0, got %d", i)
	}
	if i := m.FindAccount("SHADOW"); i != 1 {
		t.Errorf("expected index 1, got %d", i)
	}
	if i := m.FindAccount("missing"); i != -1 {
		t.Errorf("expected -1 for unknown username, got %d", i)
	}
}

func TestMemberRecord_Upsert_AppendsNewAccount(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &MemberRecord{}

	outcome := m.Upsert(Account{Username: "Guerrero123", Attack: 15000, Defense: 12000}, now)
	if outcome != OutcomeCreated {
		t.Fatalf("expected %q, got %q", OutcomeCreated, outcome)
	}
	if len(m.Accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(m.Accounts))
	}
	if !m.Accounts[0].Added.Equal(now) {
		t.Errorf("Added = %v, want %v", m.Accounts[0].Added, now)
	}
}

func TestMemberRecord_Upsert_ReplacesInPlaceKeepingPosition(t *testing.T) {
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &MemberRecord{Accounts: []Account{
		{Username: "First", Attack: 1, Added: added},
		{Username: "Guerrero123", Attack: 15000, Defense: 12000, Added: added},
		{Username: "Last", Attack: 3, Added: added},
	}}

	outcome := m.Upsert(Account{Username: "guerrero123", Attack: 20000, Defense: 18000}, later)
	if outcome != OutcomeUpdated {
		t.Fatalf("expected %q, got %q", OutcomeUpdated, outcome)
	}
	if len(m.Accounts) != 3 {
		t.Fatalf("expected 3 accounts after replace, got %d", len(m.Accounts))
	}
	got := m.Accounts[1]
	if got.Username != "guerrero123" || got.Attack != 20000 || got.Defense != 18000 {
		t.Errorf("replaced account wrong: %+v", got)
	}
	if !got.Added.Equal(added) {
		t.Errorf("Added must survive replacement: got %v, want %v", got.Added, added)
	}
	if !got.Updated.Equal(later) {
		t.Errorf("Updated = %v, want %v", got.Updated, later)
	}
	if m.Accounts[0].Username != "First" || m.Accounts[2].Username != "Last" {
		t.Error("neighbor accounts moved")
	}
}

func TestMemberRecord_Remove(t *testing.T) {
	m := &MemberRecord{Accounts: []Account{
		{Username: "A"},
		{Username: "B"},
		{Username: "C"},
	}}

	if !m.Remove("b") {
		t.Fatal("expected removal of existing account")
	}
	if len(m.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(m.Accounts))
	}
	if m.Accounts[0].Username != "A" || m.Accounts[1].Username != "C" {
		t.Errorf("remaining order wrong: %+v", m.Accounts)
	}
	if m.Remove("b") {
		t.Error("expected false for already-removed account")
	}
}

func TestMemberRecord_Totals(t *testing.T) {
	m := &MemberRecord{Accounts: []Account{
		{Username: "A", Attack: 100, Defense: 50},
		{Username: "B", Attack: 200, Defense: 75},
	}}

	count, attack, defense := m.Totals()
	if count != 2 || attack != 300 || defense != 125 {
		t.Errorf("Totals() = (%d, %d, %d), want (2, 300, 125)", count, attack, defense)
	}
}

func TestAuthorizationSet_GrantRevoke(t *testing.T) {
	var set AuthorizationSet

	if !set.Grant(42) {
		t.Fatal("first Grant should report a change")
	}
	if set.Grant(42) {
		t.Error("second Grant of same ID should be a no-op")
	}
	if !set.Has(42) {
		t.Error("granted ID must be authorized")
	}
	if set.HasAdmin(42) {
		t.Error("plain grant must not confer admin")
	}

	if !set.Promote(42) {
		t.Fatal("Promote should report a change")
	}
	if !set.HasAdmin(42) {
		t.Error("promoted ID must be admin")
	}

	if !set.Revoke(42) {
		t.Fatal("Revoke should report a change")
	}
	if set.Has(42) || set.HasAdmin(42) {
		t.Error("revoked ID must lose both authorization and admin")
	}
}

func TestAuthorizationSet_Demote(t *testing.T) {
	var set AuthorizationSet
	set.Grant(7)
	set.Promote(7)

	if !set.Demote(7) {
		t.Fatal("Demote should report a change")
	}
	if set.HasAdmin(7) {
		t.Error("demoted ID must not be admin")
	}
	if !set.Has(7) {
		t.Error("demotion must not revoke authorization")
	}
	if set.Demote(7) {
		t.Error("second Demote should be a no-op")
	}
}
