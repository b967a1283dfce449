package domain

import (
	"strings"
	"time"
)

// UpsertOutcome distinguishes a fresh registration from an in-place update.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

// Account is one in-game character registered by a clan member. Usernames are
// unique per member when compared case-insensitively.
type Account struct {
	Username string    `json:"username" bson:"username" validate:"required,min=3"`
	Attack   int64     `json:"attack" bson:"attack" validate:"min=0"`
	Defense  int64     `json:"defense" bson:"defense" validate:"min=0"`
	Added    time.Time `json:"added,omitzero" bson:"added,omitempty"`
	Updated  time.Time `json:"updated,omitzero" bson:"updated,omitempty"`
}

// MemberRecord is the stored profile for one member: an optional display name
// reported by the chat platform plus the member's accounts in registration
// order.
type MemberRecord struct {
	DisplayName string    `json:"telegram_name,omitempty" bson:"telegram_name,omitempty"`
	Accounts    []Account `json:"accounts" bson:"accounts"`
}

// ClanData maps the string form of a platform user ID to that member's record.
type ClanData map[string]*MemberRecord

// FindAccount returns the index of the account whose username matches name
// case-insensitively, or -1.
func (m *MemberRecord) FindAccount(name string) int {
	for i, acc := range m.Accounts {
		if strings.EqualFold(acc.Username, name) {
			return i
		}
	}
	return -1
}

// Upsert replaces the account matching acc.Username case-insensitively,
// keeping its position in the sequence, or appends it. The stored Added
// timestamp survives an in-place replacement.
func (m *MemberRecord) Upsert(acc Account, now time.Time) UpsertOutcome {
	if i := m.FindAccount(acc.Username); i >= 0 {
		acc.Added = m.Accounts[i].Added
		acc.Updated = now
		m.Accounts[i] = acc
		return OutcomeUpdated
	}
	acc.Added = now
	m.Accounts = append(m.Accounts, acc)
	return OutcomeCreated
}

// Remove deletes the first account matching name case-insensitively and
// reports whether a removal occurred.
func (m *MemberRecord) Remove(name string) bool {
	i := m.FindAccount(name)
	if i < 0 {
		return false
	}
	m.Accounts = append(m.Accounts[:i], m.Accounts[i+1:]...)
	return true
}

// Totals sums the member's account statistics.
func (m *MemberRecord) Totals() (accounts int, attack, defense int64) {
	for _, acc := range m.Accounts {
		attack += acc.Attack
		defense += acc.Defense
	}
	return len(m.Accounts), attack, defense
}
