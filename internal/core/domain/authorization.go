package domain

// AuthorizationSet is the persisted list of user IDs allowed to talk to the
// bot plus the subset holding admin rights. The configured owner is implicitly
// a member of both sets; that rule lives in the gate service, not here.
type AuthorizationSet struct {
	AuthorizedIDs []int64 `json:"authorized_ids"`
	AdminIDs      []int64 `json:"admin_ids"`
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []int64, id int64) ([]int64, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...), true
		}
	}
	return ids, false
}

// Has reports whether id is in the authorized set.
func (s *AuthorizationSet) Has(id int64) bool {
	return contains(s.AuthorizedIDs, id)
}

// HasAdmin reports whether id holds admin rights.
func (s *AuthorizationSet) HasAdmin(id int64) bool {
	return contains(s.AdminIDs, id)
}

// Grant adds id to the authorized set. Returns false when already present.
func (s *AuthorizationSet) Grant(id int64) bool {
	if s.Has(id) {
		return false
	}
	s.AuthorizedIDs = append(s.AuthorizedIDs, id)
	return true
}

// Revoke removes id from both sets and reports whether anything changed.
func (s *AuthorizationSet) Revoke(id int64) bool {
	var removed, demoted bool
	s.AuthorizedIDs, removed = remove(s.AuthorizedIDs, id)
	s.AdminIDs, demoted = remove(s.AdminIDs, id)
	return removed || demoted
}

// Promote grants admin rights (and membership). Returns false when id is
// already an admin.
func (s *AuthorizationSet) Promote(id int64) bool {
	if s.HasAdmin(id) {
		return false
	}
	s.Grant(id)
	s.AdminIDs = append(s.AdminIDs, id)
	return true
}

// Demote removes admin rights while keeping membership.
func (s *AuthorizationSet) Demote(id int64) bool {
	var demoted bool
	s.AdminIDs, demoted = remove(s.AdminIDs, id)
	return demoted
}
