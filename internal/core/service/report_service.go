package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/core/ports"
)

// RankedAccount is one row of the clan ranking.
type RankedAccount struct {
	Username string
	Owner    string // member ID owning the account
	Attack   int64
	Defense  int64
}

// RankingPage is one page of the clan ranking plus clan-wide totals.
type RankingPage struct {
	Entries      []RankedAccount
	Page         int // 1-based
	Pages        int
	TotalEntries int
	TotalAttack  int64
	TotalDefense int64
}

// ClanStats is the admin panel summary.
type ClanStats struct {
	Members      int
	Accounts     int
	TotalAttack  int64
	TotalDefense int64
}

// MemberOverview lists one member for the admin member listing.
type MemberOverview struct {
	MemberID    string
	DisplayName string
	Accounts    int
	Attack      int64
	Defense     int64
}

// ReportService derives rankings and summaries from the record store. Every
// report is computed from a fresh LoadAll; nothing is cached.
type ReportService struct {
	records ports.RecordStore
	log     zerolog.Logger
}

func NewReportService(records ports.RecordStore, log zerolog.Logger) *ReportService {
	return &ReportService{records: records, log: log}
}

// Ranking returns one page of all registered accounts sorted by attack,
// descending. pageSize <= 0 falls back to 10.
func (s *ReportService) Ranking(ctx context.Context, page, pageSize int) RankingPage {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}

	data := s.records.LoadAll(ctx)
	all := make([]RankedAccount, 0, len(data))
	var totalAttack, totalDefense int64
	for id, rec := range data {
		for _, acc := range rec.Accounts {
			all = append(all, RankedAccount{
				Username: acc.Username,
				Owner:    id,
				Attack:   acc.Attack,
				Defense:  acc.Defense,
			})
			totalAttack += acc.Attack
			totalDefense += acc.Defense
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Attack > all[j].Attack })

	pages := (len(all) + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	return RankingPage{
		Entries:      all[start:end],
		Page:         page,
		Pages:        pages,
		TotalEntries: len(all),
		TotalAttack:  totalAttack,
		TotalDefense: totalDefense,
	}
}

// MemberTotals summarizes one member's accounts, or nil when unknown.
func (s *ReportService) MemberTotals(ctx context.Context, memberID string) *ports.MemberTotals {
	rec := s.records.Member(ctx, memberID)
	if rec == nil {
		return nil
	}
	n, atk, def := rec.Totals()
	return &ports.MemberTotals{Accounts: n, Attack: atk, Defense: def}
}

// Stats computes the clan-wide admin summary.
func (s *ReportService) Stats(ctx context.Context) ClanStats {
	data := s.records.LoadAll(ctx)
	stats := ClanStats{Members: len(data)}
	for _, rec := range data {
		n, atk, def := rec.Totals()
		stats.Accounts += n
		stats.TotalAttack += atk
		stats.TotalDefense += def
	}
	return stats
}

// Members lists every member record, sorted by member ID for stable output.
func (s *ReportService) Members(ctx context.Context) []MemberOverview {
	data := s.records.LoadAll(ctx)
	out := make([]MemberOverview, 0, len(data))
	for id, rec := range data {
		n, atk, def := rec.Totals()
		out = append(out, MemberOverview{
			MemberID:    id,
			DisplayName: rec.DisplayName,
			Accounts:    n,
			Attack:      atk,
			Defense:     def,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}
