package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/api/metrics"
	"github.com/clanforge/clan-registry/internal/core/domain"
	"github.com/clanforge/clan-registry/internal/core/ports"
)

// errNoChange aborts a read-merge-write cycle without writing. Used by
// mutations that turn out to be no-ops (deleting an absent account, granting
// an already-granted ID).
var errNoChange = errors.New("no change")

const (
	defaultRetries = 3
	defaultBackoff = 500 * time.Millisecond
)

// RecordStoreOptions tunes the persistence behaviour of the record store.
type RecordStoreOptions struct {
	// RecordsPath and AuthPath name the two documents on the backend.
	RecordsPath string
	AuthPath    string
	// OwnerID is the protected owner identifier: implicitly authorized,
	// implicitly admin, never removable.
	OwnerID int64
	// Retries is the total number of persistence attempts per write.
	Retries int
	// Backoff is the base wait between attempts; attempt n waits (n-1)×Backoff.
	Backoff time.Duration
}

// RecordService owns the canonical remote representation of member records
// and the authorization set. Writes follow the optimistic-concurrency
// protocol: fetch content + version token, mutate, submit with the token, and
// rerun the whole cycle on a version conflict. Whole documents are replaced;
// two concurrent writers whose retries both succeed can still clobber each
// other's unrelated changes.
type RecordService struct {
	backend     ports.Backend
	recordsPath string
	authPath    string
	ownerID     int64
	retries     int
	backoff     time.Duration
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewRecordService(backend ports.Backend, opts RecordStoreOptions, log zerolog.Logger) *RecordService {
	if opts.RecordsPath == "" {
		opts.RecordsPath = "clan_data.json"
	}
	if opts.AuthPath == "" {
		opts.AuthPath = "authorized_users.json"
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &RecordService{
		backend:     backend,
		recordsPath: opts.RecordsPath,
		authPath:    opts.AuthPath,
		ownerID:     opts.OwnerID,
		retries:     opts.Retries,
		backoff:     opts.Backoff,
		validate:    validator.New(),
		log:         log,
	}
}

// OwnerID exposes the protected owner identifier configured for this store.
func (s *RecordService) OwnerID() int64 {
	return s.ownerID
}

// LoadAll fetches and parses the records document. Reads never fail the
// caller: a missing document is an empty clan, and transport or parse
// failures are logged and degrade to an empty clan as well.
func (s *RecordService) LoadAll(ctx context.Context) domain.ClanData {
	content, _, err := s.backend.Get(ctx, s.recordsPath)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.ClanData{}
	}
	if err != nil {
		s.log.Error().Err(err).Str("path", s.recordsPath).Msg("records fetch failed, serving empty data")
		return domain.ClanData{}
	}
	data, err := s.decodeRecords(content)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.recordsPath).Msg("records document malformed, serving empty data")
		return domain.ClanData{}
	}
	return data
}

// Member returns one member's record, or nil when absent.
func (s *RecordService) Member(ctx context.Context, memberID string) *domain.MemberRecord {
	return s.LoadAll(ctx)[memberID]
}

// UpsertAccount validates the account, replaces the case-insensitive username
// match in place or appends, and persists the full mapping with retry.
func (s *RecordService) UpsertAccount(ctx context.Context, in ports.UpsertAccountInput) (*ports.UpsertAccountResult, error) {
	in.Account.Username = strings.TrimSpace(in.Account.Username)
	if err := s.validate.Struct(in.Account); err != nil {
		return nil, fmt.Errorf("invalid account: %w", err)
	}

	var res ports.UpsertAccountResult
	err := s.saveRecords(ctx, func(data domain.ClanData) error {
		rec := data[in.MemberID]
		if rec == nil {
			rec = &domain.MemberRecord{}
			data[in.MemberID] = rec
		}
		if in.DisplayName != "" {
			rec.DisplayName = in.DisplayName
		}
		res.Outcome = rec.Upsert(in.Account, time.Now().UTC())
		n, atk, def := rec.Totals()
		res.Totals = ports.MemberTotals{Accounts: n, Attack: atk, Defense: def}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("member", in.MemberID).
		Str("username", in.Account.Username).
		Str("outcome", string(res.Outcome)).
		Msg("account upserted")
	return &res, nil
}

// DeleteAccount removes the first case-insensitive match. Absent member or
// username is a clean false and nothing is written. An empty member record is
// kept; records disappear only via DeleteMember.
func (s *RecordService) DeleteAccount(ctx context.Context, memberID, username string) (bool, error) {
	var removed bool
	err := s.saveRecords(ctx, func(data domain.ClanData) error {
		rec := data[memberID]
		if rec == nil || !rec.Remove(username) {
			return errNoChange
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info().Str("member", memberID).Str("username", username).Msg("account deleted")
	}
	return removed, nil
}

// DeleteMember removes the whole record and revokes the member's
// authorization. Always rejected for the configured owner.
func (s *RecordService) DeleteMember(ctx context.Context, memberID string) (bool, error) {
	if memberID == strconv.FormatInt(s.ownerID, 10) {
		return false, domain.ErrOwnerProtected
	}

	var removed bool
	err := s.saveRecords(ctx, func(data domain.ClanData) error {
		if _, ok := data[memberID]; !ok {
			return errNoChange
		}
		delete(data, memberID)
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if id, convErr := strconv.ParseInt(memberID, 10, 64); convErr == nil {
		var revoked bool
		err := s.SaveAuthorization(ctx, func(set *domain.AuthorizationSet) (bool, error) {
			revoked = set.Revoke(id)
			return revoked, nil
		})
		if err != nil {
			return removed, err
		}
		removed = removed || revoked
	}

	if removed {
		s.log.Info().Str("member", memberID).Msg("member deleted")
	}
	return removed, nil
}

// LoadAuthorization reads the authorization document, degrading to an empty
// set on any failure. The owner ID is applied by the gate, not stored here.
func (s *RecordService) LoadAuthorization(ctx context.Context) domain.AuthorizationSet {
	var set domain.AuthorizationSet
	content, _, err := s.backend.Get(ctx, s.authPath)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return set
	}
	if err != nil {
		s.log.Error().Err(err).Str("path", s.authPath).Msg("authorization fetch failed, serving empty set")
		return set
	}
	if err := json.Unmarshal(content, &set); err != nil {
		s.log.Error().Err(err).Str("path", s.authPath).Msg("authorization document malformed, serving empty set")
		return domain.AuthorizationSet{}
	}
	return set
}

// SaveAuthorization runs mutate against the current set inside the
// read-merge-write cycle. A mutate reporting no change skips the write.
func (s *RecordService) SaveAuthorization(ctx context.Context, mutate func(*domain.AuthorizationSet) (bool, error)) error {
	return s.saveWithRetry(ctx, s.authPath, "authorization", func(content []byte) ([]byte, error) {
		var set domain.AuthorizationSet
		if len(content) > 0 {
			if err := json.Unmarshal(content, &set); err != nil {
				return nil, fmt.Errorf("parse authorization: %w", err)
			}
		}
		changed, err := mutate(&set)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, errNoChange
		}
		return json.MarshalIndent(&set, "", "  ")
	})
}

// saveRecords runs mutate against the freshly fetched records mapping and
// persists the result. The mutate closure reruns on every attempt so that a
// conflict retry applies the intended change to the latest remote state.
func (s *RecordService) saveRecords(ctx context.Context, mutate func(domain.ClanData) error) error {
	return s.saveWithRetry(ctx, s.recordsPath, "records", func(content []byte) ([]byte, error) {
		data := domain.ClanData{}
		if len(content) > 0 {
			var err error
			// A document we cannot parse is a document we must not
			// overwrite; the write aborts instead of replacing it
			// with a guess.
			if data, err = s.decodeRecords(content); err != nil {
				return nil, err
			}
		}
		if err := mutate(data); err != nil {
			return nil, err
		}
		return json.MarshalIndent(data, "", "  ")
	})
}

// saveWithRetry is the optimistic-concurrency write cycle: fetch the current
// document and version token, compute the next content, submit with the
// token. A stale token or transport failure costs one attempt; attempts wait
// an increasing backoff and the whole cycle reruns against fresh state. There
// is no merge of concurrent edits: the entire document is replaced.
func (s *RecordService) saveWithRetry(ctx context.Context, path, label string, apply func(content []byte) ([]byte, error)) error {
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * s.backoff):
			}
		}

		content, version, err := s.backend.Get(ctx, path)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			content, version = nil, ""
		} else if err != nil {
			metrics.StoreSavesTotal.WithLabelValues(label, "error").Inc()
			s.log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("document fetch failed")
			lastErr = err
			continue
		}

		next, err := apply(content)
		if err != nil {
			if errors.Is(err, errNoChange) {
				return nil
			}
			return err
		}

		if _, err := s.backend.Put(ctx, path, next, version); err != nil {
			lastErr = err
			if errors.Is(err, domain.ErrVersionConflict) {
				metrics.StoreSavesTotal.WithLabelValues(label, "conflict").Inc()
				s.log.Warn().Str("path", path).Int("attempt", attempt).Msg("version conflict, rerunning write cycle")
			} else {
				metrics.StoreSavesTotal.WithLabelValues(label, "error").Inc()
				s.log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("document write failed")
			}
			continue
		}

		metrics.StoreSavesTotal.WithLabelValues(label, "ok").Inc()
		return nil
	}

	metrics.StoreRetriesExhaustedTotal.Inc()
	s.log.Error().Err(lastErr).Str("path", path).Int("retries", s.retries).Msg("write abandoned after exhausting retries")
	return fmt.Errorf("%w: %v", domain.ErrSaveFailed, lastErr)
}

// decodeRecords parses the records document into typed records so malformed
// documents fail at this boundary instead of deep in report generation.
func (s *RecordService) decodeRecords(content []byte) (domain.ClanData, error) {
	var data domain.ClanData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	if data == nil {
		data = domain.ClanData{}
	}
	for id, rec := range data {
		if rec == nil {
			data[id] = &domain.MemberRecord{}
			continue
		}
		for _, acc := range rec.Accounts {
			if err := s.validate.Struct(acc); err != nil {
				s.log.Error().Err(err).Str("member", id).Str("username", acc.Username).Msg("stored account fails validation")
			}
		}
	}
	return data, nil
}
