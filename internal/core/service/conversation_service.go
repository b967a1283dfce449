package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/api/metrics"
	"github.com/clanforge/clan-registry/internal/core/domain"
	"github.com/clanforge/clan-registry/internal/core/ports"
)

const minUsernameLen = 3

// Callback payloads for the overwrite-confirmation branch.
const (
	CallbackOverwriteYes = "overwrite:yes"
	CallbackOverwriteNo  = "overwrite:no"
)

// ConversationService walks one user at a time through multi-step account
// entry: collect username, attack, defense, then commit to the record store.
// Malformed input re-prompts without leaving the current step. The chat
// platform delivers a single user's messages in order, so per-user state
// needs no coordination beyond the session store's map lock.
type ConversationService struct {
	sessions  *SessionStore
	records   ports.RecordStore
	messenger ports.Messenger
	log       zerolog.Logger
}

func NewConversationService(sessions *SessionStore, records ports.RecordStore, messenger ports.Messenger, log zerolog.Logger) *ConversationService {
	return &ConversationService{
		sessions:  sessions,
		records:   records,
		messenger: messenger,
		log:       log,
	}
}

// Active reports whether userID has a flow in progress.
func (s *ConversationService) Active(userID int64) bool {
	return s.sessions.Get(userID).Step != StepIdle
}

// StartAdd begins the add-account flow: username → attack → defense → commit.
func (s *ConversationService) StartAdd(ctx context.Context, userID, chatID int64) {
	s.sessions.Set(userID, Session{Step: StepUsername, Flow: FlowAdd})
	s.reply(ctx, chatID, "Account registration. Send the account username (at least 3 characters), or /cancel to stop.")
}

// StartEdit begins the edit flow for an existing account, skipping username
// collection. An unknown username is reported and no flow starts.
func (s *ConversationService) StartEdit(ctx context.Context, userID, chatID int64, username string) {
	rec := s.records.Member(ctx, strconv.FormatInt(userID, 10))
	if rec == nil {
		s.reply(ctx, chatID, "You have no registered accounts yet. Use /register first.")
		return
	}
	i := rec.FindAccount(username)
	if i < 0 {
		s.reply(ctx, chatID, fmt.Sprintf("No account named %q found.", username))
		return
	}
	// keep the stored spelling so the commit replaces in place
	s.sessions.Set(userID, Session{Step: StepAttack, Flow: FlowEdit, Username: rec.Accounts[i].Username})
	s.reply(ctx, chatID, fmt.Sprintf("Editing %s. Send the new attack power (numbers only).", rec.Accounts[i].Username))
}

// Cancel aborts any flow in progress and clears scratch state unconditionally.
func (s *ConversationService) Cancel(ctx context.Context, userID, chatID int64) {
	active := s.Active(userID)
	s.sessions.Clear(userID)
	if active {
		s.reply(ctx, chatID, "Cancelled.")
	} else {
		s.reply(ctx, chatID, "Nothing to cancel.")
	}
}

// HandleText feeds free text into the user's flow. Returns false when no flow
// is in progress, leaving the text to the command router.
func (s *ConversationService) HandleText(ctx context.Context, upd ports.UpdateInput) bool {
	sess := s.sessions.Get(upd.UserID)
	switch sess.Step {
	case StepUsername:
		s.onUsername(ctx, upd, sess)
	case StepConfirmOverwrite:
		s.reply(ctx, upd.ChatID, fmt.Sprintf("An account named %s already exists. Use the buttons to overwrite or abort.", sess.Username))
	case StepAttack:
		s.onAttack(ctx, upd, sess)
	case StepDefense:
		s.onDefense(ctx, upd, sess)
	default:
		return false
	}
	return true
}

// HandleCallback routes inline-button presses belonging to the conversation
// flow. Returns false for payloads it does not own.
func (s *ConversationService) HandleCallback(ctx context.Context, upd ports.UpdateInput) bool {
	sess := s.sessions.Get(upd.UserID)
	switch upd.Callback {
	case CallbackOverwriteYes:
		if sess.Step != StepConfirmOverwrite {
			return false
		}
		s.sessions.Update(upd.UserID, func(s *Session) { s.Step = StepAttack })
		s.reply(ctx, upd.ChatID, fmt.Sprintf("Updating %s. Send the attack power (numbers only).", sess.Username))
		return true
	case CallbackOverwriteNo:
		if sess.Step != StepConfirmOverwrite {
			return false
		}
		s.sessions.Clear(upd.UserID)
		s.reply(ctx, upd.ChatID, "Cancelled.")
		return true
	}
	return false
}

func (s *ConversationService) onUsername(ctx context.Context, upd ports.UpdateInput, sess Session) {
	name := strings.TrimSpace(upd.Text)
	if utf8.RuneCountInString(name) < minUsernameLen {
		s.reply(ctx, upd.ChatID, "The username must have at least 3 characters. Try again:")
		return
	}

	if rec := s.records.Member(ctx, strconv.FormatInt(upd.UserID, 10)); rec != nil && rec.FindAccount(name) >= 0 {
		s.sessions.Update(upd.UserID, func(s *Session) {
			s.Step = StepConfirmOverwrite
			s.Username = name
		})
		s.send(ctx, ports.OutboundMessage{
			ChatID: upd.ChatID,
			Text:   fmt.Sprintf("An account named %s is already registered. Overwrite it?", name),
			Actions: []ports.Action{
				{Label: "Overwrite", Data: CallbackOverwriteYes},
				{Label: "Abort", Data: CallbackOverwriteNo},
			},
		})
		return
	}

	s.sessions.Update(upd.UserID, func(s *Session) {
		s.Step = StepAttack
		s.Username = name
	})
	s.reply(ctx, upd.ChatID, fmt.Sprintf("Username: %s. Now send the attack power (numbers only), e.g. 15000.", name))
}

func (s *ConversationService) onAttack(ctx context.Context, upd ports.UpdateInput, sess Session) {
	attack, ok := parseStat(upd.Text)
	if !ok {
		s.reply(ctx, upd.ChatID, "The attack must be a number greater than 0. Try again:")
		return
	}
	s.sessions.Update(upd.UserID, func(s *Session) {
		s.Step = StepDefense
		s.Attack = attack
	})
	s.reply(ctx, upd.ChatID, fmt.Sprintf("Attack: %d. Now send the defense power (numbers only), e.g. 12000.", attack))
}

func (s *ConversationService) onDefense(ctx context.Context, upd ports.UpdateInput, sess Session) {
	defense, ok := parseStat(upd.Text)
	if !ok {
		s.reply(ctx, upd.ChatID, "The defense must be a number greater than 0. Try again:")
		return
	}
	s.commit(ctx, upd, sess, defense)
}

// commit persists the collected account. Scratch state is cleared on both
// outcomes: a failed save requires restarting the flow, which avoids
// double-submitting stale scratch data.
func (s *ConversationService) commit(ctx context.Context, upd ports.UpdateInput, sess Session, defense int64) {
	s.sessions.Clear(upd.UserID)

	res, err := s.records.UpsertAccount(ctx, ports.UpsertAccountInput{
		MemberID:    strconv.FormatInt(upd.UserID, 10),
		DisplayName: upd.DisplayName,
		Account: domain.Account{
			Username: sess.Username,
			Attack:   sess.Attack,
			Defense:  defense,
		},
	})
	if err != nil {
		metrics.ConversationCommitsTotal.WithLabelValues("failed").Inc()
		s.log.Error().Err(err).Int64("user", upd.UserID).Msg("conversation commit failed")
		s.reply(ctx, upd.ChatID, "Could not save your account, please try again. Send /register to restart.")
		return
	}

	metrics.ConversationCommitsTotal.WithLabelValues(string(res.Outcome)).Inc()
	verb := "registered"
	if res.Outcome == domain.OutcomeUpdated {
		verb = "updated"
	}
	s.reply(ctx, upd.ChatID, fmt.Sprintf(
		"Account %s %s: attack %d, defense %d.\nYour totals: %d account(s), %d attack, %d defense.",
		sess.Username, verb, sess.Attack, defense,
		res.Totals.Accounts, res.Totals.Attack, res.Totals.Defense))
}

func (s *ConversationService) reply(ctx context.Context, chatID int64, text string) {
	s.send(ctx, ports.OutboundMessage{ChatID: chatID, Text: text})
}

func (s *ConversationService) send(ctx context.Context, msg ports.OutboundMessage) {
	if err := s.messenger.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).Int64("chat", msg.ChatID).Msg("outbound message failed")
	}
}

// parseStat parses a user-entered statistic, tolerating thousands separators
// (commas, dots, spaces). Only strictly positive values are accepted.
func parseStat(text string) (int64, bool) {
	cleaned := strings.NewReplacer(",", "", ".", "", " ", "").Replace(strings.TrimSpace(text))
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
