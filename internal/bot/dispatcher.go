// Package bot routes normalized inbound chat updates: deduplication, one
// authorization gate check per update, then command, callback, or
// conversation handling. Updates are processed one at a time by a single
// worker, matching the upstream platform's per-user ordering guarantee.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/api/metrics"
	"github.com/clanforge/clan-registry/internal/core/domain"
	"github.com/clanforge/clan-registry/internal/core/ports"
	"github.com/clanforge/clan-registry/internal/core/service"
)

const (
	queueBuffer     = 256
	rankingPageSize = 10
)

// DedupChecker abstracts the idempotency store (Redis). A nil checker
// disables deduplication.
type DedupChecker interface {
	IsDuplicate(ctx context.Context, updateID int64) (bool, error)
	Mark(ctx context.Context, updateID int64) error
}

// Dispatcher is the single entry point for inbound updates.
type Dispatcher struct {
	queue     chan ports.UpdateInput
	gate      *service.AuthService
	conv      *service.ConversationService
	records   ports.RecordStore
	reports   *service.ReportService
	sessions  *service.SessionStore
	messenger ports.Messenger
	dedup     DedupChecker
	log       zerolog.Logger
}

func NewDispatcher(
	gate *service.AuthService,
	conv *service.ConversationService,
	records ports.RecordStore,
	reports *service.ReportService,
	sessions *service.SessionStore,
	messenger ports.Messenger,
	dedup DedupChecker,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		queue:     make(chan ports.UpdateInput, queueBuffer),
		gate:      gate,
		conv:      conv,
		records:   records,
		reports:   reports,
		sessions:  sessions,
		messenger: messenger,
		dedup:     dedup,
		log:       log,
	}
}

// Enqueue hands an update to the worker. Non-blocking up to queueBuffer.
func (d *Dispatcher) Enqueue(upd ports.UpdateInput) {
	d.queue <- upd
}

// Start launches the single worker goroutine. It stops when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-d.queue:
				if !ok {
					return
				}
				d.Process(ctx, upd)
			}
		}
	}()
}

// Process handles one update end to end.
func (d *Dispatcher) Process(ctx context.Context, upd ports.UpdateInput) {
	if d.dedup != nil && upd.UpdateID != 0 {
		isDup, err := d.dedup.IsDuplicate(ctx, upd.UpdateID)
		if err != nil {
			d.log.Warn().Err(err).Int64("update", upd.UpdateID).Msg("dedup check failed, processing anyway")
		} else if isDup {
			metrics.UpdatesDedupTotal.WithLabelValues("hit").Inc()
			d.log.Debug().Int64("update", upd.UpdateID).Msg("duplicate update skipped")
			return
		} else {
			metrics.UpdatesDedupTotal.WithLabelValues("miss").Inc()
			if err := d.dedup.Mark(ctx, upd.UpdateID); err != nil {
				d.log.Warn().Err(err).Int64("update", upd.UpdateID).Msg("failed to set dedup key")
			}
		}
	}

	access := d.gate.Check(ctx, upd.UserID)

	if upd.Callback != "" {
		metrics.UpdatesProcessedTotal.WithLabelValues("callback").Inc()
		d.handleCallback(ctx, upd, access)
		return
	}

	text := strings.TrimSpace(upd.Text)
	if strings.HasPrefix(text, "/") {
		metrics.UpdatesProcessedTotal.WithLabelValues("command").Inc()
		d.handleCommand(ctx, upd, access, text)
		return
	}

	metrics.UpdatesProcessedTotal.WithLabelValues("text").Inc()
	if !access.Allowed {
		d.denied(ctx, upd.ChatID)
		return
	}
	if !d.conv.HandleText(ctx, upd) {
		d.reply(ctx, upd.ChatID, "Send /help to see what I understand.")
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, upd ports.UpdateInput, access service.Access) {
	if !access.Allowed {
		d.denied(ctx, upd.ChatID)
		return
	}
	if d.conv.HandleCallback(ctx, upd) {
		return
	}
	switch upd.Callback {
	case "page:next", "page:prev":
		d.turnRankingPage(ctx, upd)
	case "ranking":
		d.showRanking(ctx, upd, 1)
	default:
		d.log.Debug().Str("callback", upd.Callback).Int64("user", upd.UserID).Msg("unknown callback ignored")
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, upd ports.UpdateInput, access service.Access, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	args := fields[1:]

	// /getid works for everyone: it touches neither state machine nor
	// store, and unauthorized users need it to request access.
	if cmd == "/getid" {
		d.reply(ctx, upd.ChatID, fmt.Sprintf("Your ID: %d\nSend this number to an administrator to get access.", upd.UserID))
		return
	}

	if !access.Allowed {
		d.denied(ctx, upd.ChatID)
		return
	}

	switch cmd {
	case "/start":
		d.showStart(ctx, upd, access)
	case "/help":
		d.showHelp(ctx, upd.ChatID, access)
	case "/register":
		d.conv.StartAdd(ctx, upd.UserID, upd.ChatID)
	case "/edit":
		if len(args) == 0 {
			d.reply(ctx, upd.ChatID, "Usage: /edit <username>")
			return
		}
		d.conv.StartEdit(ctx, upd.UserID, upd.ChatID, args[0])
	case "/delete":
		d.deleteOwnAccount(ctx, upd, args)
	case "/cancel":
		d.conv.Cancel(ctx, upd.UserID, upd.ChatID)
	case "/ranking":
		page := 1
		if len(args) > 0 {
			if p, err := strconv.Atoi(args[0]); err == nil {
				page = p
			}
		}
		d.showRanking(ctx, upd, page)
	case "/me":
		d.showOwnTotals(ctx, upd)
	case "/stats":
		d.requireAdmin(ctx, upd, access, func() { d.showStats(ctx, upd.ChatID) })
	case "/members":
		d.requireAdmin(ctx, upd, access, func() { d.showMembers(ctx, upd.ChatID) })
	case "/adduser":
		d.authMutation(ctx, upd, access, args, "Usage: /adduser <id>", d.gate.Grant, "authorized")
	case "/removeuser":
		d.authMutation(ctx, upd, access, args, "Usage: /removeuser <id>", d.gate.Revoke, "removed")
	case "/promote":
		d.authMutation(ctx, upd, access, args, "Usage: /promote <id>", d.gate.Promote, "promoted to admin")
	case "/demote":
		d.authMutation(ctx, upd, access, args, "Usage: /demote <id>", d.gate.Demote, "demoted")
	case "/delmember":
		d.requireAdmin(ctx, upd, access, func() { d.deleteMember(ctx, upd.ChatID, args) })
	default:
		d.reply(ctx, upd.ChatID, "Unknown command. Send /help.")
	}
}

func (d *Dispatcher) showStart(ctx context.Context, upd ports.UpdateInput, access service.Access) {
	name := upd.DisplayName
	if name == "" {
		name = "there"
	}
	d.send(ctx, ports.OutboundMessage{
		ChatID: upd.ChatID,
		Text:   fmt.Sprintf("Hi %s! Clan account registry.\nPick an option or send /help.", name),
		Actions: []ports.Action{
			{Label: "Ranking", Data: "ranking"},
		},
	})
	d.showHelp(ctx, upd.ChatID, access)
}

func (d *Dispatcher) showHelp(ctx context.Context, chatID int64, access service.Access) {
	lines := []string{
		"Commands:",
		"/register - register or overwrite an account",
		"/edit <username> - update an account's stats",
		"/delete <username> - delete one of your accounts",
		"/me - your totals",
		"/ranking [page] - clan ranking",
		"/getid - your platform ID",
		"/cancel - abort the current flow",
	}
	if access.Admin {
		lines = append(lines,
			"Admin:",
			"/stats - clan statistics",
			"/members - member listing",
			"/adduser <id>, /removeuser <id>",
			"/promote <id>, /demote <id>",
			"/delmember <id> - remove a member and revoke access",
		)
	}
	d.reply(ctx, chatID, strings.Join(lines, "\n"))
}

func (d *Dispatcher) showRanking(ctx context.Context, upd ports.UpdateInput, page int) {
	p := d.reports.Ranking(ctx, page, rankingPageSize)
	d.sessions.Update(upd.UserID, func(s *service.Session) { s.Page = p.Page })

	if p.TotalEntries == 0 {
		d.reply(ctx, upd.ChatID, "No accounts registered yet. Be the first: /register")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Clan ranking - %d account(s), attack %d, defense %d\n",
		p.TotalEntries, p.TotalAttack, p.TotalDefense)
	rank := (p.Page-1)*rankingPageSize + 1
	for i, e := range p.Entries {
		fmt.Fprintf(&b, "%d. %s - attack %d, defense %d\n", rank+i, e.Username, e.Attack, e.Defense)
	}
	fmt.Fprintf(&b, "Page %d/%d", p.Page, p.Pages)

	var actions []ports.Action
	if p.Page > 1 {
		actions = append(actions, ports.Action{Label: "Prev", Data: "page:prev"})
	}
	if p.Page < p.Pages {
		actions = append(actions, ports.Action{Label: "Next", Data: "page:next"})
	}
	d.send(ctx, ports.OutboundMessage{ChatID: upd.ChatID, Text: b.String(), Actions: actions})
}

func (d *Dispatcher) turnRankingPage(ctx context.Context, upd ports.UpdateInput) {
	page := d.sessions.Get(upd.UserID).Page
	if upd.Callback == "page:next" {
		page++
	} else if page > 1 {
		page--
	}
	d.showRanking(ctx, upd, page)
}

func (d *Dispatcher) showOwnTotals(ctx context.Context, upd ports.UpdateInput) {
	totals := d.reports.MemberTotals(ctx, strconv.FormatInt(upd.UserID, 10))
	if totals == nil || totals.Accounts == 0 {
		d.reply(ctx, upd.ChatID, "You have no registered accounts yet. Use /register.")
		return
	}
	d.reply(ctx, upd.ChatID, fmt.Sprintf("Your totals: %d account(s), %d attack, %d defense.",
		totals.Accounts, totals.Attack, totals.Defense))
}

func (d *Dispatcher) deleteOwnAccount(ctx context.Context, upd ports.UpdateInput, args []string) {
	if len(args) == 0 {
		d.reply(ctx, upd.ChatID, "Usage: /delete <username>")
		return
	}
	removed, err := d.records.DeleteAccount(ctx, strconv.FormatInt(upd.UserID, 10), args[0])
	if err != nil {
		d.reply(ctx, upd.ChatID, "Could not save the change, please try again.")
		return
	}
	if !removed {
		d.reply(ctx, upd.ChatID, fmt.Sprintf("No account named %q found.", args[0]))
		return
	}
	d.reply(ctx, upd.ChatID, fmt.Sprintf("Account %s deleted.", args[0]))
}

func (d *Dispatcher) showStats(ctx context.Context, chatID int64) {
	st := d.reports.Stats(ctx)
	d.reply(ctx, chatID, fmt.Sprintf(
		"Clan statistics:\nMembers: %d\nAccounts: %d\nTotal attack: %d\nTotal defense: %d",
		st.Members, st.Accounts, st.TotalAttack, st.TotalDefense))
}

func (d *Dispatcher) showMembers(ctx context.Context, chatID int64) {
	members := d.reports.Members(ctx)
	if len(members) == 0 {
		d.reply(ctx, chatID, "No members registered yet.")
		return
	}
	var b strings.Builder
	b.WriteString("Members:\n")
	for _, m := range members {
		name := m.DisplayName
		if name == "" {
			name = "(no name)"
		}
		fmt.Fprintf(&b, "%s %s - %d account(s), attack %d, defense %d\n",
			m.MemberID, name, m.Accounts, m.Attack, m.Defense)
	}
	d.reply(ctx, chatID, strings.TrimRight(b.String(), "\n"))
}

func (d *Dispatcher) deleteMember(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		d.reply(ctx, chatID, "Usage: /delmember <id>")
		return
	}
	removed, err := d.records.DeleteMember(ctx, args[0])
	if err != nil {
		if errors.Is(err, domain.ErrOwnerProtected) {
			d.reply(ctx, chatID, "The owner cannot be removed.")
			return
		}
		d.reply(ctx, chatID, "Could not save the change, please try again.")
		return
	}
	if !removed {
		d.reply(ctx, chatID, "No such member.")
		return
	}
	d.reply(ctx, chatID, fmt.Sprintf("Member %s removed and access revoked.", args[0]))
}

// authMutation runs one of the gate's admin mutations against a target ID
// parsed from args.
func (d *Dispatcher) authMutation(
	ctx context.Context,
	upd ports.UpdateInput,
	access service.Access,
	args []string,
	usage string,
	op func(ctx context.Context, actorID, targetID int64) error,
	done string,
) {
	if !access.Admin {
		d.denied(ctx, upd.ChatID)
		return
	}
	if len(args) == 0 {
		d.reply(ctx, upd.ChatID, usage)
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		d.reply(ctx, upd.ChatID, "Invalid ID, it must be a number.")
		return
	}
	if err := op(ctx, upd.UserID, target); err != nil {
		switch {
		case errors.Is(err, domain.ErrOwnerProtected):
			d.reply(ctx, upd.ChatID, "The owner cannot be removed.")
		case errors.Is(err, domain.ErrAccessDenied):
			d.denied(ctx, upd.ChatID)
		default:
			d.reply(ctx, upd.ChatID, "Could not save the change, please try again.")
		}
		return
	}
	d.reply(ctx, upd.ChatID, fmt.Sprintf("User %d %s.", target, done))
}

func (d *Dispatcher) requireAdmin(ctx context.Context, upd ports.UpdateInput, access service.Access, fn func()) {
	if !access.Admin {
		d.denied(ctx, upd.ChatID)
		return
	}
	fn()
}

func (d *Dispatcher) denied(ctx context.Context, chatID int64) {
	metrics.UpdatesDeniedTotal.Inc()
	d.reply(ctx, chatID, "Access denied. Send /getid and pass your ID to an administrator.")
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	d.send(ctx, ports.OutboundMessage{ChatID: chatID, Text: text})
}

func (d *Dispatcher) send(ctx context.Context, msg ports.OutboundMessage) {
	if err := d.messenger.Send(ctx, msg); err != nil {
		d.log.Warn().Err(err).Int64("chat", msg.ChatID).Msg("outbound message failed")
	}
}
