package bot

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/core/domain"
	"github.com/clanforge/clan-registry/internal/core/ports"
	"github.com/clanforge/clan-registry/internal/core/service"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type memBackend struct {
	docs map[string][]byte
	revs map[string]int64
}

func newMemBackend() *memBackend {
	return &memBackend{docs: map[string][]byte{}, revs: map[string]int64{}}
}

func (b *memBackend) Get(_ context.Context, path string) ([]byte, string, error) {
	content, ok := b.docs[path]
	if !ok {
		return nil, "", domain.ErrDocumentNotFound
	}
	return content, strconv.FormatInt(b.revs[path], 10), nil
}

func (b *memBackend) Put(_ context.Context, path string, content []byte, version string) (string, error) {
	rev, exists := b.revs[path]
	if exists && version != strconv.FormatInt(rev, 10) {
		return "", domain.ErrVersionConflict
	}
	if !exists && version != "" {
		return "", domain.ErrVersionConflict
	}
	b.docs[path] = content
	b.revs[path] = rev + 1
	return strconv.FormatInt(rev+1, 10), nil
}

type recordingMessenger struct {
	sent []ports.OutboundMessage
}

func (m *recordingMessenger) Send(_ context.Context, msg ports.OutboundMessage) error {
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMessenger) last(t *testing.T) ports.OutboundMessage {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatal("no outbound message recorded")
	}
	return m.sent[len(m.sent)-1]
}

type stubDedup struct {
	seen       map[int64]bool
	duplicates int
}

func (d *stubDedup) IsDuplicate(_ context.Context, updateID int64) (bool, error) {
	if d.seen[updateID] {
		d.duplicates++
		return true, nil
	}
	return false, nil
}

func (d *stubDedup) Mark(_ context.Context, updateID int64) error {
	if d.seen == nil {
		d.seen = map[int64]bool{}
	}
	d.seen[updateID] = true
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const ownerID int64 = 1000

type fixture struct {
	dispatcher *Dispatcher
	messenger  *recordingMessenger
	backend    *memBackend
	records    *service.RecordService
	dedup      *stubDedup
}

func newFixture() *fixture {
	log := zerolog.Nop()
	backend := newMemBackend()
	records := service.NewRecordService(backend, service.RecordStoreOptions{
		OwnerID: ownerID,
		Retries: 3,
		Backoff: time.Millisecond,
	}, log)
	gate := service.NewAuthService(records, ownerID, log)
	sessions := service.NewSessionStore()
	messenger := &recordingMessenger{}
	conv := service.NewConversationService(sessions, records, messenger, log)
	reports := service.NewReportService(records, log)
	dedup := &stubDedup{seen: map[int64]bool{}}

	return &fixture{
		dispatcher: NewDispatcher(gate, conv, records, reports, sessions, messenger, dedup, log),
		messenger:  messenger,
		backend:    backend,
		records:    records,
		dedup:      dedup,
	}
}

func (f *fixture) process(t *testing.T, upd ports.UpdateInput) {
	t.Helper()
	f.dispatcher.Process(context.Background(), upd)
}

func (f *fixture) authorize(t *testing.T, userID int64) {
	t.Helper()
	err := f.records.SaveAuthorization(context.Background(), func(set *domain.AuthorizationSet) (bool, error) {
		return set.Grant(userID), nil
	})
	if err != nil {
		t.Fatalf("authorize %d: %v", userID, err)
	}
}

func command(userID int64, text string) ports.UpdateInput {
	return ports.UpdateInput{UserID: userID, ChatID: userID, Text: text}
}

// ---------------------------------------------------------------------------
// Gate
// ---------------------------------------------------------------------------

func TestDispatcher_UnauthorizedUserDenied(t *testing.T) {
	f := newFixture()

	f.process(t, command(555, "/register"))
	if !strings.Contains(f.messenger.last(t).Text, "Access denied") {
		t.Errorf("expected denial, got %q", f.messenger.last(t).Text)
	}

	f.process(t, command(555, "hello"))
	if !strings.Contains(f.messenger.last(t).Text, "Access denied") {
		t.Errorf("free text from stranger must be denied, got %q", f.messenger.last(t).Text)
	}

	f.process(t, ports.UpdateInput{UserID: 555, ChatID: 555, Callback: "ranking"})
	if !strings.Contains(f.messenger.last(t).Text, "Access denied") {
		t.Errorf("callback from stranger must be denied, got %q", f.messenger.last(t).Text)
	}
}

func TestDispatcher_GetIDWorksUnauthenticated(t *testing.T) {
	f := newFixture()

	f.process(t, command(555, "/getid"))
	msg := f.messenger.last(t)
	if !strings.Contains(msg.Text, "555") {
		t.Errorf("expected the user's ID in the reply, got %q", msg.Text)
	}
	if strings.Contains(msg.Text, "Access denied") {
		t.Error("/getid must not be gated")
	}
}

func TestDispatcher_OwnerAlwaysAllowed(t *testing.T) {
	f := newFixture()

	f.process(t, command(ownerID, "/help"))
	msg := f.messenger.last(t)
	if !strings.Contains(msg.Text, "/register") {
		t.Errorf("expected help text, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "/delmember") {
		t.Error("owner help must include the admin section")
	}
}

// ---------------------------------------------------------------------------
// Dedup
// ---------------------------------------------------------------------------

func TestDispatcher_DuplicateUpdateSkipped(t *testing.T) {
	f := newFixture()

	upd := command(ownerID, "/getid")
	upd.UpdateID = 77
	f.process(t, upd)
	replies := len(f.messenger.sent)

	f.process(t, upd)
	if len(f.messenger.sent) != replies {
		t.Error("duplicate update must produce no reply")
	}
	if f.dedup.duplicates != 1 {
		t.Errorf("expected 1 duplicate hit, got %d", f.dedup.duplicates)
	}
}

func TestDispatcher_ZeroUpdateIDBypassesDedup(t *testing.T) {
	f := newFixture()

	f.process(t, command(ownerID, "/getid"))
	f.process(t, command(ownerID, "/getid"))
	if len(f.messenger.sent) != 2 {
		t.Errorf("expected 2 replies for unnumbered updates, got %d", len(f.messenger.sent))
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestDispatcher_RegisterFlowThroughDispatcher(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	f.process(t, command(42, "/register"))
	for _, text := range []string{"Guerrero123", "15000", "12000"} {
		f.process(t, command(42, text))
	}

	if !strings.Contains(f.messenger.last(t).Text, "registered") {
		t.Fatalf("expected registration confirmation, got %q", f.messenger.last(t).Text)
	}

	f.process(t, command(42, "/me"))
	msg := f.messenger.last(t)
	if !strings.Contains(msg.Text, "1 account(s)") || !strings.Contains(msg.Text, "15000 attack") {
		t.Errorf("totals wrong: %q", msg.Text)
	}
}

func TestDispatcher_CommandSuffixAndCaseNormalized(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	f.process(t, command(42, "/GETID@clanbot"))
	if !strings.Contains(f.messenger.last(t).Text, "42") {
		t.Errorf("bot-suffixed command not recognized: %q", f.messenger.last(t).Text)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	f.process(t, command(42, "/frobnicate"))
	if !strings.Contains(f.messenger.last(t).Text, "Unknown command") {
		t.Errorf("expected unknown-command reply, got %q", f.messenger.last(t).Text)
	}
}

func TestDispatcher_IdleTextGetsHint(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	f.process(t, command(42, "just chatting"))
	if !strings.Contains(f.messenger.last(t).Text, "/help") {
		t.Errorf("expected help hint, got %q", f.messenger.last(t).Text)
	}
}

func TestDispatcher_DeleteOwnAccount(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	f.process(t, command(42, "/register"))
	for _, text := range []string{"Shadow", "100", "100"} {
		f.process(t, command(42, text))
	}

	f.process(t, command(42, "/delete shadow"))
	if !strings.Contains(f.messenger.last(t).Text, "deleted") {
		t.Errorf("expected deletion confirmation, got %q", f.messenger.last(t).Text)
	}

	f.process(t, command(42, "/delete shadow"))
	if !strings.Contains(f.messenger.last(t).Text, "No account named") {
		t.Errorf("expected not-found reply, got %q", f.messenger.last(t).Text)
	}
}

// ---------------------------------------------------------------------------
// Ranking pagination
// ---------------------------------------------------------------------------

func TestDispatcher_RankingPagination(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	// 12 accounts spread over two pages of 10
	for i := 0; i < 12; i++ {
		f.process(t, command(42, "/register"))
		f.process(t, command(42, "Account"+strconv.Itoa(i)))
		f.process(t, command(42, strconv.Itoa((i+1)*100)))
		f.process(t, command(42, "50"))
	}

	f.process(t, command(42, "/ranking"))
	first := f.messenger.last(t)
	if !strings.Contains(first.Text, "Page 1/2") {
		t.Fatalf("expected page 1 of 2, got %q", first.Text)
	}
	if len(first.Actions) != 1 || first.Actions[0].Data != "page:next" {
		t.Errorf("first page buttons wrong: %+v", first.Actions)
	}

	f.process(t, ports.UpdateInput{UserID: 42, ChatID: 42, Callback: "page:next"})
	second := f.messenger.last(t)
	if !strings.Contains(second.Text, "Page 2/2") {
		t.Fatalf("expected page 2 of 2, got %q", second.Text)
	}
	if len(second.Actions) != 1 || second.Actions[0].Data != "page:prev" {
		t.Errorf("last page buttons wrong: %+v", second.Actions)
	}

	f.process(t, ports.UpdateInput{UserID: 42, ChatID: 42, Callback: "page:prev"})
	if !strings.Contains(f.messenger.last(t).Text, "Page 1/2") {
		t.Errorf("expected page 1 after prev, got %q", f.messenger.last(t).Text)
	}
}

// ---------------------------------------------------------------------------
// Admin commands
// ---------------------------------------------------------------------------

func TestDispatcher_AdminCommandsDeniedForMembers(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	for _, cmd := range []string{"/stats", "/members", "/adduser 7", "/removeuser 7", "/promote 7", "/demote 7", "/delmember 7"} {
		f.process(t, command(42, cmd))
		if !strings.Contains(f.messenger.last(t).Text, "Access denied") {
			t.Errorf("%s: expected denial for plain member, got %q", cmd, f.messenger.last(t).Text)
		}
	}
}

func TestDispatcher_AdduserThenGrantedUserAllowed(t *testing.T) {
	f := newFixture()

	f.process(t, command(ownerID, "/adduser 42"))
	if !strings.Contains(f.messenger.last(t).Text, "authorized") {
		t.Fatalf("expected grant confirmation, got %q", f.messenger.last(t).Text)
	}

	f.process(t, command(42, "/help"))
	if strings.Contains(f.messenger.last(t).Text, "Access denied") {
		t.Error("granted user must pass the gate")
	}
}

func TestDispatcher_RemoveOwnerRejected(t *testing.T) {
	f := newFixture()

	f.process(t, command(ownerID, "/removeuser "+strconv.FormatInt(ownerID, 10)))
	if !strings.Contains(f.messenger.last(t).Text, "owner cannot be removed") {
		t.Errorf("expected owner protection, got %q", f.messenger.last(t).Text)
	}

	f.process(t, command(ownerID, "/delmember "+strconv.FormatInt(ownerID, 10)))
	if !strings.Contains(f.messenger.last(t).Text, "owner cannot be removed") {
		t.Errorf("expected owner protection for /delmember, got %q", f.messenger.last(t).Text)
	}
}

func TestDispatcher_DelmemberRemovesRecordAndAccess(t *testing.T) {
	f := newFixture()
	f.authorize(t, 42)

	f.process(t, command(42, "/register"))
	for _, text := range []string{"Shadow", "100", "100"} {
		f.process(t, command(42, text))
	}

	f.process(t, command(ownerID, "/delmember 42"))
	if !strings.Contains(f.messenger.last(t).Text, "removed and access revoked") {
		t.Fatalf("expected removal confirmation, got %q", f.messenger.last(t).Text)
	}

	f.process(t, command(42, "/me"))
	if !strings.Contains(f.messenger.last(t).Text, "Access denied") {
		t.Error("removed member must be denied")
	}
}

func TestDispatcher_AuthMutationInvalidID(t *testing.T) {
	f := newFixture()

	f.process(t, command(ownerID, "/adduser notanumber"))
	if !strings.Contains(f.messenger.last(t).Text, "Invalid ID") {
		t.Errorf("expected invalid-ID reply, got %q", f.messenger.last(t).Text)
	}

	f.process(t, command(ownerID, "/adduser"))
	if !strings.Contains(f.messenger.last(t).Text, "Usage:") {
		t.Errorf("expected usage reply, got %q", f.messenger.last(t).Text)
	}
}
