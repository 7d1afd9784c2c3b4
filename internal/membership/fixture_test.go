package membership

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/database"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
	"github.com/dukerupert/preppr/internal/websocket"
)

type sentMail struct {
	to   string
	tmpl email.Template
	data email.Data
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendTemplate(_ context.Context, to string, tmpl email.Template, data email.Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, tmpl: tmpl, data: data})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

type event struct {
	householdID int64
	userID      int64
	msg         websocket.Message
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) PublishHousehold(householdID int64, msg websocket.Message) {
	n.mu.Lock()
	n.events = append(n.events, event{householdID: householdID, msg: msg})
	n.mu.Unlock()
}

func (n *recordingNotifier) PublishUser(userID int64, msg websocket.Message) {
	n.mu.Lock()
	n.events = append(n.events, event{userID: userID, msg: msg})
	n.mu.Unlock()
}

// householdEvents counts events of typ published to a household channel.
func (n *recordingNotifier) householdEvents(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.householdID != 0 && e.msg.Type == typ {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) has(typ string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.msg.Type == typ {
			return true
		}
	}
	return false
}

type fixture struct {
	st       *store.Store
	codec    *token.Codec
	mail     *recordingMailer
	notifier *recordingNotifier
	c        *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	codec, err := token.NewCodec(token.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "preppr-test",
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	hasher, err := password.NewHasher(password.WithCost(4))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	f := &fixture{
		st:       store.New(db),
		codec:    codec,
		mail:     &recordingMailer{},
		notifier: &recordingNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.c = New(f.st, codec, hasher, f.mail, f.notifier, Config{FrontendURL: "https://preppr.test/"}, logger)
	return f
}

func (f *fixture) household(t *testing.T, name string) *model.Household {
	t.Helper()
	h, err := f.st.Households.Create(context.Background(), name, 10.4, 63.4)
	if err != nil {
		t.Fatalf("create household %s: %v", name, err)
	}
	return h
}

// user creates a verified NORMAL user, optionally inside a household.
func (f *fixture) user(t *testing.T, addr string, h *model.Household) auth.Principal {
	t.Helper()
	nu := store.NewUser{Email: addr, Name: addr, PasswordHash: "x", Verified: true}
	if h != nil {
		nu.HouseholdID = &h.ID
	}
	u, err := f.st.Users.Create(context.Background(), nu)
	if err != nil {
		t.Fatalf("create user %s: %v", addr, err)
	}
	return auth.Principal{UserID: u.ID, Role: u.Role}
}

func (f *fixture) reload(t *testing.T, p auth.Principal) *model.User {
	t.Helper()
	u, err := f.st.Users.GetByID(context.Background(), p.UserID)
	if err != nil || u == nil {
		t.Fatalf("reload user %d: %v", p.UserID, err)
	}
	return u
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	tok := u.Query().Get("token")
	if tok == "" {
		t.Fatalf("link %q has no token", link)
	}
	return tok
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("err = nil, want %v", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("err = %v (kind %v), want kind %v", err, got, kind)
	}
}
