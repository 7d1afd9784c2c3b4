package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/database"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/membership"
	"github.com/dukerupert/preppr/internal/middleware"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/session"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
)

type recordingMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *recordingMailer) SendTemplate(_ context.Context, _ string, _ email.Template, data email.Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, data.Link)
	return nil
}

func (m *recordingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		t.Fatal("no mail sent")
	}
	u, err := url.Parse(m.links[len(m.links)-1])
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

type testEnv struct {
	st        *store.Store
	mail      *recordingMailer
	authH     *AuthHandler
	household *HouseholdHandler
	invites   *InvitationHandler
	groups    *EmergencyGroupHandler
	admins    *AdminHandler
}

func setupTestEnv(t *testing.T) *testEnv {
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

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(db)
	mail := &recordingMailer{}
	sessions := session.New(st, codec, hasher, mail, session.Config{FrontendURL: "https://preppr.test"}, logger)
	members := membership.New(st, codec, hasher, mail, nil, membership.Config{FrontendURL: "https://preppr.test"}, logger)

	return &testEnv{
		st:        st,
		mail:      mail,
		authH:     NewAuthHandler(sessions, true, logger),
		household: NewHouseholdHandler(members, logger),
		invites:   NewInvitationHandler(members, logger),
		groups:    NewEmergencyGroupHandler(members, logger),
		admins:    NewAdminHandler(members, logger),
	}
}

type call struct {
	method    string
	target    string
	body      string
	principal *auth.Principal
	path      map[string]string
}

func do(t *testing.T, h http.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.target, body)
	for k, v := range c.path {
		req.SetPathValue(k, v)
	}
	if c.principal != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), *c.principal))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

// registerVerified runs register and verify-email and returns the principal.
func (e *testEnv) registerVerified(t *testing.T, addr, name string) auth.Principal {
	t.Helper()
	rec := do(t, e.authH.Register, call{
		method: "POST", target: "/auth/register",
		body: `{"email":"` + addr + `","name":"` + name + `","password":"correct-horse"}`,
	})
	wantStatus(t, rec, http.StatusCreated)

	rec = do(t, e.authH.VerifyEmail, call{method: "GET", target: "/auth/verify-email?token=" + e.mail.lastToken(t)})
	wantStatus(t, rec, http.StatusOK)

	u, err := e.st.Users.GetByEmail(context.Background(), addr)
	if err != nil || u == nil {
		t.Fatalf("load user %s: %v", addr, err)
	}
	return auth.Principal{UserID: u.ID, Role: u.Role}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	e := setupTestEnv(t)
	tests := []struct {
		name, body, want string
	}{
		{"malformed", `{"email":`, "invalid JSON"},
		{"missing email", `{"name":"A","password":"correct-horse"}`, "email is required"},
		{"bad email", `{"email":"nope","name":"A","password":"correct-horse"}`, "email must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e.authH.Register, call{method: "POST", target: "/auth/register", body: tt.body})
			wantStatus(t, rec, http.StatusBadRequest)
			if got := decodeBody(t, rec)["error"]; got != tt.want {
				t.Errorf("error = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginFlow(t *testing.T) {
	e := setupTestEnv(t)

	rec := do(t, e.authH.Register, call{
		method: "POST", target: "/auth/register",
		body: `{"email":"alice@example.com","name":"Alice","password":"correct-horse"}`,
	})
	wantStatus(t, rec, http.StatusCreated)

	login := call{method: "POST", target: "/auth/login", body: `{"email":"alice@example.com","password":"correct-horse"}`}
	wantStatus(t, do(t, e.authH.Login, login), http.StatusForbidden)

	rec = do(t, e.authH.VerifyEmail, call{method: "GET", target: "/auth/verify-email?token=" + e.mail.lastToken(t)})
	wantStatus(t, rec, http.StatusOK)

	rec = do(t, e.authH.Login, call{method: "POST", target: "/auth/login", body: `{"email":"alice@example.com","password":"wrong-horse"}`})
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = do(t, e.authH.Login, login)
	wantStatus(t, rec, http.StatusOK)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected auth cookie")
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags = %+v", cookie)
	}
	if got := decodeBody(t, rec)["role"]; got != "NORMAL" {
		t.Errorf("role = %v, want NORMAL", got)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	e := setupTestEnv(t)
	rec := do(t, e.authH.Logout, call{method: "POST", target: "/auth/logout"})
	wantStatus(t, rec, http.StatusNoContent)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookies = %+v, want one expired cookie", cookies)
	}
}

func TestMeRequiresPrincipal(t *testing.T) {
	e := setupTestEnv(t)
	rec := do(t, e.authH.Me, call{method: "GET", target: "/auth/me"})
	wantStatus(t, rec, http.StatusUnauthorized)

	p := e.registerVerified(t, "bob@example.com", "Bob")
	rec = do(t, e.authH.Me, call{method: "GET", target: "/auth/me", principal: &p})
	wantStatus(t, rec, http.StatusOK)
	user, _ := decodeBody(t, rec)["user"].(map[string]any)
	if user["email"] != "bob@example.com" {
		t.Errorf("user = %v", user)
	}
	if _, ok := user["password_hash"]; ok {
		t.Error("password hash leaked")
	}
}

func TestVerifyEmailMissingToken(t *testing.T) {
	e := setupTestEnv(t)
	rec := do(t, e.authH.VerifyEmail, call{method: "GET", target: "/auth/verify-email"})
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestHouseholdCreateAndMine(t *testing.T) {
	e := setupTestEnv(t)
	p := e.registerVerified(t, "carol@example.com", "Carol")

	rec := do(t, e.household.Create, call{
		method: "POST", target: "/households", principal: &p,
		body: `{"name":"Lighthouse","longitude":10.4,"latitude":63.4}`,
	})
	wantStatus(t, rec, http.StatusCreated)

	rec = do(t, e.household.Create, call{
		method: "POST", target: "/households", principal: &p,
		body: `{"name":"Bad","longitude":10,"latitude":123}`,
	})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = do(t, e.household.Mine, call{method: "GET", target: "/households/me", principal: &p})
	wantStatus(t, rec, http.StatusOK)
	body := decodeBody(t, rec)
	if body["name"] != "Lighthouse" {
		t.Errorf("name = %v", body["name"])
	}
	if members, _ := body["members"].([]any); len(members) != 1 {
		t.Errorf("members = %v", body["members"])
	}
}

func TestJoinRequestRoundTrip(t *testing.T) {
	e := setupTestEnv(t)
	owner := e.registerVerified(t, "dan@example.com", "Dan")
	joiner := e.registerVerified(t, "erin@example.com", "Erin")

	ownerUser, err := e.st.Users.GetByID(context.Background(), owner.UserID)
	if err != nil {
		t.Fatalf("load owner: %v", err)
	}
	hid := *ownerUser.HouseholdID

	rec := do(t, e.household.RequestToJoin, call{
		method: "POST", target: "/households/x/join-requests", principal: &joiner,
		path: map[string]string{"householdId": "abc"},
	})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = do(t, e.household.RequestToJoin, call{
		method: "POST", target: "/households/x/join-requests", principal: &joiner,
		path: map[string]string{"householdId": jsonID(hid)},
	})
	wantStatus(t, rec, http.StatusCreated)
	reqID := jsonID(int64(decodeBody(t, rec)["id"].(float64)))

	rec = do(t, e.household.ListJoinRequests, call{method: "GET", target: "/households/join-requests", principal: &owner})
	wantStatus(t, rec, http.StatusOK)

	accept := call{
		method: "PATCH", target: "/households/join-requests/x/accept", principal: &owner,
		path: map[string]string{"requestId": reqID},
	}
	wantStatus(t, do(t, e.household.AcceptJoinRequest, accept), http.StatusOK)
	wantStatus(t, do(t, e.household.AcceptJoinRequest, accept), http.StatusNotFound)
}

func TestInvitationVerifyHidesReason(t *testing.T) {
	e := setupTestEnv(t)
	for _, target := range []string{"/household-invitations/verify", "/household-invitations/verify?token=garbage"} {
		rec := do(t, e.invites.Verify, call{method: "GET", target: target})
		wantStatus(t, rec, http.StatusNotFound)
		if got := decodeBody(t, rec)["error"]; got != "invitation not found" {
			t.Errorf("error = %v", got)
		}
	}
}

func TestInvitationCreateAndAccept(t *testing.T) {
	e := setupTestEnv(t)
	owner := e.registerVerified(t, "frank@example.com", "Frank")
	guest := e.registerVerified(t, "gina@example.com", "Gina")

	rec := do(t, e.invites.Create, call{
		method: "POST", target: "/household-invitations", principal: &owner,
		body: `{"email":"gina@example.com"}`,
	})
	wantStatus(t, rec, http.StatusOK)
	tok := e.mail.lastToken(t)

	rec = do(t, e.invites.Verify, call{method: "GET", target: "/household-invitations/verify?token=" + url.QueryEscape(tok)})
	wantStatus(t, rec, http.StatusOK)

	accept := call{
		method: "POST", target: "/household-invitations/accept", principal: &guest,
		body: `{"token":"` + tok + `"}`,
	}
	wantStatus(t, do(t, e.invites.Accept, accept), http.StatusOK)
	wantStatus(t, do(t, e.invites.Accept, accept), http.StatusNotFound)
}

func TestAnswerInvitationRequiresDecision(t *testing.T) {
	e := setupTestEnv(t)
	p := e.registerVerified(t, "hank@example.com", "Hank")
	rec := do(t, e.groups.AnswerInvitation, call{
		method: "PATCH", target: "/emergency-groups/answer-invitation/1", principal: &p,
		path: map[string]string{"groupId": "1"},
		body: `{}`,
	})
	wantStatus(t, rec, http.StatusBadRequest)
	if got := decodeBody(t, rec)["error"]; got != "is_accept is required" {
		t.Errorf("error = %v", got)
	}

	rec = do(t, e.groups.AnswerInvitation, call{
		method: "PATCH", target: "/emergency-groups/answer-invitation/1", principal: &p,
		path: map[string]string{"groupId": "1"},
		body: `{"is_accept":false}`,
	})
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestEmergencyGroupInvite(t *testing.T) {
	e := setupTestEnv(t)
	a := e.registerVerified(t, "ivy@example.com", "Ivy")
	b := e.registerVerified(t, "jack@example.com", "Jack")

	rec := do(t, e.groups.Create, call{method: "POST", target: "/emergency-groups", principal: &a, body: `{"name":"Valley"}`})
	wantStatus(t, rec, http.StatusCreated)
	groupID := jsonID(int64(decodeBody(t, rec)["id"].(float64)))

	rec = do(t, e.groups.InviteHousehold, call{
		method: "POST", target: "/emergency-groups/invite/Nowhere", principal: &a,
		path: map[string]string{"householdName": "Nowhere"},
	})
	wantStatus(t, rec, http.StatusNotFound)

	rec = do(t, e.groups.InviteHousehold, call{
		method: "POST", target: "/emergency-groups/invite/Jack", principal: &a,
		path: map[string]string{"householdName": "Jack"},
	})
	wantStatus(t, rec, http.StatusOK)

	rec = do(t, e.groups.ListInvitations, call{method: "GET", target: "/emergency-groups/invitations", principal: &b})
	wantStatus(t, rec, http.StatusOK)

	rec = do(t, e.groups.AnswerInvitation, call{
		method: "PATCH", target: "/emergency-groups/answer-invitation/" + groupID, principal: &b,
		path: map[string]string{"groupId": groupID},
		body: `{"is_accept":true}`,
	})
	wantStatus(t, rec, http.StatusOK)
	if got := decodeBody(t, rec)["status"]; got != "accepted" {
		t.Errorf("status = %v", got)
	}
}

func TestAdminEndpointsRequireSuperAdmin(t *testing.T) {
	e := setupTestEnv(t)
	normal := auth.Principal{UserID: 1, Role: auth.RoleNormal}
	admin := auth.Principal{UserID: 2, Role: auth.RoleAdmin}

	for _, p := range []auth.Principal{normal, admin} {
		rec := do(t, e.admins.Invite, call{method: "POST", target: "/admin/invite", principal: &p, body: `{"email":"new@example.com"}`})
		wantStatus(t, rec, http.StatusForbidden)
		rec = do(t, e.admins.List, call{method: "GET", target: "/super-admin/admins", principal: &p})
		wantStatus(t, rec, http.StatusForbidden)
	}

	rec := do(t, e.admins.Invite, call{method: "POST", target: "/admin/invite", body: `{"email":"new@example.com"}`})
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestAdminInviteAndRegister(t *testing.T) {
	e := setupTestEnv(t)
	super := auth.Principal{UserID: 999, Role: auth.RoleSuperAdmin}

	rec := do(t, e.admins.Invite, call{method: "POST", target: "/admin/invite", principal: &super, body: `{"email":"kate@example.com"}`})
	wantStatus(t, rec, http.StatusOK)
	tok := e.mail.lastToken(t)

	register := call{
		method: "POST", target: "/admin/register",
		body: `{"token":"` + tok + `","email":"kate@example.com","password":"correct-horse"}`,
	}
	wantStatus(t, do(t, e.admins.Register, register), http.StatusCreated)
	wantStatus(t, do(t, e.admins.Register, register), http.StatusBadRequest)

	rec = do(t, e.admins.List, call{method: "GET", target: "/super-admin/admins", principal: &super})
	wantStatus(t, rec, http.StatusOK)
	var admins []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &admins); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(admins) != 1 {
		t.Fatalf("admins = %v", admins)
	}
	adminID := jsonID(int64(admins[0]["id"].(float64)))

	remove := call{
		method: "DELETE", target: "/super-admin/admins/" + adminID, principal: &super,
		path: map[string]string{"adminId": adminID},
	}
	wantStatus(t, do(t, e.admins.Remove, remove), http.StatusNoContent)
	wantStatus(t, do(t, e.admins.Remove, remove), http.StatusNotFound)
}

func TestWriteErrorHidesUpstream(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, slog.New(slog.NewTextHandler(io.Discard, nil)), apperr.Upstream(errors.New("disk full"), "save"))
	wantStatus(t, rec, http.StatusInternalServerError)
	if got := decodeBody(t, rec)["error"]; got != "internal error" {
		t.Errorf("error = %v", got)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
