package membership

import (
	"context"
	"strings"
	"testing"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/email"
)

func TestHouseholdInvitationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	smiths := f.household(t, "Smiths")
	owner := f.user(t, "owner@example.com", smiths)
	guest := f.user(t, "guest@example.com", nil)
	stranger := f.user(t, "stranger@example.com", nil)

	inv, err := f.c.CreateInvitation(ctx, owner, "Guest@Example.com")
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if inv.InvitedEmail != "guest@example.com" {
		t.Errorf("invited email = %q", inv.InvitedEmail)
	}

	sent := f.mail.last(t)
	if sent.to != "guest@example.com" || sent.tmpl != email.TemplateHouseholdInvite {
		t.Fatalf("mail = %+v", sent)
	}
	if !strings.HasPrefix(sent.data.Link, "https://preppr.test/invite?token=") {
		t.Errorf("link = %q", sent.data.Link)
	}
	if sent.data.HouseholdName != "Smiths" {
		t.Errorf("household name = %q", sent.data.HouseholdName)
	}
	tok := tokenFromLink(t, sent.data.Link)

	details, err := f.c.VerifyInvitation(ctx, tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if details.HouseholdName != "Smiths" || details.InvitedBy != "owner@example.com" {
		t.Errorf("details = %+v", details)
	}

	_, err = f.c.AcceptInvitation(ctx, stranger, tok)
	wantKind(t, err, apperr.KindUnauthorizedAction)

	h, err := f.c.AcceptInvitation(ctx, guest, tok)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if h.ID != smiths.ID {
		t.Errorf("household = %d, want %d", h.ID, smiths.ID)
	}
	if got := f.reload(t, guest); !got.InHousehold(smiths.ID) {
		t.Errorf("guest household = %v", got.HouseholdID)
	}
	if !f.notifier.has("member_joined") {
		t.Error("expected member_joined event")
	}

	_, err = f.c.AcceptInvitation(ctx, guest, tok)
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.c.VerifyInvitation(ctx, tok)
	wantKind(t, err, apperr.KindNotFound)
}

func TestCreateInvitationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	smiths := f.household(t, "Smiths")
	owner := f.user(t, "owner@example.com", smiths)
	f.user(t, "member@example.com", smiths)
	homeless := f.user(t, "homeless@example.com", nil)

	_, err := f.c.CreateInvitation(ctx, homeless, "x@example.com")
	wantKind(t, err, apperr.KindUnauthorizedAction)

	_, err = f.c.CreateInvitation(ctx, owner, "member@example.com")
	wantKind(t, err, apperr.KindConflict)

	_, err = f.c.CreateInvitation(ctx, owner, "not-an-email")
	wantKind(t, err, apperr.KindValidation)
}

func TestCreateInvitationReplacesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	smiths := f.household(t, "Smiths")
	owner := f.user(t, "owner@example.com", smiths)
	guest := f.user(t, "guest@example.com", nil)

	if _, err := f.c.CreateInvitation(ctx, owner, "guest@example.com"); err != nil {
		t.Fatalf("first invitation: %v", err)
	}
	first := tokenFromLink(t, f.mail.last(t).data.Link)

	if _, err := f.c.CreateInvitation(ctx, owner, "guest@example.com"); err != nil {
		t.Fatalf("second invitation: %v", err)
	}
	second := tokenFromLink(t, f.mail.last(t).data.Link)

	_, err := f.c.AcceptInvitation(ctx, guest, first)
	wantKind(t, err, apperr.KindNotFound)

	if _, err := f.c.AcceptInvitation(ctx, guest, second); err != nil {
		t.Fatalf("accept second: %v", err)
	}
}

func TestVerifyInvitationRejectsGarbage(t *testing.T) {
	f := newFixture(t)

	_, err := f.c.VerifyInvitation(context.Background(), "not-a-token")
	wantKind(t, err, apperr.KindInvalidToken)
}

func TestPurgeExpiredInvitations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	smiths := f.household(t, "Smiths")
	owner := f.user(t, "owner@example.com", smiths)
	if _, err := f.c.CreateInvitation(ctx, owner, "guest@example.com"); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := f.c.PurgeExpiredInvitations(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 0 {
		t.Errorf("purged = %d, want 0 for fresh invitation", n)
	}
}
