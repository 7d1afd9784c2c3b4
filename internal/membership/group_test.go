package membership

import (
	"context"
	"testing"

	"github.com/dukerupert/preppr/internal/apperr"
)

func TestGroupInvitationDeclinedThenReanswered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.household(t, "A")
	b := f.household(t, "B")
	alice := f.user(t, "alice@example.com", a)
	bob := f.user(t, "bob@example.com", b)

	g, err := f.c.CreateEmergencyGroup(ctx, alice, "G")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := f.c.InviteHouseholdByName(ctx, alice, "B"); err != nil {
		t.Fatalf("invite: %v", err)
	}

	pending, err := f.c.ListGroupInvitations(ctx, bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].GroupName != "G" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := f.c.AnswerInvitation(ctx, bob, g.ID, false); err != nil {
		t.Fatalf("decline: %v", err)
	}
	invited, _ := f.st.GroupInvitations.IsInvited(ctx, b.ID, g.ID)
	if invited {
		t.Error("invitation row should be removed")
	}
	got, _ := f.st.Households.GetByID(ctx, b.ID)
	if got.EmergencyGroupID != nil {
		t.Errorf("group = %d, want nil", *got.EmergencyGroupID)
	}

	err = f.c.AnswerInvitation(ctx, bob, g.ID, true)
	wantKind(t, err, apperr.KindUnauthorizedAction)
}

func TestAnswerInvitationNotInvited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.household(t, "A")
	b := f.household(t, "B")
	alice := f.user(t, "alice@example.com", a)
	bob := f.user(t, "bob@example.com", b)

	g, err := f.c.CreateEmergencyGroup(ctx, alice, "G")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	err = f.c.AnswerInvitation(ctx, bob, g.ID, true)
	wantKind(t, err, apperr.KindUnauthorizedAction)

	got, _ := f.st.Households.GetByID(ctx, b.ID)
	if got.EmergencyGroupID != nil {
		t.Errorf("group = %d, want nil", *got.EmergencyGroupID)
	}
}

func TestAnswerInvitationAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.household(t, "A")
	b := f.household(t, "B")
	alice := f.user(t, "alice@example.com", a)
	bob := f.user(t, "bob@example.com", b)

	g, _ := f.c.CreateEmergencyGroup(ctx, alice, "G")
	if _, err := f.c.InviteHouseholdByName(ctx, alice, "B"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := f.c.AnswerInvitation(ctx, bob, g.ID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got, _ := f.st.Households.GetByID(ctx, b.ID)
	if got.EmergencyGroupID == nil || *got.EmergencyGroupID != g.ID {
		t.Errorf("group = %v, want %d", got.EmergencyGroupID, g.ID)
	}
	if !f.notifier.has("emergency_group_invitation_accepted") {
		t.Error("expected accepted event")
	}
}

func TestInviteHouseholdByNameErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.household(t, "A")
	f.household(t, "B")
	c := f.household(t, "C")
	alice := f.user(t, "alice@example.com", a)
	carol := f.user(t, "carol@example.com", c)
	homeless := f.user(t, "h@example.com", nil)

	_, err := f.c.InviteHouseholdByName(ctx, alice, "B")
	wantKind(t, err, apperr.KindUnauthorizedAction)

	_, err = f.c.InviteHouseholdByName(ctx, homeless, "B")
	wantKind(t, err, apperr.KindNotFound)

	if _, err := f.c.CreateEmergencyGroup(ctx, alice, "G"); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := f.c.CreateEmergencyGroup(ctx, carol, "H"); err != nil {
		t.Fatalf("create group: %v", err)
	}

	_, err = f.c.InviteHouseholdByName(ctx, alice, "Nowhere")
	wantKind(t, err, apperr.KindNotFound)

	_, err = f.c.InviteHouseholdByName(ctx, alice, "C")
	wantKind(t, err, apperr.KindConflict)

	if _, err := f.c.InviteHouseholdByName(ctx, alice, "B"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	_, err = f.c.InviteHouseholdByName(ctx, alice, "B")
	wantKind(t, err, apperr.KindConflict)
}

func TestCreateEmergencyGroupErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.household(t, "A")
	b := f.household(t, "B")
	alice := f.user(t, "alice@example.com", a)
	bob := f.user(t, "bob@example.com", b)

	if _, err := f.c.CreateEmergencyGroup(ctx, alice, "G"); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := f.c.CreateEmergencyGroup(ctx, alice, "Other")
	wantKind(t, err, apperr.KindConflict)

	_, err = f.c.CreateEmergencyGroup(ctx, bob, "G")
	wantKind(t, err, apperr.KindConflict)

	got, _ := f.st.Households.GetByID(ctx, b.ID)
	if got.EmergencyGroupID != nil {
		t.Error("failed create must not assign a group")
	}
}

func TestConcurrentAnswerInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.household(t, "A")
	b := f.household(t, "B")
	alice := f.user(t, "alice@example.com", a)
	bob := f.user(t, "bob@example.com", b)
	bea := f.user(t, "bea@example.com", b)

	g, err := f.c.CreateEmergencyGroup(ctx, alice, "G")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := f.c.InviteHouseholdByName(ctx, alice, "B"); err != nil {
		t.Fatalf("invite: %v", err)
	}

	const n = 8
	answers := make([]bool, n)
	errs := race(n, func(i int) error {
		actor := bob
		if i%2 == 1 {
			actor = bea
		}
		answers[i] = i%3 == 0
		return f.c.AnswerInvitation(ctx, actor, g.ID, answers[i])
	})

	winner := -1
	for i, err := range errs {
		if err == nil {
			if winner >= 0 {
				t.Fatalf("answers %d and %d both succeeded", winner, i)
			}
			winner = i
			continue
		}
		if apperr.KindOf(err) != apperr.KindUnauthorizedAction {
			t.Errorf("answer %d: err = %v, want unauthorized action", i, err)
		}
	}
	if winner < 0 {
		t.Fatal("no answer succeeded")
	}

	got, _ := f.st.Households.GetByID(ctx, b.ID)
	if answers[winner] {
		if got.EmergencyGroupID == nil || *got.EmergencyGroupID != g.ID {
			t.Errorf("accept won but group = %v", got.EmergencyGroupID)
		}
	} else if got.EmergencyGroupID != nil {
		t.Errorf("decline won but group = %d", *got.EmergencyGroupID)
	}
	if invited, _ := f.st.GroupInvitations.IsInvited(ctx, b.ID, g.ID); invited {
		t.Error("invitation row should be removed")
	}
}
