package store

import (
	"context"
	"errors"
	"testing"
)

func TestHouseholdCreate(t *testing.T) {
	s := setupTestStore(t)

	h, err := s.Households.Create(context.Background(), "Smiths", 10.39, 63.43)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.Name != "Smiths" {
		t.Errorf("name = %q, want %q", h.Name, "Smiths")
	}
	if h.Longitude != 10.39 || h.Latitude != 63.43 {
		t.Errorf("coords = (%v, %v)", h.Longitude, h.Latitude)
	}
	if h.EmergencyGroupID != nil {
		t.Error("expected no emergency group")
	}
}

func TestHouseholdCreateDuplicateName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Households.Create(ctx, "Smiths", 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Households.Create(ctx, "Smiths", 0, 0); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestHouseholdGetByName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	created, _ := s.Households.Create(ctx, "Smiths", 0, 0)

	h, err := s.Households.GetByName(ctx, "Smiths")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if h == nil || h.ID != created.ID {
		t.Fatalf("got %+v, want id %d", h, created.ID)
	}

	h, err = s.Households.GetByName(ctx, "Joneses")
	if err != nil || h != nil {
		t.Fatalf("missing household = %+v, %v; want nil, nil", h, err)
	}
}

func TestHouseholdJoinEmergencyGroupOnce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	h, _ := s.Households.Create(ctx, "Smiths", 0, 0)
	g1, _ := s.Groups.Create(ctx, "North")
	g2, _ := s.Groups.Create(ctx, "South")

	ok, err := s.Households.JoinEmergencyGroup(ctx, h.ID, g1.ID)
	if err != nil || !ok {
		t.Fatalf("join = %v, %v; want true", ok, err)
	}
	ok, err = s.Households.JoinEmergencyGroup(ctx, h.ID, g2.ID)
	if err != nil || ok {
		t.Fatalf("second join = %v, %v; want false", ok, err)
	}

	got, _ := s.Households.GetByID(ctx, h.ID)
	if got.EmergencyGroupID == nil || *got.EmergencyGroupID != g1.ID {
		t.Errorf("group = %v, want %d", got.EmergencyGroupID, g1.ID)
	}
}

func TestHouseholdListMembers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	h, _ := s.Households.Create(ctx, "Smiths", 0, 0)
	a := createTestUser(t, s, "a@example.com")
	createTestUser(t, s, "b@example.com")
	if _, err := s.Users.SetHousehold(ctx, a, h.ID); err != nil {
		t.Fatalf("set household: %v", err)
	}

	members, err := s.Households.ListMembers(ctx, h.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].ID != a {
		t.Errorf("members = %+v, want only user %d", members, a)
	}
}

func TestEmergencyGroupDuplicateName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if _, err := s.Groups.Create(ctx, "North"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Groups.Create(ctx, "North"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestHouseholdCreateUniqueSuffix(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.Households.CreateUnique(ctx, "Smith", 0, 0)
	if err != nil {
		t.Fatalf("create unique: %v", err)
	}
	second, err := s.Households.CreateUnique(ctx, "Smith", 0, 0)
	if err != nil {
		t.Fatalf("create unique: %v", err)
	}
	third, err := s.Households.CreateUnique(ctx, "Smith", 0, 0)
	if err != nil {
		t.Fatalf("create unique: %v", err)
	}

	if first.Name != "Smith" {
		t.Errorf("first = %q, want %q", first.Name, "Smith")
	}
	if second.Name != "Smith 2" {
		t.Errorf("second = %q, want %q", second.Name, "Smith 2")
	}
	if third.Name != "Smith 3" {
		t.Errorf("third = %q, want %q", third.Name, "Smith 3")
	}
}
