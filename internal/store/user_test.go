package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/fileflow/internal/model"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create(CreateUserParams{Email: "Alice@Example.com", Username: "alice", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Plan != model.PlanNone {
		t.Errorf("plan = %q, want %q", u.Plan, model.PlanNone)
	}
	if !u.IsActive {
		t.Error("expected new user to be active")
	}
	if u.IsStaff || u.IsSuperuser {
		t.Error("expected regular user")
	}
}

func TestUserCreateDuplicate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	createTestUser(t, us, "alice@example.com", "alice")

	_, err := us.Create(CreateUserParams{Email: "alice@example.com", Username: "other", PasswordHash: "hash"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
	}
	_, err = us.Create(CreateUserParams{Email: "other@example.com", Username: "alice", PasswordHash: "hash"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate username err = %v, want ErrDuplicate", err)
	}
}

func TestUserGetByLogin(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	created := createTestUser(t, us, "alice@example.com", "alice")

	for _, ident := range []string{"alice", "alice@example.com", " ALICE@example.com "} {
		u, err := us.GetByLogin(ident)
		if err != nil {
			t.Fatalf("get by login %q: %v", ident, err)
		}
		if u == nil || u.ID != created.ID {
			t.Errorf("get by login %q = %v, want user %d", ident, u, created.ID)
		}
	}

	u, err := us.GetByLogin("bob")
	if err != nil {
		t.Fatalf("get by login: %v", err)
	}
	if u != nil {
		t.Error("expected nil for unknown login")
	}
}

func TestUserSetPlan(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	created := createTestUser(t, us, "alice@example.com", "alice")

	if err := us.SetPlan(created.ID, model.PlanPremium); err != nil {
		t.Fatalf("set plan: %v", err)
	}
	u, _ := us.GetByID(created.ID)
	if u.Plan != model.PlanPremium {
		t.Errorf("plan = %q, want %q", u.Plan, model.PlanPremium)
	}
}

func TestUserCreateSuperuser(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create(CreateUserParams{
		Email: "root@example.com", Username: "root", PasswordHash: "hash",
		IsStaff: true, IsSuperuser: true,
	})
	if err != nil {
		t.Fatalf("create superuser: %v", err)
	}
	if !u.IsStaff || !u.IsSuperuser {
		t.Errorf("staff = %v, superuser = %v, want both true", u.IsStaff, u.IsSuperuser)
	}
}

func TestUserSetActive(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	created := createTestUser(t, us, "alice@example.com", "alice")

	if err := us.SetActive(created.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	u, _ := us.GetByID(created.ID)
	if u.IsActive {
		t.Error("expected user to be inactive")
	}
}
