package access

import (
	"testing"

	"github.com/dukerupert/fileflow/internal/model"
)

func TestCanAccess(t *testing.T) {
	owner := &model.User{ID: 1, IsActive: true}
	other := &model.User{ID: 2, IsActive: true}
	staff := &model.User{ID: 3, IsActive: true, IsStaff: true}
	root := &model.User{ID: 4, IsActive: true, IsSuperuser: true}
	inactive := &model.User{ID: 1, IsActive: false}
	file := &model.UploadedFile{ID: 10, UserID: 1}

	tests := []struct {
		name   string
		policy Policy
		user   *model.User
		want   bool
	}{
		{"owner", Policy{}, owner, true},
		{"other user", Policy{}, other, false},
		{"staff without override", Policy{}, staff, false},
		{"superuser without override", Policy{}, root, false},
		{"staff with override", Policy{StaffOverride: true}, staff, true},
		{"superuser with override", Policy{StaffOverride: true}, root, true},
		{"other user with override", Policy{StaffOverride: true}, other, false},
		{"inactive owner", Policy{}, inactive, false},
		{"anonymous", Policy{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CanAccess(tt.user, file); got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessNilFile(t *testing.T) {
	if (Policy{}).CanAccess(&model.User{ID: 1, IsActive: true}, nil) {
		t.Error("expected false for nil file")
	}
}
