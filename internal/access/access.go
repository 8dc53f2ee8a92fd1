// Package access decides who may see, download or delete an uploaded file.
package access

import "github.com/dukerupert/fileflow/internal/model"

// Policy grants file access to the owner. With StaffOverride set, staff and
// superusers may access every file as well.
type Policy struct {
	StaffOverride bool
}

func (p Policy) CanAccess(user *model.User, file *model.UploadedFile) bool {
	if user == nil || file == nil || !user.IsActive {
		return false
	}
	if file.UserID == user.ID {
		return true
	}
	return p.StaffOverride && (user.IsStaff || user.IsSuperuser)
}
