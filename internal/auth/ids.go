package auth

import (
	"fmt"

	"github.com/google/uuid"
)

// Aggregate identifiers. Each is a distinct type so a RoleID can never be
// passed where a PermissionID is expected.
type (
	ModuleID     uuid.UUID
	PermissionID uuid.UUID
	RoleID       uuid.UUID
	UserID       uuid.UUID
)

func NewModuleID() ModuleID         { return ModuleID(uuid.New()) }
func NewPermissionID() PermissionID { return PermissionID(uuid.New()) }
func NewRoleID() RoleID             { return RoleID(uuid.New()) }
func NewUserID() UserID             { return UserID(uuid.New()) }

func (id ModuleID) String() string     { return uuid.UUID(id).String() }
func (id PermissionID) String() string { return uuid.UUID(id).String() }
func (id RoleID) String() string       { return uuid.UUID(id).String() }
func (id UserID) String() string       { return uuid.UUID(id).String() }

func (id ModuleID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PermissionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id RoleID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }

func ParseModuleID(s string) (ModuleID, error) {
	u, err := parseID("moduleId", s)
	return ModuleID(u), err
}

func ParsePermissionID(s string) (PermissionID, error) {
	u, err := parseID("permissionId", s)
	return PermissionID(u), err
}

func ParseRoleID(s string) (RoleID, error) {
	u, err := parseID("roleId", s)
	return RoleID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseID("userId", s)
	return UserID(u), err
}

func parseID(field, s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalid(field, fmt.Sprintf("is not a valid identifier: %q", s))
	}
	if u == uuid.Nil {
		return uuid.Nil, nullValue(field)
	}
	return u, nil
}
