package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxModuleNameLength  = 100
	MaxDescriptionLength = 200
	MinPasswordLength    = 8
)

// Status is the coarse lifecycle label shared by every aggregate.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ParseStatus accepts ACTIVE or INACTIVE in any letter case.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", invalid("status", fmt.Sprintf("must be ACTIVE or INACTIVE, got %q", s))
	}
}

func (s Status) String() string { return string(s) }

// The zero value of every value object below stands for "not supplied".
// Constructors never return a zero value together with a nil error.

type ModuleName struct{ value string }

func NewModuleName(v string) (ModuleName, error) {
	v, err := requireText("moduleName", v)
	if err != nil {
		return ModuleName{}, err
	}
	if utf8.RuneCountInString(v) > MaxModuleNameLength {
		return ModuleName{}, invalid("moduleName", fmt.Sprintf("must be at most %d characters", MaxModuleNameLength))
	}
	return ModuleName{value: v}, nil
}

func (n ModuleName) String() string { return n.value }
func (n ModuleName) IsZero() bool   { return n.value == "" }

// ModulePath is a route prefix in the client application.
type ModulePath struct{ value string }

func NewModulePath(v string) (ModulePath, error) {
	if !strings.HasPrefix(v, "/") {
		return ModulePath{}, invalid("modulePath", "must start with /")
	}
	return ModulePath{value: v}, nil
}

func (p ModulePath) String() string { return p.value }
func (p ModulePath) IsZero() bool   { return p.value == "" }

type ModuleIcon struct{ value string }

func NewModuleIcon(v string) (ModuleIcon, error) {
	v, err := requireText("moduleIcon", v)
	if err != nil {
		return ModuleIcon{}, err
	}
	return ModuleIcon{value: v}, nil
}

func (i ModuleIcon) String() string { return i.value }
func (i ModuleIcon) IsZero() bool   { return i.value == "" }

type PermissionName struct{ value string }

func NewPermissionName(v string) (PermissionName, error) {
	v, err := requireText("permissionName", v)
	if err != nil {
		return PermissionName{}, err
	}
	return PermissionName{value: v}, nil
}

func (n PermissionName) String() string { return n.value }
func (n PermissionName) IsZero() bool   { return n.value == "" }

// PermissionDescription is strict: blank input is rejected rather than
// normalized away. Callers model an absent description with the zero value.
type PermissionDescription struct{ value string }

func NewPermissionDescription(v string) (PermissionDescription, error) {
	v, err := requireText("permissionDescription", v)
	if err != nil {
		return PermissionDescription{}, err
	}
	if utf8.RuneCountInString(v) > MaxDescriptionLength {
		return PermissionDescription{}, invalid("permissionDescription", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
	}
	return PermissionDescription{value: v}, nil
}

func (d PermissionDescription) String() string { return d.value }
func (d PermissionDescription) IsZero() bool   { return d.value == "" }

// PermissionModule is a snapshot of the module a permission belongs to.
// It is not an owning reference.
type PermissionModule struct {
	ID   ModuleID
	Name string
}

// NewPermissionModule trims the name; a blank name is kept as absent.
func NewPermissionModule(id ModuleID, name string) (PermissionModule, error) {
	if id.IsZero() {
		return PermissionModule{}, nullValue("moduleId")
	}
	return PermissionModule{ID: id, Name: strings.TrimSpace(name)}, nil
}

type RoleName struct{ value string }

func NewRoleName(v string) (RoleName, error) {
	v, err := requireText("roleName", v)
	if err != nil {
		return RoleName{}, err
	}
	return RoleName{value: v}, nil
}

func (n RoleName) String() string { return n.value }
func (n RoleName) IsZero() bool   { return n.value == "" }

// RoleDescription silently normalizes blank input to absent.
type RoleDescription struct{ value string }

func NewRoleDescription(v string) RoleDescription {
	return RoleDescription{value: strings.TrimSpace(v)}
}

func (d RoleDescription) String() string { return d.value }
func (d RoleDescription) IsZero() bool   { return d.value == "" }

// UserNames holds the required first and last name and an optional middle name.
type UserNames struct {
	first  string
	last   string
	middle string
}

func NewUserNames(first, last, middle string) (UserNames, error) {
	first, err := requireText("name", first)
	if err != nil {
		return UserNames{}, err
	}
	last, err = requireText("lastName", last)
	if err != nil {
		return UserNames{}, err
	}
	return UserNames{first: first, last: last, middle: strings.TrimSpace(middle)}, nil
}

func (n UserNames) First() string  { return n.first }
func (n UserNames) Last() string   { return n.last }
func (n UserNames) Middle() string { return n.middle }
func (n UserNames) IsZero() bool   { return n.first == "" }

var emailPattern = regexp.MustCompile(`^[^@\s]+@.+$`)

type UserEmail struct{ value string }

func NewUserEmail(v string) (UserEmail, error) {
	if !emailPattern.MatchString(v) {
		return UserEmail{}, invalid("email", "has an invalid format")
	}
	return UserEmail{value: v}, nil
}

func (e UserEmail) String() string { return e.value }
func (e UserEmail) IsZero() bool   { return e.value == "" }

// NormalizeEmail is the lookup key form of an email address.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// UserPassword is a plaintext password submitted in a create or update flow,
// before hashing.
type UserPassword struct{ value string }

func NewUserPassword(v string) (UserPassword, error) {
	if utf8.RuneCountInString(v) < MinPasswordLength {
		return UserPassword{}, ErrWeakPassword
	}
	return UserPassword{value: v}, nil
}

func (p UserPassword) Plaintext() string { return p.value }

// String keeps the plaintext out of logs and fmt output.
func (p UserPassword) String() string { return "********" }

// AccountStatus holds the four independent account flags plus the status label.
type AccountStatus struct {
	Enabled               bool
	NonExpired            bool
	NonLocked             bool
	CredentialsNonExpired bool
	Status                Status
}

// ActiveAccount is the status of a freshly created account.
func ActiveAccount() AccountStatus {
	return AccountStatus{
		Enabled:               true,
		NonExpired:            true,
		NonLocked:             true,
		CredentialsNonExpired: true,
		Status:                StatusActive,
	}
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalid(field, "must not be blank")
	}
	return v, nil
}
