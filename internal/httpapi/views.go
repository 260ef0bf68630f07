package httpapi

import "github.com/brunoSandoval210/authorization-service/internal/auth"

type moduleView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Icon   string `json:"icon"`
	Status string `json:"status"`
}

func newModuleView(m *auth.Module) moduleView {
	return moduleView{
		ID:     m.ID().String(),
		Name:   m.Name().String(),
		Path:   m.Path().String(),
		Icon:   m.Icon().String(),
		Status: m.Status().String(),
	}
}

type moduleRefView struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type permissionView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Module      *moduleRefView `json:"module,omitempty"`
	Status      string         `json:"status"`
}

func newPermissionView(p *auth.Permission) permissionView {
	v := permissionView{
		ID:          p.ID().String(),
		Name:        p.Name().String(),
		Description: p.Description().String(),
		Status:      p.Status().String(),
	}
	if m, ok := p.Module(); ok {
		v.Module = &moduleRefView{ID: m.ID.String(), Name: m.Name}
	}
	return v
}

type roleView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	Permissions []permissionView `json:"permissions"`
}

func newRoleView(r *auth.Role) roleView {
	perms := r.Permissions()
	v := roleView{
		ID:          r.ID().String(),
		Name:        r.Name().String(),
		Description: r.Description().String(),
		Status:      r.Status().String(),
		Permissions: make([]permissionView, 0, len(perms)),
	}
	for _, p := range perms {
		v.Permissions = append(v.Permissions, newPermissionView(p))
	}
	return v
}

// userView never carries the password.
type userView struct {
	ID                    string     `json:"id"`
	FirstName             string     `json:"first_name"`
	MiddleName            string     `json:"middle_name,omitempty"`
	LastName              string     `json:"last_name"`
	Email                 string     `json:"email"`
	Enabled               bool       `json:"enabled"`
	AccountNonExpired     bool       `json:"account_non_expired"`
	AccountNonLocked      bool       `json:"account_non_locked"`
	CredentialsNonExpired bool       `json:"credentials_non_expired"`
	Status                string     `json:"status"`
	Roles                 []roleView `json:"roles"`
}

func newUserView(u *auth.User) userView {
	names := u.Names()
	status := u.Status()
	roles := u.Roles()
	v := userView{
		ID:                    u.ID().String(),
		FirstName:             names.First(),
		MiddleName:            names.Middle(),
		LastName:              names.Last(),
		Email:                 u.Email().String(),
		Enabled:               status.Enabled,
		AccountNonExpired:     status.NonExpired,
		AccountNonLocked:      status.NonLocked,
		CredentialsNonExpired: status.CredentialsNonExpired,
		Status:                status.Status.String(),
		Roles:                 make([]roleView, 0, len(roles)),
	}
	for _, r := range roles {
		v.Roles = append(v.Roles, newRoleView(r))
	}
	return v
}
