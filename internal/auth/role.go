package auth

// Role groups permissions. The permission set is keyed by permission id
// and keeps insertion order so derived authority lists are deterministic.
type Role struct {
	id          RoleID
	name        RoleName
	description RoleDescription
	permissions []*Permission
	status      Status
}

func NewRole(name RoleName, description RoleDescription) (*Role, error) {
	return RestoreRole(NewRoleID(), name, description, nil, StatusActive)
}

// RestoreRole rebuilds a role from persisted state. Duplicate permission
// ids in the input collapse to the first occurrence.
func RestoreRole(id RoleID, name RoleName, description RoleDescription, permissions []*Permission, status Status) (*Role, error) {
	if id.IsZero() {
		return nil, nullValue("roleId")
	}
	if name.IsZero() {
		return nil, nullValue("roleName")
	}
	r := &Role{id: id, name: name, description: description, status: defaultStatus(status)}
	for _, p := range permissions {
		if p == nil || r.hasPermission(p.ID()) {
			continue
		}
		r.permissions = append(r.permissions, p.Clone())
	}
	return r, nil
}

func (r *Role) ID() RoleID                   { return r.id }
func (r *Role) Name() RoleName               { return r.name }
func (r *Role) Description() RoleDescription { return r.description }
func (r *Role) Status() Status               { return r.status }

// Permissions returns a copy of the permission set.
func (r *Role) Permissions() []*Permission {
	out := make([]*Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		out = append(out, p.Clone())
	}
	return out
}

func (r *Role) PermissionIDs() []PermissionID {
	out := make([]PermissionID, 0, len(r.permissions))
	for _, p := range r.permissions {
		out = append(out, p.ID())
	}
	return out
}

func (r *Role) HasPermission(id PermissionID) bool { return r.hasPermission(id) }

func (r *Role) AddPermission(p *Permission) error {
	if p == nil {
		return nullValue("permission")
	}
	if r.hasPermission(p.ID()) {
		return ErrPermissionAlreadyAssigned
	}
	r.permissions = append(r.permissions, p.Clone())
	return nil
}

func (r *Role) RemovePermission(id PermissionID) error {
	for i, p := range r.permissions {
		if p.ID() == id {
			r.permissions = append(r.permissions[:i:i], r.permissions[i+1:]...)
			return nil
		}
	}
	return ErrPermissionNotAssigned
}

func (r *Role) UpdateName(name RoleName) error {
	if name.IsZero() {
		return nullValue("roleName")
	}
	r.name = name
	return nil
}

func (r *Role) UpdateDescription(description RoleDescription) { r.description = description }

func (r *Role) Activate()   { r.status = StatusActive }
func (r *Role) Deactivate() { r.status = StatusInactive }

func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	c := *r
	c.permissions = r.Permissions()
	return &c
}

func (r *Role) hasPermission(id PermissionID) bool {
	for _, p := range r.permissions {
		if p.ID() == id {
			return true
		}
	}
	return false
}
