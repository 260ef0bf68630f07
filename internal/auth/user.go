package auth

// User is an account that can log in. The password field holds a one-way
// digest, or a legacy plaintext value until the first successful login
// migrates it.
type User struct {
	id       UserID
	names    UserNames
	email    UserEmail
	password string
	status   AccountStatus
	roles    []*Role
}

// NewUser creates an enabled, active account with no roles. passwordDigest
// must already be hashed.
func NewUser(names UserNames, email UserEmail, passwordDigest string) (*User, error) {
	return RestoreUser(NewUserID(), names, email, passwordDigest, ActiveAccount(), nil)
}

// RestoreUser rebuilds a user from persisted state. Duplicate role ids in
// the input collapse to the first occurrence.
func RestoreUser(id UserID, names UserNames, email UserEmail, password string, status AccountStatus, roles []*Role) (*User, error) {
	if id.IsZero() {
		return nil, nullValue("userId")
	}
	if names.IsZero() {
		return nil, nullValue("names")
	}
	if email.IsZero() {
		return nil, nullValue("email")
	}
	status.Status = defaultStatus(status.Status)
	u := &User{id: id, names: names, email: email, password: password, status: status}
	for _, r := range roles {
		if r == nil || u.hasRole(r.ID()) {
			continue
		}
		u.roles = append(u.roles, r.Clone())
	}
	return u, nil
}

func (u *User) ID() UserID            { return u.id }
func (u *User) Names() UserNames      { return u.names }
func (u *User) Email() UserEmail      { return u.email }
func (u *User) Status() AccountStatus { return u.status }
func (u *User) IsEnabled() bool       { return u.status.Enabled }

// Password returns the stored secret and whether one is present.
func (u *User) Password() (string, bool) { return u.password, u.password != "" }

// Roles returns a copy of the role set.
func (u *User) Roles() []*Role {
	out := make([]*Role, 0, len(u.roles))
	for _, r := range u.roles {
		out = append(out, r.Clone())
	}
	return out
}

func (u *User) RoleIDs() []RoleID {
	out := make([]RoleID, 0, len(u.roles))
	for _, r := range u.roles {
		out = append(out, r.ID())
	}
	return out
}

func (u *User) HasRoles() bool               { return len(u.roles) > 0 }
func (u *User) HasRole(id RoleID) bool       { return u.hasRole(id) }
func (u *User) ChangeStatus(s AccountStatus) { u.status = s }

func (u *User) ChangeNames(names UserNames) error {
	if names.IsZero() {
		return nullValue("names")
	}
	u.names = names
	return nil
}

func (u *User) ChangeEmail(email UserEmail) error {
	if email.IsZero() {
		return nullValue("email")
	}
	u.email = email
	return nil
}

// ChangePassword stores a new digest.
func (u *User) ChangePassword(digest string) error {
	if digest == "" {
		return nullValue("password")
	}
	u.password = digest
	return nil
}

func (u *User) AddRole(r *Role) error {
	if r == nil {
		return nullValue("role")
	}
	if u.hasRole(r.ID()) {
		return ErrRoleAlreadyAssigned
	}
	u.roles = append(u.roles, r.Clone())
	return nil
}

func (u *User) RemoveRole(id RoleID) error {
	for i, r := range u.roles {
		if r.ID() == id {
			u.roles = append(u.roles[:i:i], u.roles[i+1:]...)
			return nil
		}
	}
	return ErrRoleNotAssigned
}

// Activate enables the account and marks it active.
func (u *User) Activate() {
	u.status.Enabled = true
	u.status.Status = StatusActive
}

// Deactivate disables the account and marks it inactive.
func (u *User) Deactivate() {
	u.status.Enabled = false
	u.status.Status = StatusInactive
}

// RoleNames lists role names in role-set order.
func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.roles))
	for _, r := range u.roles {
		out = append(out, r.Name().String())
	}
	return out
}

// PermissionNames lists the distinct permission names across all roles,
// in first-seen order.
func (u *User) PermissionNames() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range u.roles {
		for _, p := range r.permissions {
			name := p.Name().String()
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.roles = u.Roles()
	return &c
}

func (u *User) hasRole(id RoleID) bool {
	for _, r := range u.roles {
		if r.ID() == id {
			return true
		}
	}
	return false
}
