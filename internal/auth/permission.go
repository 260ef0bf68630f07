package auth

// Permission is a named capability. Name uniqueness is enforced by the
// store, not here.
type Permission struct {
	id          PermissionID
	name        PermissionName
	description PermissionDescription
	module      *PermissionModule
	status      Status
}

// NewPermission creates an active permission. A zero description means
// none; module may be nil.
func NewPermission(name PermissionName, description PermissionDescription, module *PermissionModule) (*Permission, error) {
	return RestorePermission(NewPermissionID(), name, description, module, StatusActive)
}

func RestorePermission(id PermissionID, name PermissionName, description PermissionDescription, module *PermissionModule, status Status) (*Permission, error) {
	if id.IsZero() {
		return nil, nullValue("permissionId")
	}
	if name.IsZero() {
		return nil, nullValue("permissionName")
	}
	p := &Permission{id: id, name: name, description: description, status: defaultStatus(status)}
	if module != nil {
		mod := *module
		p.module = &mod
	}
	return p, nil
}

func (p *Permission) ID() PermissionID                   { return p.id }
func (p *Permission) Name() PermissionName               { return p.name }
func (p *Permission) Description() PermissionDescription { return p.description }
func (p *Permission) Status() Status                     { return p.status }

// Module returns the module snapshot, if the permission belongs to one.
func (p *Permission) Module() (PermissionModule, bool) {
	if p.module == nil {
		return PermissionModule{}, false
	}
	return *p.module, true
}

func (p *Permission) UpdateName(name PermissionName) error {
	if name.IsZero() {
		return nullValue("permissionName")
	}
	p.name = name
	return nil
}

// UpdateDescription replaces the description; the zero value clears it.
func (p *Permission) UpdateDescription(description PermissionDescription) {
	p.description = description
}

func (p *Permission) AttachModule(module PermissionModule) { p.module = &module }
func (p *Permission) DetachModule()                        { p.module = nil }

func (p *Permission) Activate()   { p.status = StatusActive }
func (p *Permission) Deactivate() { p.status = StatusInactive }

func (p *Permission) Clone() *Permission {
	if p == nil {
		return nil
	}
	c := *p
	if p.module != nil {
		mod := *p.module
		c.module = &mod
	}
	return &c
}
