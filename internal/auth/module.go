package auth

// Module is a navigable feature area of the client application that
// permissions can be grouped under.
type Module struct {
	id     ModuleID
	name   ModuleName
	path   ModulePath
	icon   ModuleIcon
	status Status
}

// NewModule creates an active module with a fresh identifier.
func NewModule(name ModuleName, path ModulePath, icon ModuleIcon) (*Module, error) {
	return RestoreModule(NewModuleID(), name, path, icon, StatusActive)
}

// RestoreModule rebuilds a module from persisted state.
func RestoreModule(id ModuleID, name ModuleName, path ModulePath, icon ModuleIcon, status Status) (*Module, error) {
	switch {
	case id.IsZero():
		return nil, nullValue("moduleId")
	case name.IsZero():
		return nil, nullValue("moduleName")
	case path.IsZero():
		return nil, nullValue("modulePath")
	case icon.IsZero():
		return nil, nullValue("moduleIcon")
	}
	return &Module{id: id, name: name, path: path, icon: icon, status: defaultStatus(status)}, nil
}

func (m *Module) ID() ModuleID     { return m.id }
func (m *Module) Name() ModuleName { return m.name }
func (m *Module) Path() ModulePath { return m.path }
func (m *Module) Icon() ModuleIcon { return m.icon }
func (m *Module) Status() Status   { return m.status }

func (m *Module) UpdateName(name ModuleName) error {
	if name.IsZero() {
		return nullValue("moduleName")
	}
	m.name = name
	return nil
}

func (m *Module) UpdatePath(path ModulePath) error {
	if path.IsZero() {
		return nullValue("modulePath")
	}
	m.path = path
	return nil
}

func (m *Module) UpdateIcon(icon ModuleIcon) error {
	if icon.IsZero() {
		return nullValue("moduleIcon")
	}
	m.icon = icon
	return nil
}

// Activate and Deactivate only flip the status label. Permissions that
// reference the module are left untouched.
func (m *Module) Activate()   { m.status = StatusActive }
func (m *Module) Deactivate() { m.status = StatusInactive }

func (m *Module) Clone() *Module {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

func defaultStatus(s Status) Status {
	if s == "" {
		return StatusActive
	}
	return s
}
