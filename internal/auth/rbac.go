package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// RBACService orchestrates the administrative use cases over modules,
// permissions, roles and users. Every mutation loads the aggregate, changes
// it and saves it back explicitly.
type RBACService struct {
	store  Store
	hasher PasswordHasher
	logger *zap.Logger
}

func NewRBACService(store Store, hasher PasswordHasher, logger *zap.Logger) (*RBACService, error) {
	if store == nil || hasher == nil {
		return nil, errors.New("rbac service requires a store and a hasher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RBACService{store: store, hasher: hasher, logger: logger}, nil
}

// --- modules ---

type CreateModuleInput struct {
	Name string
	Path string
	Icon string
}

// ModuleUpdate carries a partial update; nil fields are left unchanged.
type ModuleUpdate struct {
	Name *string
	Path *string
	Icon *string
}

func (s *RBACService) CreateModule(ctx context.Context, in CreateModuleInput) (*Module, error) {
	name, err := NewModuleName(in.Name)
	if err != nil {
		return nil, err
	}
	path, err := NewModulePath(in.Path)
	if err != nil {
		return nil, err
	}
	icon, err := NewModuleIcon(in.Icon)
	if err != nil {
		return nil, err
	}
	m, err := NewModule(name, path, icon)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveModule(ctx, m); err != nil {
		return nil, fmt.Errorf("save module: %w", err)
	}
	return m, nil
}

func (s *RBACService) UpdateModule(ctx context.Context, id ModuleID, upd ModuleUpdate) (*Module, error) {
	m, err := s.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name, err := NewModuleName(*upd.Name)
		if err != nil {
			return nil, err
		}
		if err := m.UpdateName(name); err != nil {
			return nil, err
		}
	}
	if upd.Path != nil {
		path, err := NewModulePath(*upd.Path)
		if err != nil {
			return nil, err
		}
		if err := m.UpdatePath(path); err != nil {
			return nil, err
		}
	}
	if upd.Icon != nil {
		icon, err := NewModuleIcon(*upd.Icon)
		if err != nil {
			return nil, err
		}
		if err := m.UpdateIcon(icon); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveModule(ctx, m); err != nil {
		return nil, fmt.Errorf("save module: %w", err)
	}
	return m, nil
}

func (s *RBACService) ActivateModule(ctx context.Context, id ModuleID) (*Module, error) {
	return s.setModuleStatus(ctx, id, (*Module).Activate)
}

func (s *RBACService) DeactivateModule(ctx context.Context, id ModuleID) (*Module, error) {
	return s.setModuleStatus(ctx, id, (*Module).Deactivate)
}

func (s *RBACService) setModuleStatus(ctx context.Context, id ModuleID, apply func(*Module)) (*Module, error) {
	m, err := s.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(m)
	if err := s.store.SaveModule(ctx, m); err != nil {
		return nil, fmt.Errorf("save module: %w", err)
	}
	return m, nil
}

func (s *RBACService) GetModule(ctx context.Context, id ModuleID) (*Module, error) {
	m, err := s.store.FindModuleByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrModuleNotFound)
	}
	return m, nil
}

func (s *RBACService) ListModules(ctx context.Context) ([]*Module, error) {
	return s.store.ListModules(ctx)
}

func (s *RBACService) SearchModules(ctx context.Context, name string, page PageRequest) (Page[*Module], error) {
	return s.store.SearchModules(ctx, name, page.Normalize())
}

// --- permissions ---

type CreatePermissionInput struct {
	Name string
	// Description is optional; a supplied blank description is rejected.
	Description *string
	ModuleID    *ModuleID
}

type PermissionUpdate struct {
	Name        *string
	Description *string
	ModuleID    *ModuleID
}

func (s *RBACService) CreatePermission(ctx context.Context, in CreatePermissionInput) (*Permission, error) {
	name, err := NewPermissionName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePermissionNameFree(ctx, name, PermissionID{}); err != nil {
		return nil, err
	}
	var desc PermissionDescription
	if in.Description != nil {
		if desc, err = NewPermissionDescription(*in.Description); err != nil {
			return nil, err
		}
	}
	var module *PermissionModule
	if in.ModuleID != nil {
		snap, err := s.moduleSnapshot(ctx, *in.ModuleID)
		if err != nil {
			return nil, err
		}
		module = &snap
	}
	p, err := NewPermission(name, desc, module)
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePermission(ctx, p); err != nil {
		return nil, conflict(fmt.Errorf("save permission: %w", err), ErrPermissionAlreadyExists)
	}
	return p, nil
}

func (s *RBACService) UpdatePermission(ctx context.Context, id PermissionID, upd PermissionUpdate) (*Permission, error) {
	p, err := s.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name, err := NewPermissionName(*upd.Name)
		if err != nil {
			return nil, err
		}
		if err := s.ensurePermissionNameFree(ctx, name, id); err != nil {
			return nil, err
		}
		if err := p.UpdateName(name); err != nil {
			return nil, err
		}
	}
	if upd.Description != nil {
		desc, err := NewPermissionDescription(*upd.Description)
		if err != nil {
			return nil, err
		}
		p.UpdateDescription(desc)
	}
	if upd.ModuleID != nil {
		snap, err := s.moduleSnapshot(ctx, *upd.ModuleID)
		if err != nil {
			return nil, err
		}
		p.AttachModule(snap)
	}
	if err := s.store.SavePermission(ctx, p); err != nil {
		return nil, conflict(fmt.Errorf("save permission: %w", err), ErrPermissionAlreadyExists)
	}
	return p, nil
}

func (s *RBACService) ActivatePermission(ctx context.Context, id PermissionID) (*Permission, error) {
	return s.setPermissionStatus(ctx, id, (*Permission).Activate)
}

func (s *RBACService) DeactivatePermission(ctx context.Context, id PermissionID) (*Permission, error) {
	return s.setPermissionStatus(ctx, id, (*Permission).Deactivate)
}

func (s *RBACService) setPermissionStatus(ctx context.Context, id PermissionID, apply func(*Permission)) (*Permission, error) {
	p, err := s.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(p)
	if err := s.store.SavePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("save permission: %w", err)
	}
	return p, nil
}

func (s *RBACService) GetPermission(ctx context.Context, id PermissionID) (*Permission, error) {
	p, err := s.store.FindPermissionByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPermissionNotFound)
	}
	return p, nil
}

func (s *RBACService) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *RBACService) SearchPermissions(ctx context.Context, name string, page PageRequest) (Page[*Permission], error) {
	return s.store.SearchPermissions(ctx, name, page.Normalize())
}

func (s *RBACService) ensurePermissionNameFree(ctx context.Context, name PermissionName, self PermissionID) error {
	existing, err := s.store.FindPermissionByName(ctx, name.String())
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find permission: %w", err)
	case existing.ID() != self:
		return ErrPermissionAlreadyExists
	}
	return nil
}

func (s *RBACService) moduleSnapshot(ctx context.Context, id ModuleID) (PermissionModule, error) {
	m, err := s.GetModule(ctx, id)
	if err != nil {
		return PermissionModule{}, err
	}
	return NewPermissionModule(m.ID(), m.Name().String())
}

// --- roles ---

type CreateRoleInput struct {
	Name        string
	Description string
}

type RoleUpdate struct {
	Name        *string
	Description *string
}

func (s *RBACService) CreateRole(ctx context.Context, in CreateRoleInput) (*Role, error) {
	name, err := NewRoleName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRoleNameFree(ctx, name, RoleID{}); err != nil {
		return nil, err
	}
	r, err := NewRole(name, NewRoleDescription(in.Description))
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveRole(ctx, r); err != nil {
		return nil, conflict(fmt.Errorf("save role: %w", err), ErrRoleAlreadyExists)
	}
	return r, nil
}

func (s *RBACService) UpdateRole(ctx context.Context, id RoleID, upd RoleUpdate) (*Role, error) {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name, err := NewRoleName(*upd.Name)
		if err != nil {
			return nil, err
		}
		if err := s.ensureRoleNameFree(ctx, name, id); err != nil {
			return nil, err
		}
		if err := r.UpdateName(name); err != nil {
			return nil, err
		}
	}
	if upd.Description != nil {
		r.UpdateDescription(NewRoleDescription(*upd.Description))
	}
	if err := s.store.SaveRole(ctx, r); err != nil {
		return nil, conflict(fmt.Errorf("save role: %w", err), ErrRoleAlreadyExists)
	}
	return r, nil
}

func (s *RBACService) ActivateRole(ctx context.Context, id RoleID) (*Role, error) {
	return s.setRoleStatus(ctx, id, (*Role).Activate)
}

func (s *RBACService) DeactivateRole(ctx context.Context, id RoleID) (*Role, error) {
	return s.setRoleStatus(ctx, id, (*Role).Deactivate)
}

func (s *RBACService) setRoleStatus(ctx context.Context, id RoleID, apply func(*Role)) (*Role, error) {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(r)
	if err := s.store.SaveRole(ctx, r); err != nil {
		return nil, fmt.Errorf("save role: %w", err)
	}
	return r, nil
}

func (s *RBACService) GetRole(ctx context.Context, id RoleID) (*Role, error) {
	r, err := s.store.FindRoleByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrRoleNotFound)
	}
	return r, nil
}

func (s *RBACService) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *RBACService) SearchRoles(ctx context.Context, name string, page PageRequest) (Page[*Role], error) {
	return s.store.SearchRoles(ctx, name, page.Normalize())
}

func (s *RBACService) AddPermissionToRole(ctx context.Context, roleID RoleID, permissionID PermissionID) (*Role, error) {
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	p, err := s.GetPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if err := r.AddPermission(p); err != nil {
		return nil, err
	}
	if err := s.store.SaveRole(ctx, r); err != nil {
		return nil, fmt.Errorf("save role: %w", err)
	}
	s.logger.Info("permission added to role",
		zap.String("role_id", roleID.String()),
		zap.String("permission_id", permissionID.String()),
	)
	return r, nil
}

func (s *RBACService) RemovePermissionFromRole(ctx context.Context, roleID RoleID, permissionID PermissionID) (*Role, error) {
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := r.RemovePermission(permissionID); err != nil {
		return nil, err
	}
	if err := s.store.SaveRole(ctx, r); err != nil {
		return nil, fmt.Errorf("save role: %w", err)
	}
	s.logger.Info("permission removed from role",
		zap.String("role_id", roleID.String()),
		zap.String("permission_id", permissionID.String()),
	)
	return r, nil
}

func (s *RBACService) ensureRoleNameFree(ctx context.Context, name RoleName, self RoleID) error {
	existing, err := s.store.FindRoleByName(ctx, name.String())
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find role: %w", err)
	case existing.ID() != self:
		return ErrRoleAlreadyExists
	}
	return nil
}

// --- users ---

type CreateUserInput struct {
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	Password   string
}

type UserUpdate struct {
	FirstName  *string
	MiddleName *string
	LastName   *string
	Email      *string
	Password   *string
}

func (s *RBACService) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	names, err := NewUserNames(in.FirstName, in.LastName, in.MiddleName)
	if err != nil {
		return nil, err
	}
	email, err := NewUserEmail(NormalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	password, err := NewUserPassword(in.Password)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, UserID{}); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(password.Plaintext())
	if err != nil {
		return nil, err
	}
	u, err := NewUser(names, email, digest)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, conflict(fmt.Errorf("save user: %w", err), ErrUserAlreadyExists)
	}
	return u, nil
}

func (s *RBACService) UpdateUser(ctx context.Context, id UserID, upd UserUpdate) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FirstName != nil || upd.LastName != nil || upd.MiddleName != nil {
		current := u.Names()
		names, err := NewUserNames(
			valueOr(upd.FirstName, current.First()),
			valueOr(upd.LastName, current.Last()),
			valueOr(upd.MiddleName, current.Middle()),
		)
		if err != nil {
			return nil, err
		}
		if err := u.ChangeNames(names); err != nil {
			return nil, err
		}
	}
	if upd.Email != nil {
		email, err := NewUserEmail(NormalizeEmail(*upd.Email))
		if err != nil {
			return nil, err
		}
		if email != u.Email() {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
		}
		if err := u.ChangeEmail(email); err != nil {
			return nil, err
		}
	}
	if upd.Password != nil {
		password, err := NewUserPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		digest, err := s.hasher.Hash(password.Plaintext())
		if err != nil {
			return nil, err
		}
		if err := u.ChangePassword(digest); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, conflict(fmt.Errorf("save user: %w", err), ErrUserAlreadyExists)
	}
	return u, nil
}

func (s *RBACService) ActivateUser(ctx context.Context, id UserID) (*User, error) {
	return s.setUserStatus(ctx, id, (*User).Activate)
}

func (s *RBACService) DeactivateUser(ctx context.Context, id UserID) (*User, error) {
	return s.setUserStatus(ctx, id, (*User).Deactivate)
}

func (s *RBACService) setUserStatus(ctx context.Context, id UserID, apply func(*User)) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(u)
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

func (s *RBACService) GetUser(ctx context.Context, id UserID) (*User, error) {
	u, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

func (s *RBACService) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.ListUsers(ctx)
}

func (s *RBACService) SearchUsers(ctx context.Context, q UserQuery, page PageRequest) (Page[*User], error) {
	q.Email = NormalizeEmail(q.Email)
	return s.store.SearchUsers(ctx, q, page.Normalize())
}

func (s *RBACService) AssignRole(ctx context.Context, userID UserID, roleID RoleID) (*User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := u.AddRole(r); err != nil {
		return nil, err
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.logger.Info("role assigned",
		zap.String("user_id", userID.String()),
		zap.String("role_id", roleID.String()),
	)
	return u, nil
}

func (s *RBACService) RevokeRole(ctx context.Context, userID UserID, roleID RoleID) (*User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.RemoveRole(roleID); err != nil {
		return nil, err
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.logger.Info("role revoked",
		zap.String("user_id", userID.String()),
		zap.String("role_id", roleID.String()),
	)
	return u, nil
}

func (s *RBACService) ensureEmailFree(ctx context.Context, email UserEmail, self UserID) error {
	existing, err := s.store.FindUserByEmail(ctx, email.String())
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find user: %w", err)
	case existing.ID() != self:
		return ErrUserAlreadyExists
	}
	return nil
}

// notFound narrows a generic store miss to the aggregate-specific error.
func notFound(err, specific error) error {
	if errors.Is(err, ErrNotFound) && !errors.Is(err, specific) {
		return specific
	}
	return err
}

// conflict narrows a store uniqueness violation to the aggregate-specific error.
func conflict(err, specific error) error {
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w: %v", specific, err)
	}
	return err
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
