package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brunoSandoval210/authorization-service/internal/auth"
	"github.com/brunoSandoval210/authorization-service/internal/store/memory"
)

func newRBAC(t *testing.T) (*auth.RBACService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	hasher, err := auth.NewHasher(auth.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	svc, err := auth.NewRBACService(store, hasher, nil)
	require.NoError(t, err)
	return svc, store
}

func ptr[T any](v T) *T { return &v }

func TestRBACModules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRBAC(t)

	m, err := svc.CreateModule(ctx, auth.CreateModuleInput{Name: " Reports ", Path: "/reports", Icon: "chart"})
	require.NoError(t, err)
	assert.Equal(t, "Reports", m.Name().String())
	assert.Equal(t, auth.StatusActive, m.Status())

	_, err = svc.CreateModule(ctx, auth.CreateModuleInput{Name: "Bad", Path: "reports", Icon: "x"})
	require.ErrorIs(t, err, auth.ErrInvalidInput)

	updated, err := svc.UpdateModule(ctx, m.ID(), auth.ModuleUpdate{Path: ptr("/r")})
	require.NoError(t, err)
	assert.Equal(t, "/r", updated.Path().String())
	assert.Equal(t, "Reports", updated.Name().String())

	off, err := svc.DeactivateModule(ctx, m.ID())
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInactive, off.Status())

	_, err = svc.GetModule(ctx, auth.NewModuleID())
	require.ErrorIs(t, err, auth.ErrModuleNotFound)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestRBACPermissions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRBAC(t)
	m, err := svc.CreateModule(ctx, auth.CreateModuleInput{Name: "Reports", Path: "/reports", Icon: "chart"})
	require.NoError(t, err)
	moduleID := m.ID()

	p, err := svc.CreatePermission(ctx, auth.CreatePermissionInput{Name: "READ", Description: ptr("Read things"), ModuleID: &moduleID})
	require.NoError(t, err)
	snap, ok := p.Module()
	require.True(t, ok)
	assert.Equal(t, "Reports", snap.Name)

	_, err = svc.CreatePermission(ctx, auth.CreatePermissionInput{Name: "READ"})
	require.ErrorIs(t, err, auth.ErrPermissionAlreadyExists)
	assert.ErrorIs(t, err, auth.ErrConflict)

	_, err = svc.CreatePermission(ctx, auth.CreatePermissionInput{Name: "WRITE", Description: ptr("   ")})
	require.ErrorIs(t, err, auth.ErrInvalidInput)

	_, err = svc.CreatePermission(ctx, auth.CreatePermissionInput{Name: "WRITE", ModuleID: ptr(auth.NewModuleID())})
	require.ErrorIs(t, err, auth.ErrModuleNotFound)

	renamed, err := svc.UpdatePermission(ctx, p.ID(), auth.PermissionUpdate{Name: ptr("READ")})
	require.NoError(t, err, "renaming to its own name is not a conflict")
	assert.Equal(t, "READ", renamed.Name().String())

	page, err := svc.SearchPermissions(ctx, "rea", auth.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, auth.DefaultPageSize, page.Size)
}

func TestRBACRolePermissions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRBAC(t)
	read, err := svc.CreatePermission(ctx, auth.CreatePermissionInput{Name: "READ"})
	require.NoError(t, err)
	role, err := svc.CreateRole(ctx, auth.CreateRoleInput{Name: "ADMIN", Description: "  "})
	require.NoError(t, err)
	assert.True(t, role.Description().IsZero())

	_, err = svc.CreateRole(ctx, auth.CreateRoleInput{Name: "ADMIN"})
	require.ErrorIs(t, err, auth.ErrRoleAlreadyExists)

	role, err = svc.AddPermissionToRole(ctx, role.ID(), read.ID())
	require.NoError(t, err)
	assert.True(t, role.HasPermission(read.ID()))

	_, err = svc.AddPermissionToRole(ctx, role.ID(), read.ID())
	require.ErrorIs(t, err, auth.ErrPermissionAlreadyAssigned)

	_, err = svc.AddPermissionToRole(ctx, role.ID(), auth.NewPermissionID())
	require.ErrorIs(t, err, auth.ErrPermissionNotFound)

	loaded, err := svc.GetRole(ctx, role.ID())
	require.NoError(t, err)
	require.Len(t, loaded.Permissions(), 1)
	assert.Equal(t, "READ", loaded.Permissions()[0].Name().String())

	role, err = svc.RemovePermissionFromRole(ctx, role.ID(), read.ID())
	require.NoError(t, err)
	assert.False(t, role.HasPermission(read.ID()))

	_, err = svc.RemovePermissionFromRole(ctx, role.ID(), read.ID())
	require.ErrorIs(t, err, auth.ErrPermissionNotAssigned)
}

func TestRBACUsers(t *testing.T) {
	ctx := context.Background()
	svc, store := newRBAC(t)
	role, err := svc.CreateRole(ctx, auth.CreateRoleInput{Name: "ADMIN"})
	require.NoError(t, err)

	u, err := svc.CreateUser(ctx, auth.CreateUserInput{FirstName: "John", LastName: "Doe", Email: " John@X.com ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "john@x.com", u.Email().String())
	digest, ok := u.Password()
	require.True(t, ok)
	assert.True(t, auth.LooksHashed(digest))
	assert.True(t, u.IsEnabled())

	_, err = svc.CreateUser(ctx, auth.CreateUserInput{FirstName: "J", LastName: "D", Email: "john@x.com", Password: "secret123"})
	require.ErrorIs(t, err, auth.ErrUserAlreadyExists)

	_, err = svc.CreateUser(ctx, auth.CreateUserInput{FirstName: "J", LastName: "D", Email: "jane@x.com", Password: "short"})
	require.ErrorIs(t, err, auth.ErrWeakPassword)

	u, err = svc.AssignRole(ctx, u.ID(), role.ID())
	require.NoError(t, err)
	assert.True(t, u.HasRole(role.ID()))

	_, err = svc.AssignRole(ctx, u.ID(), role.ID())
	require.ErrorIs(t, err, auth.ErrRoleAlreadyAssigned)

	_, err = svc.AssignRole(ctx, auth.NewUserID(), role.ID())
	require.ErrorIs(t, err, auth.ErrUserNotFound)

	updated, err := svc.UpdateUser(ctx, u.ID(), auth.UserUpdate{MiddleName: ptr("Q"), Email: ptr("john@x.com")})
	require.NoError(t, err)
	assert.Equal(t, "Q", updated.Names().Middle())
	assert.Equal(t, "John", updated.Names().First())

	off, err := svc.DeactivateUser(ctx, u.ID())
	require.NoError(t, err)
	assert.False(t, off.IsEnabled())
	assert.Equal(t, auth.StatusInactive, off.Status().Status)

	page, err := svc.SearchUsers(ctx, auth.UserQuery{Status: auth.StatusInactive}, auth.PageRequest{Size: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.TotalItems)
	assert.True(t, page.Last)

	_, err = svc.RevokeRole(ctx, u.ID(), role.ID())
	require.NoError(t, err)
	_, err = svc.RevokeRole(ctx, u.ID(), role.ID())
	require.ErrorIs(t, err, auth.ErrRoleNotAssigned)

	stored, err := store.FindUserByID(ctx, u.ID())
	require.NoError(t, err)
	assert.False(t, stored.HasRoles())
}
