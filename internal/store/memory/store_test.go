package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

func permission(t *testing.T, name string) *auth.Permission {
	t.Helper()
	n, err := auth.NewPermissionName(name)
	require.NoError(t, err)
	p, err := auth.NewPermission(n, auth.PermissionDescription{}, nil)
	require.NoError(t, err)
	return p
}

func role(t *testing.T, name string, perms ...*auth.Permission) *auth.Role {
	t.Helper()
	n, err := auth.NewRoleName(name)
	require.NoError(t, err)
	r, err := auth.NewRole(n, auth.RoleDescription{})
	require.NoError(t, err)
	for _, p := range perms {
		require.NoError(t, r.AddPermission(p))
	}
	return r
}

func user(t *testing.T, email, password string, roles ...*auth.Role) *auth.User {
	t.Helper()
	names, err := auth.NewUserNames("Ana", "Diaz", "")
	require.NoError(t, err)
	e, err := auth.NewUserEmail(email)
	require.NoError(t, err)
	u, err := auth.NewUser(names, e, password)
	require.NoError(t, err)
	for _, r := range roles {
		require.NoError(t, u.AddRole(r))
	}
	return u
}

func TestSaveEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.SavePermission(ctx, permission(t, "READ")))
	assert.ErrorIs(t, s.SavePermission(ctx, permission(t, "READ")), auth.ErrPermissionAlreadyExists)

	require.NoError(t, s.SaveRole(ctx, role(t, "ADMIN")))
	assert.ErrorIs(t, s.SaveRole(ctx, role(t, "ADMIN")), auth.ErrRoleAlreadyExists)

	require.NoError(t, s.SaveUser(ctx, user(t, "ana@x.com", "pwd")))
	err := s.SaveUser(ctx, user(t, "ANA@x.com", "pwd"))
	assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	assert.ErrorIs(t, err, auth.ErrConflict)
}

func TestSaveRejectsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.ErrorIs(t, s.SaveRole(ctx, role(t, "ADMIN", permission(t, "READ"))), auth.ErrPermissionNotFound)
	assert.ErrorIs(t, s.SaveUser(ctx, user(t, "ana@x.com", "pwd", role(t, "ADMIN"))), auth.ErrRoleNotFound)
}

func TestReadsResolveFreshSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	read := permission(t, "READ")
	require.NoError(t, s.SavePermission(ctx, read))
	admin := role(t, "ADMIN", read)
	require.NoError(t, s.SaveRole(ctx, admin))
	ana := user(t, "ana@x.com", "pwd", admin)
	require.NoError(t, s.SaveUser(ctx, ana))

	renamed, err := auth.NewPermissionName("READ_ALL")
	require.NoError(t, err)
	require.NoError(t, read.UpdateName(renamed))
	require.NoError(t, s.SavePermission(ctx, read))

	loaded, err := s.FindUserByEmail(ctx, " ANA@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN"}, loaded.RoleNames())
	assert.Equal(t, []string{"READ_ALL"}, loaded.PermissionNames())

	loaded.Deactivate()
	again, err := s.FindUserByID(ctx, ana.ID())
	require.NoError(t, err)
	assert.True(t, again.IsEnabled(), "mutating a loaded user must not touch the store")
}

func TestReplacePasswordIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ana := user(t, "ana@x.com", "legacy")
	require.NoError(t, s.SaveUser(ctx, ana))

	require.NoError(t, s.ReplacePassword(ctx, ana.ID(), "legacy", "$2a$04$first"))
	assert.ErrorIs(t, s.ReplacePassword(ctx, ana.ID(), "legacy", "$2a$04$second"), auth.ErrStalePassword)
	assert.ErrorIs(t, s.ReplacePassword(ctx, auth.NewUserID(), "legacy", "x"), auth.ErrUserNotFound)

	loaded, err := s.FindUserByID(ctx, ana.ID())
	require.NoError(t, err)
	pwd, _ := loaded.Password()
	assert.Equal(t, "$2a$04$first", pwd)
}

func TestSearchPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, name := range []string{"READ_A", "READ_B", "READ_C", "WRITE"} {
		require.NoError(t, s.SavePermission(ctx, permission(t, name)))
	}

	first, err := s.SearchPermissions(ctx, "read", auth.PageRequest{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.TotalItems)
	assert.Equal(t, 2, first.TotalPages)
	assert.False(t, first.Last)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "READ_A", first.Items[0].Name().String())

	second, err := s.SearchPermissions(ctx, "read", auth.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.True(t, second.Last)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "READ_C", second.Items[0].Name().String())

	beyond, err := s.SearchPermissions(ctx, "read", auth.PageRequest{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
}

func TestSearchActivity(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendActivity(ctx, audit.Entry{ID: "1", Module: "roles", Action: "CREATE", Timestamp: day}))
	require.NoError(t, s.AppendActivity(ctx, audit.Entry{ID: "2", Module: "roles", Action: "UPDATE", Timestamp: day.Add(time.Hour)}))
	require.NoError(t, s.AppendActivity(ctx, audit.Entry{ID: "3", Module: "users", Action: "CREATE", Timestamp: day.Add(24 * time.Hour)}))

	page, err := s.SearchActivity(ctx, audit.Query{Module: "ROLES"}, auth.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "2", page.Items[0].ID, "newest first")

	page, err = s.SearchActivity(ctx, audit.Query{Date: day.Add(24 * time.Hour)}, auth.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "3", page.Items[0].ID)
}

func TestSearchWithHugePageIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.SavePermission(ctx, permission(t, "READ_A")))

	var (
		page auth.Page[*auth.Module]
		err  error
	)
	require.NotPanics(t, func() {
		page, err = s.SearchModules(ctx, "", auth.PageRequest{Page: 1e17, Size: 100})
	})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	perms, err := s.SearchPermissions(ctx, "", auth.PageRequest{Page: math.MaxInt, Size: 1})
	require.NoError(t, err)
	assert.Empty(t, perms.Items)
	assert.Equal(t, int64(1), perms.TotalItems)
}
