package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

var (
	moduleColumns     = []string{"id", "name", "path", "icon", "status"}
	permissionColumns = []string{"p.id", "p.name", "p.description", "p.module_id", "m.name", "p.status"}
	roleColumns       = []string{"r.id", "r.name", "r.description", "r.status"}
)

// --- modules ---

func (s *Store) FindModuleByID(ctx context.Context, id auth.ModuleID) (*auth.Module, error) {
	stmt, args, err := s.sb.Select(moduleColumns...).From("modules").
		Where(squirrel.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select module sql: %w", err)
	}
	m, err := scanModule(s.db.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrModuleNotFound
	}
	return m, err
}

func (s *Store) SaveModule(ctx context.Context, m *auth.Module) error {
	if m == nil {
		return auth.ErrInvalidInput
	}
	values := append([]any{m.ID().String(), m.Name().String(), m.Path().String(), m.Icon().String(), string(m.Status())}, s.auditValues(ctx)...)
	b := s.sb.Insert("modules").
		Columns(append(append([]string{}, moduleColumns...), auditColumns...)...).
		Values(values...).
		Suffix(upsertSuffix("name", "path", "icon", "status"))
	if _, err := exec(ctx, s.db, b); err != nil {
		return fmt.Errorf("upsert module: %w", mapWriteError(err, nil, nil))
	}
	return nil
}

func (s *Store) ListModules(ctx context.Context) ([]*auth.Module, error) {
	return s.selectModules(ctx, s.sb.Select(moduleColumns...).From("modules").OrderBy("name"))
}

func (s *Store) SearchModules(ctx context.Context, name string, page auth.PageRequest) (auth.Page[*auth.Module], error) {
	where := squirrel.And{}
	if name != "" {
		where = append(where, squirrel.ILike{"name": likePattern(name)})
	}
	total, err := s.count(ctx, "modules", where)
	if err != nil {
		return auth.Page[*auth.Module]{}, err
	}
	items, err := s.selectModules(ctx, window(s.sb.Select(moduleColumns...).From("modules").Where(where).OrderBy("name"), page))
	if err != nil {
		return auth.Page[*auth.Module]{}, err
	}
	return auth.NewPage(items, page, total), nil
}

func (s *Store) selectModules(ctx context.Context, b squirrel.SelectBuilder) ([]*auth.Module, error) {
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()
	var out []*auth.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanModule(row rowScanner) (*auth.Module, error) {
	var id, name, path, icon, status string
	if err := row.Scan(&id, &name, &path, &icon, &status); err != nil {
		return nil, err
	}
	mid, err := auth.ParseModuleID(id)
	if err != nil {
		return nil, err
	}
	n, err := auth.NewModuleName(name)
	if err != nil {
		return nil, err
	}
	p, err := auth.NewModulePath(path)
	if err != nil {
		return nil, err
	}
	i, err := auth.NewModuleIcon(icon)
	if err != nil {
		return nil, err
	}
	return auth.RestoreModule(mid, n, p, i, auth.Status(status))
}

// --- permissions ---

func (s *Store) permissionSelect() squirrel.SelectBuilder {
	return s.sb.Select(permissionColumns...).
		From("permissions p").
		LeftJoin("modules m ON m.id = p.module_id")
}

func (s *Store) FindPermissionByID(ctx context.Context, id auth.PermissionID) (*auth.Permission, error) {
	return s.findPermission(ctx, squirrel.Eq{"p.id": id.String()})
}

func (s *Store) FindPermissionByName(ctx context.Context, name string) (*auth.Permission, error) {
	return s.findPermission(ctx, squirrel.Eq{"p.name": name})
}

func (s *Store) findPermission(ctx context.Context, where squirrel.Sqlizer) (*auth.Permission, error) {
	stmt, args, err := s.permissionSelect().Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission sql: %w", err)
	}
	p, err := scanPermission(s.db.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrPermissionNotFound
	}
	return p, err
}

func (s *Store) SavePermission(ctx context.Context, p *auth.Permission) error {
	if p == nil {
		return auth.ErrInvalidInput
	}
	var moduleID sql.NullString
	if m, ok := p.Module(); ok {
		moduleID = sql.NullString{String: m.ID.String(), Valid: true}
	}
	values := append([]any{
		p.ID().String(),
		p.Name().String(),
		nullIfEmpty(p.Description().String()),
		moduleID,
		string(p.Status()),
	}, s.auditValues(ctx)...)
	b := s.sb.Insert("permissions").
		Columns(append([]string{"id", "name", "description", "module_id", "status"}, auditColumns...)...).
		Values(values...).
		Suffix(upsertSuffix("name", "description", "module_id", "status"))
	if _, err := exec(ctx, s.db, b); err != nil {
		return fmt.Errorf("upsert permission: %w", mapWriteError(err, auth.ErrPermissionAlreadyExists, auth.ErrModuleNotFound))
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]*auth.Permission, error) {
	return s.selectPermissions(ctx, s.permissionSelect().OrderBy("p.name"))
}

func (s *Store) SearchPermissions(ctx context.Context, name string, page auth.PageRequest) (auth.Page[*auth.Permission], error) {
	where := squirrel.And{}
	if name != "" {
		where = append(where, squirrel.ILike{"name": likePattern(name)})
	}
	total, err := s.count(ctx, "permissions", where)
	if err != nil {
		return auth.Page[*auth.Permission]{}, err
	}
	scoped := squirrel.And{}
	if name != "" {
		scoped = append(scoped, squirrel.ILike{"p.name": likePattern(name)})
	}
	items, err := s.selectPermissions(ctx, window(s.permissionSelect().Where(scoped).OrderBy("p.name"), page))
	if err != nil {
		return auth.Page[*auth.Permission]{}, err
	}
	return auth.NewPage(items, page, total), nil
}

func (s *Store) selectPermissions(ctx context.Context, b squirrel.SelectBuilder) ([]*auth.Permission, error) {
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()
	var out []*auth.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPermission(row rowScanner, prefix ...any) (*auth.Permission, error) {
	var (
		id, name, status      string
		description, moduleID sql.NullString
		moduleName            sql.NullString
	)
	dest := append(prefix, &id, &name, &description, &moduleID, &moduleName, &status)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return restorePermission(id, name, description, moduleID, moduleName, status)
}

func restorePermission(id, name string, description, moduleID, moduleName sql.NullString, status string) (*auth.Permission, error) {
	pid, err := auth.ParsePermissionID(id)
	if err != nil {
		return nil, err
	}
	n, err := auth.NewPermissionName(name)
	if err != nil {
		return nil, err
	}
	var desc auth.PermissionDescription
	if description.Valid && description.String != "" {
		if desc, err = auth.NewPermissionDescription(description.String); err != nil {
			return nil, err
		}
	}
	var module *auth.PermissionModule
	if moduleID.Valid {
		mid, err := auth.ParseModuleID(moduleID.String)
		if err != nil {
			return nil, err
		}
		snap, err := auth.NewPermissionModule(mid, moduleName.String)
		if err != nil {
			return nil, err
		}
		module = &snap
	}
	return auth.RestorePermission(pid, n, desc, module, auth.Status(status))
}

// --- roles ---

func (s *Store) FindRoleByID(ctx context.Context, id auth.RoleID) (*auth.Role, error) {
	return s.findRole(ctx, squirrel.Eq{"r.id": id.String()})
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	return s.findRole(ctx, squirrel.Eq{"r.name": name})
}

func (s *Store) findRole(ctx context.Context, where squirrel.Sqlizer) (*auth.Role, error) {
	roles, err := s.selectRoles(ctx, s.sb.Select(roleColumns...).From("roles r").Where(where).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, auth.ErrRoleNotFound
	}
	return roles[0], nil
}

// SaveRole upserts the role and replaces its permission rows in one
// transaction. Row position preserves the permission insertion order.
func (s *Store) SaveRole(ctx context.Context, r *auth.Role) error {
	if r == nil {
		return auth.ErrInvalidInput
	}
	values := append([]any{
		r.ID().String(),
		r.Name().String(),
		nullIfEmpty(r.Description().String()),
		string(r.Status()),
	}, s.auditValues(ctx)...)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		upsert := s.sb.Insert("roles").
			Columns(append([]string{"id", "name", "description", "status"}, auditColumns...)...).
			Values(values...).
			Suffix(upsertSuffix("name", "description", "status"))
		if _, err := exec(ctx, tx, upsert); err != nil {
			return mapWriteError(err, auth.ErrRoleAlreadyExists, nil)
		}
		if _, err := exec(ctx, tx, s.sb.Delete("role_permissions").Where(squirrel.Eq{"role_id": r.ID().String()})); err != nil {
			return err
		}
		ids := r.PermissionIDs()
		if len(ids) == 0 {
			return nil
		}
		insert := s.sb.Insert("role_permissions").Columns("role_id", "permission_id", "position")
		for i, pid := range ids {
			insert = insert.Values(r.ID().String(), pid.String(), i)
		}
		if _, err := exec(ctx, tx, insert); err != nil {
			return mapWriteError(err, nil, auth.ErrPermissionNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context) ([]*auth.Role, error) {
	return s.selectRoles(ctx, s.sb.Select(roleColumns...).From("roles r").OrderBy("r.name"))
}

func (s *Store) SearchRoles(ctx context.Context, name string, page auth.PageRequest) (auth.Page[*auth.Role], error) {
	where := squirrel.And{}
	scoped := squirrel.And{}
	if name != "" {
		where = append(where, squirrel.ILike{"name": likePattern(name)})
		scoped = append(scoped, squirrel.ILike{"r.name": likePattern(name)})
	}
	total, err := s.count(ctx, "roles", where)
	if err != nil {
		return auth.Page[*auth.Role]{}, err
	}
	items, err := s.selectRoles(ctx, window(s.sb.Select(roleColumns...).From("roles r").Where(scoped).OrderBy("r.name"), page))
	if err != nil {
		return auth.Page[*auth.Role]{}, err
	}
	return auth.NewPage(items, page, total), nil
}

type roleRow struct {
	id, name, status string
	description      sql.NullString
}

// selectRoles loads role rows and then every role's permissions with a
// single additional query.
func (s *Store) selectRoles(ctx context.Context, b squirrel.SelectBuilder) ([]*auth.Role, error) {
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	var (
		raw []roleRow
		ids []string
	)
	for rows.Next() {
		var rr roleRow
		if err := rows.Scan(&rr.id, &rr.name, &rr.description, &rr.status); err != nil {
			rows.Close()
			return nil, err
		}
		raw = append(raw, rr)
		ids = append(ids, rr.id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	perms, err := s.rolePermissions(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*auth.Role, 0, len(raw))
	for _, rr := range raw {
		r, err := restoreRole(rr, perms[rr.id])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// rolePermissions returns permission snapshots keyed by role id, in
// assignment order.
func (s *Store) rolePermissions(ctx context.Context, roleIDs []string) (map[string][]*auth.Permission, error) {
	out := make(map[string][]*auth.Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}
	b := s.sb.Select(append([]string{"rp.role_id"}, permissionColumns...)...).
		From("role_permissions rp").
		Join("permissions p ON p.id = rp.permission_id").
		LeftJoin("modules m ON m.id = p.module_id").
		Where(squirrel.Eq{"rp.role_id": roleIDs}).
		OrderBy("rp.role_id", "rp.position")
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query role permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var roleID string
		p, err := scanPermission(rows, &roleID)
		if err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], p)
	}
	return out, rows.Err()
}

func restoreRole(rr roleRow, perms []*auth.Permission) (*auth.Role, error) {
	rid, err := auth.ParseRoleID(rr.id)
	if err != nil {
		return nil, err
	}
	n, err := auth.NewRoleName(rr.name)
	if err != nil {
		return nil, err
	}
	return auth.RestoreRole(rid, n, auth.NewRoleDescription(rr.description.String), perms, auth.Status(rr.status))
}
