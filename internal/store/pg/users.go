package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

var userColumns = []string{
	"u.id", "u.first_name", "u.last_name", "u.middle_name", "u.email", "u.password",
	"u.enabled", "u.account_non_expired", "u.account_non_locked", "u.credentials_non_expired", "u.status",
}

type userRow struct {
	id, firstName, lastName, email, status string
	middleName, password                   sql.NullString
	account                                auth.AccountStatus
}

func (s *Store) FindUserByID(ctx context.Context, id auth.UserID) (*auth.User, error) {
	return s.findUser(ctx, squirrel.Eq{"u.id": id.String()})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findUser(ctx, squirrel.Eq{"u.email": auth.NormalizeEmail(email)})
}

func (s *Store) findUser(ctx context.Context, where squirrel.Sqlizer) (*auth.User, error) {
	users, err := s.selectUsers(ctx, s.sb.Select(userColumns...).From("users u").Where(where).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, auth.ErrUserNotFound
	}
	return users[0], nil
}

// SaveUser upserts the user and replaces its role rows in one transaction.
func (s *Store) SaveUser(ctx context.Context, u *auth.User) error {
	if u == nil {
		return auth.ErrInvalidInput
	}
	password, _ := u.Password()
	names := u.Names()
	status := u.Status()
	values := append([]any{
		u.ID().String(),
		names.First(),
		names.Last(),
		nullIfEmpty(names.Middle()),
		auth.NormalizeEmail(u.Email().String()),
		nullIfEmpty(password),
		status.Enabled,
		status.NonExpired,
		status.NonLocked,
		status.CredentialsNonExpired,
		string(status.Status),
	}, s.auditValues(ctx)...)
	mutable := []string{
		"first_name", "last_name", "middle_name", "email", "password",
		"enabled", "account_non_expired", "account_non_locked", "credentials_non_expired", "status",
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		upsert := s.sb.Insert("users").
			Columns(append(append([]string{"id"}, mutable...), auditColumns...)...).
			Values(values...).
			Suffix(upsertSuffix(mutable...))
		if _, err := exec(ctx, tx, upsert); err != nil {
			return mapWriteError(err, auth.ErrUserAlreadyExists, nil)
		}
		if _, err := exec(ctx, tx, s.sb.Delete("user_roles").Where(squirrel.Eq{"user_id": u.ID().String()})); err != nil {
			return err
		}
		roleIDs := u.RoleIDs()
		if len(roleIDs) == 0 {
			return nil
		}
		insert := s.sb.Insert("user_roles").Columns("user_id", "role_id", "position")
		for i, rid := range roleIDs {
			insert = insert.Values(u.ID().String(), rid.String(), i)
		}
		if _, err := exec(ctx, tx, insert); err != nil {
			return mapWriteError(err, nil, auth.ErrRoleNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ReplacePassword is a conditional update: it only matches while the
// stored password still equals previous.
func (s *Store) ReplacePassword(ctx context.Context, id auth.UserID, previous, next string) error {
	b := s.sb.Update("users").
		Set("password", next).
		Set("updated_at", s.now()).
		Set("updated_by", auth.ActorFromContext(ctx)).
		Where(squirrel.Eq{"id": id.String()}).
		Where(squirrel.Eq{"password": previous})
	res, err := exec(ctx, s.db, b)
	if err != nil {
		return fmt.Errorf("replace password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	stmt, args, err := s.sb.Select("1").From("users").Where(squirrel.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build select user sql: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return auth.ErrUserNotFound
	case err != nil:
		return err
	}
	return auth.ErrStalePassword
}

func (s *Store) ListUsers(ctx context.Context) ([]*auth.User, error) {
	return s.selectUsers(ctx, s.sb.Select(userColumns...).From("users u").OrderBy("u.email"))
}

func (s *Store) SearchUsers(ctx context.Context, q auth.UserQuery, page auth.PageRequest) (auth.Page[*auth.User], error) {
	where := squirrel.And{}
	scoped := squirrel.And{}
	if q.Email != "" {
		where = append(where, squirrel.ILike{"email": likePattern(q.Email)})
		scoped = append(scoped, squirrel.ILike{"u.email": likePattern(q.Email)})
	}
	if q.Status != "" {
		where = append(where, squirrel.Eq{"status": string(q.Status)})
		scoped = append(scoped, squirrel.Eq{"u.status": string(q.Status)})
	}
	total, err := s.count(ctx, "users", where)
	if err != nil {
		return auth.Page[*auth.User]{}, err
	}
	items, err := s.selectUsers(ctx, window(s.sb.Select(userColumns...).From("users u").Where(scoped).OrderBy("u.email"), page))
	if err != nil {
		return auth.Page[*auth.User]{}, err
	}
	return auth.NewPage(items, page, total), nil
}

// selectUsers resolves users, their roles and the roles' permissions in
// three queries regardless of the number of users.
func (s *Store) selectUsers(ctx context.Context, b squirrel.SelectBuilder) ([]*auth.User, error) {
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	var (
		raw []userRow
		ids []string
	)
	for rows.Next() {
		var ur userRow
		var status string
		if err := rows.Scan(
			&ur.id, &ur.firstName, &ur.lastName, &ur.middleName, &ur.email, &ur.password,
			&ur.account.Enabled, &ur.account.NonExpired, &ur.account.NonLocked, &ur.account.CredentialsNonExpired, &status,
		); err != nil {
			rows.Close()
			return nil, err
		}
		ur.account.Status = auth.Status(status)
		raw = append(raw, ur)
		ids = append(ids, ur.id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	roles, err := s.userRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*auth.User, 0, len(raw))
	for _, ur := range raw {
		u, err := restoreUser(ur, roles[ur.id])
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) userRoles(ctx context.Context, userIDs []string) (map[string][]*auth.Role, error) {
	out := make(map[string][]*auth.Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	b := s.sb.Select(append([]string{"ur.user_id"}, roleColumns...)...).
		From("user_roles ur").
		Join("roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": userIDs}).
		OrderBy("ur.user_id", "ur.position")
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	type assignment struct {
		userID string
		role   roleRow
	}
	var (
		assigned []assignment
		roleIDs  []string
		seen     = map[string]struct{}{}
	)
	for rows.Next() {
		var a assignment
		if err := rows.Scan(&a.userID, &a.role.id, &a.role.name, &a.role.description, &a.role.status); err != nil {
			rows.Close()
			return nil, err
		}
		assigned = append(assigned, a)
		if _, ok := seen[a.role.id]; !ok {
			seen[a.role.id] = struct{}{}
			roleIDs = append(roleIDs, a.role.id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	perms, err := s.rolePermissions(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	for _, a := range assigned {
		r, err := restoreRole(a.role, perms[a.role.id])
		if err != nil {
			return nil, err
		}
		out[a.userID] = append(out[a.userID], r)
	}
	return out, nil
}

func restoreUser(ur userRow, roles []*auth.Role) (*auth.User, error) {
	uid, err := auth.ParseUserID(ur.id)
	if err != nil {
		return nil, err
	}
	names, err := auth.NewUserNames(ur.firstName, ur.lastName, ur.middleName.String)
	if err != nil {
		return nil, err
	}
	email, err := auth.NewUserEmail(ur.email)
	if err != nil {
		return nil, err
	}
	return auth.RestoreUser(uid, names, email, ur.password.String, ur.account, roles)
}
