// Package memory keeps every aggregate in process memory. It backs tests
// and the memory store mode of the API.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

var (
	_ auth.Store  = (*Store)(nil)
	_ audit.Store = (*Store)(nil)
)

// Store holds aggregates by id. Associations are kept as id lists and
// resolved to fresh snapshots on every read, so callers always see the
// latest state of referenced permissions and roles.
type Store struct {
	mu sync.RWMutex

	modules     map[auth.ModuleID]*auth.Module
	permissions map[auth.PermissionID]*auth.Permission
	roles       map[auth.RoleID]roleRecord
	users       map[auth.UserID]userRecord
	activity    []audit.Entry
}

type roleRecord struct {
	role        *auth.Role
	permissions []auth.PermissionID
}

type userRecord struct {
	user  *auth.User
	roles []auth.RoleID
}

func NewStore() *Store {
	return &Store{
		modules:     make(map[auth.ModuleID]*auth.Module),
		permissions: make(map[auth.PermissionID]*auth.Permission),
		roles:       make(map[auth.RoleID]roleRecord),
		users:       make(map[auth.UserID]userRecord),
	}
}

// --- modules ---

func (s *Store) FindModuleByID(_ context.Context, id auth.ModuleID) (*auth.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[id]
	if !ok {
		return nil, auth.ErrModuleNotFound
	}
	return m.Clone(), nil
}

func (s *Store) SaveModule(_ context.Context, m *auth.Module) error {
	if m == nil {
		return auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[m.ID()] = m.Clone()
	return nil
}

func (s *Store) ListModules(_ context.Context) ([]*auth.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterModules(""), nil
}

func (s *Store) SearchModules(_ context.Context, name string, page auth.PageRequest) (auth.Page[*auth.Module], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.filterModules(name), page), nil
}

func (s *Store) filterModules(name string) []*auth.Module {
	out := make([]*auth.Module, 0, len(s.modules))
	for _, m := range s.modules {
		if auth.ContainsFold(m.Name().String(), name) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name().String() < out[j].Name().String() })
	return out
}

// --- permissions ---

func (s *Store) FindPermissionByID(_ context.Context, id auth.PermissionID) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil, auth.ErrPermissionNotFound
	}
	return p.Clone(), nil
}

func (s *Store) FindPermissionByName(_ context.Context, name string) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name = strings.TrimSpace(name)
	for _, p := range s.permissions {
		if p.Name().String() == name {
			return p.Clone(), nil
		}
	}
	return nil, auth.ErrPermissionNotFound
}

func (s *Store) SavePermission(_ context.Context, p *auth.Permission) error {
	if p == nil {
		return auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.permissions {
		if id != p.ID() && other.Name() == p.Name() {
			return auth.ErrPermissionAlreadyExists
		}
	}
	s.permissions[p.ID()] = p.Clone()
	return nil
}

func (s *Store) ListPermissions(_ context.Context) ([]*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterPermissions(""), nil
}

func (s *Store) SearchPermissions(_ context.Context, name string, page auth.PageRequest) (auth.Page[*auth.Permission], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.filterPermissions(name), page), nil
}

func (s *Store) filterPermissions(name string) []*auth.Permission {
	out := make([]*auth.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if auth.ContainsFold(p.Name().String(), name) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name().String() < out[j].Name().String() })
	return out
}

// --- roles ---

func (s *Store) FindRoleByID(_ context.Context, id auth.RoleID) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrRoleNotFound
	}
	return s.resolveRole(rec)
}

func (s *Store) FindRoleByName(_ context.Context, name string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name = strings.TrimSpace(name)
	for _, rec := range s.roles {
		if rec.role.Name().String() == name {
			return s.resolveRole(rec)
		}
	}
	return nil, auth.ErrRoleNotFound
}

func (s *Store) SaveRole(_ context.Context, r *auth.Role) error {
	if r == nil {
		return auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.roles {
		if id != r.ID() && other.role.Name() == r.Name() {
			return auth.ErrRoleAlreadyExists
		}
	}
	ids := r.PermissionIDs()
	for _, id := range ids {
		if _, ok := s.permissions[id]; !ok {
			return auth.ErrPermissionNotFound
		}
	}
	s.roles[r.ID()] = roleRecord{role: r.Clone(), permissions: ids}
	return nil
}

func (s *Store) ListRoles(_ context.Context) ([]*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterRoles("")
}

func (s *Store) SearchRoles(_ context.Context, name string, page auth.PageRequest) (auth.Page[*auth.Role], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles, err := s.filterRoles(name)
	if err != nil {
		return auth.Page[*auth.Role]{}, err
	}
	return paginate(roles, page), nil
}

func (s *Store) filterRoles(name string) ([]*auth.Role, error) {
	out := make([]*auth.Role, 0, len(s.roles))
	for _, rec := range s.roles {
		if !auth.ContainsFold(rec.role.Name().String(), name) {
			continue
		}
		r, err := s.resolveRole(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name().String() < out[j].Name().String() })
	return out, nil
}

func (s *Store) resolveRole(rec roleRecord) (*auth.Role, error) {
	perms := make([]*auth.Permission, 0, len(rec.permissions))
	for _, id := range rec.permissions {
		if p, ok := s.permissions[id]; ok {
			perms = append(perms, p)
		}
	}
	r := rec.role
	return auth.RestoreRole(r.ID(), r.Name(), r.Description(), perms, r.Status())
}

// --- users ---

func (s *Store) FindUserByID(_ context.Context, id auth.UserID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return s.resolveUser(rec)
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = auth.NormalizeEmail(email)
	for _, rec := range s.users {
		if auth.NormalizeEmail(rec.user.Email().String()) == email {
			return s.resolveUser(rec)
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *Store) SaveUser(_ context.Context, u *auth.User) error {
	if u == nil {
		return auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email := auth.NormalizeEmail(u.Email().String())
	for id, other := range s.users {
		if id != u.ID() && auth.NormalizeEmail(other.user.Email().String()) == email {
			return auth.ErrUserAlreadyExists
		}
	}
	ids := u.RoleIDs()
	for _, id := range ids {
		if _, ok := s.roles[id]; !ok {
			return auth.ErrRoleNotFound
		}
	}
	s.users[u.ID()] = userRecord{user: u.Clone(), roles: ids}
	return nil
}

func (s *Store) ReplacePassword(_ context.Context, id auth.UserID, previous, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	if current, _ := rec.user.Password(); current != previous {
		return auth.ErrStalePassword
	}
	u := rec.user.Clone()
	if err := u.ChangePassword(next); err != nil {
		return err
	}
	rec.user = u
	s.users[id] = rec
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterUsers(auth.UserQuery{})
}

func (s *Store) SearchUsers(_ context.Context, q auth.UserQuery, page auth.PageRequest) (auth.Page[*auth.User], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users, err := s.filterUsers(q)
	if err != nil {
		return auth.Page[*auth.User]{}, err
	}
	return paginate(users, page), nil
}

func (s *Store) filterUsers(q auth.UserQuery) ([]*auth.User, error) {
	out := make([]*auth.User, 0, len(s.users))
	for _, rec := range s.users {
		if !auth.ContainsFold(rec.user.Email().String(), q.Email) {
			continue
		}
		if q.Status != "" && rec.user.Status().Status != q.Status {
			continue
		}
		u, err := s.resolveUser(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email().String() < out[j].Email().String() })
	return out, nil
}

func (s *Store) resolveUser(rec userRecord) (*auth.User, error) {
	roles := make([]*auth.Role, 0, len(rec.roles))
	for _, id := range rec.roles {
		rr, ok := s.roles[id]
		if !ok {
			continue
		}
		r, err := s.resolveRole(rr)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	u := rec.user
	pwd, _ := u.Password()
	return auth.RestoreUser(u.ID(), u.Names(), u.Email(), pwd, u.Status(), roles)
}

// --- activity log ---

func (s *Store) AppendActivity(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, e)
	return nil
}

func (s *Store) SearchActivity(_ context.Context, q audit.Query, page auth.PageRequest) (auth.Page[audit.Entry], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, 0, len(s.activity))
	for _, e := range s.activity {
		if q.Module != "" && !strings.EqualFold(e.Module, q.Module) {
			continue
		}
		if !q.Date.IsZero() && !sameDay(e.Timestamp, q.Date) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return paginate(out, page), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func paginate[T any](items []T, req auth.PageRequest) auth.Page[T] {
	req = req.Normalize()
	total := int64(len(items))
	start := req.Offset()
	if start < 0 || start > len(items) {
		start = len(items)
	}
	end := start + req.Size
	if end > len(items) {
		end = len(items)
	}
	return auth.NewPage(items[start:end], req, total)
}
