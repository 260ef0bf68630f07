package auth

import (
	"context"
	"math"
	"strings"
)

// ModuleStore persists Module aggregates.
type ModuleStore interface {
	FindModuleByID(ctx context.Context, id ModuleID) (*Module, error)
	SaveModule(ctx context.Context, m *Module) error
	ListModules(ctx context.Context) ([]*Module, error)
	SearchModules(ctx context.Context, name string, page PageRequest) (Page[*Module], error)
}

// PermissionStore persists Permission aggregates. Names are unique; a
// conflicting save returns an error wrapping ErrConflict.
type PermissionStore interface {
	FindPermissionByID(ctx context.Context, id PermissionID) (*Permission, error)
	FindPermissionByName(ctx context.Context, name string) (*Permission, error)
	SavePermission(ctx context.Context, p *Permission) error
	ListPermissions(ctx context.Context) ([]*Permission, error)
	SearchPermissions(ctx context.Context, name string, page PageRequest) (Page[*Permission], error)
}

// RoleStore persists Role aggregates together with their permission set.
// Loaded roles carry full permission snapshots.
type RoleStore interface {
	FindRoleByID(ctx context.Context, id RoleID) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	SaveRole(ctx context.Context, r *Role) error
	ListRoles(ctx context.Context) ([]*Role, error)
	SearchRoles(ctx context.Context, name string, page PageRequest) (Page[*Role], error)
}

// UserStore persists User aggregates together with their role set.
// Loaded users carry full role snapshots, each with its permissions.
type UserStore interface {
	FindUserByID(ctx context.Context, id UserID) (*User, error)
	// FindUserByEmail matches the normalized (trimmed, lower-cased) address.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	SaveUser(ctx context.Context, u *User) error
	// ReplacePassword swaps the stored password only if it still equals
	// previous. It returns ErrStalePassword when it does not.
	ReplacePassword(ctx context.Context, id UserID, previous, next string) error
	ListUsers(ctx context.Context) ([]*User, error)
	SearchUsers(ctx context.Context, q UserQuery, page PageRequest) (Page[*User], error)
}

// Store aggregates every persistence port.
type Store interface {
	ModuleStore
	PermissionStore
	RoleStore
	UserStore
}

// UserQuery filters user searches. Empty fields match everything.
type UserQuery struct {
	Email  string
	Status Status
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest is a zero-based page window.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the request into a valid window.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	// Page*Size must stay representable as an offset.
	if maxPage := math.MaxInt / p.Size; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

func (p PageRequest) Offset() int {
	p = p.Normalize()
	return p.Page * p.Size
}

// Page is one window of a larger result set.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	Last       bool  `json:"last"`
}

func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(req.Size) - 1) / int64(req.Size))
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		TotalItems: total,
		TotalPages: pages,
		Last:       req.Page >= pages-1,
	}
}

// MapPage converts the items of a page, keeping its window metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, fn(item))
	}
	return Page[U]{
		Items:      out,
		Page:       p.Page,
		Size:       p.Size,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		Last:       p.Last,
	}
}

// ContainsFold is the substring match used by name searches.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
