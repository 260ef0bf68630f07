package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

// Audit module names.
const (
	moduleAuth        = "AUTH"
	moduleModules     = "MODULES"
	modulePermissions = "PERMISSIONS"
	moduleRoles       = "ROLES"
	moduleUsers       = "USERS"
)

type createModuleRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Path string `json:"path" validate:"required,max=255"`
	Icon string `json:"icon" validate:"required,max=100"`
}

type updateModuleRequest struct {
	Name *string `json:"name" validate:"omitempty,max=100"`
	Path *string `json:"path" validate:"omitempty,max=255"`
	Icon *string `json:"icon" validate:"omitempty,max=100"`
}

type createPermissionRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	ModuleID    *string `json:"module_id" validate:"omitempty,uuid"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	ModuleID    *string `json:"module_id" validate:"omitempty,uuid"`
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

type createUserRequest struct {
	FirstName  string `json:"first_name" validate:"required,max=100"`
	MiddleName string `json:"middle_name" validate:"max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,max=72"`
}

type updateUserRequest struct {
	FirstName  *string `json:"first_name" validate:"omitempty,max=100"`
	MiddleName *string `json:"middle_name" validate:"omitempty,max=100"`
	LastName   *string `json:"last_name" validate:"omitempty,max=100"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
	Password   *string `json:"password" validate:"omitempty,max=72"`
}

// --- shared handler shapes ---

func getHandler[ID, T, V any](parse func(string) (ID, error), load func(context.Context, ID) (T, error), view func(T) V) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parse(chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		item, err := load(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(item))
	}
}

func listHandler[T, V any](load func(context.Context) ([]T, error), view func(T) V) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := load(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		out := make([]V, 0, len(items))
		for _, item := range items {
			out = append(out, view(item))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// nameSearchHandler serves GET /search?name=&page=&size=.
func nameSearchHandler[T, V any](search func(context.Context, string, auth.PageRequest) (auth.Page[T], error), view func(T) V) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageRequest(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		result, err := search(r.Context(), r.URL.Query().Get("name"), page)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, auth.MapPage(result, view))
	}
}

// statusHandler serves the activate and deactivate routes.
func statusHandler[ID interface{ String() string }, T, V any](a *API, module, action string, parse func(string) (ID, error), apply func(context.Context, ID) (T, error), view func(T) V) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parse(chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		item, err := apply(r.Context(), id)
		a.record(r, module, action, id.String(), err)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(item))
	}
}

func created(w http.ResponseWriter, location string, v any) {
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusCreated, v)
}

func optionalModuleID(raw *string) (*auth.ModuleID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := auth.ParseModuleID(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func statusAction(activate bool) string {
	if activate {
		return "ACTIVATE"
	}
	return "DEACTIVATE"
}

// --- modules ---

func (a *API) createModule(w http.ResponseWriter, r *http.Request) {
	var req createModuleRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	m, err := a.rbac.CreateModule(r.Context(), auth.CreateModuleInput{
		Name: req.Name,
		Path: req.Path,
		Icon: req.Icon,
	})
	if err != nil {
		a.record(r, moduleModules, "CREATE", req.Name, err)
		handleError(w, r, err)
		return
	}
	a.record(r, moduleModules, "CREATE", m.ID().String(), nil)
	created(w, "/api/modules/"+m.ID().String(), newModuleView(m))
}

func (a *API) updateModule(w http.ResponseWriter, r *http.Request) {
	id, err := auth.ParseModuleID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updateModuleRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	m, err := a.rbac.UpdateModule(r.Context(), id, auth.ModuleUpdate{
		Name: req.Name,
		Path: req.Path,
		Icon: req.Icon,
	})
	a.record(r, moduleModules, "UPDATE", id.String(), err)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newModuleView(m))
}

func (a *API) getModule(w http.ResponseWriter, r *http.Request) {
	getHandler(auth.ParseModuleID, a.rbac.GetModule, newModuleView)(w, r)
}

func (a *API) listModules(w http.ResponseWriter, r *http.Request) {
	listHandler(a.rbac.ListModules, newModuleView)(w, r)
}

func (a *API) searchModules(w http.ResponseWriter, r *http.Request) {
	nameSearchHandler(a.rbac.SearchModules, newModuleView)(w, r)
}

func (a *API) setModuleStatus(activate bool) http.HandlerFunc {
	apply := a.rbac.DeactivateModule
	if activate {
		apply = a.rbac.ActivateModule
	}
	return statusHandler(a, moduleModules, statusAction(activate), auth.ParseModuleID, apply, newModuleView)
}

// --- permissions ---

func (a *API) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	moduleID, err := optionalModuleID(req.ModuleID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.rbac.CreatePermission(r.Context(), auth.CreatePermissionInput{
		Name:        req.Name,
		Description: req.Description,
		ModuleID:    moduleID,
	})
	if err != nil {
		a.record(r, modulePermissions, "CREATE", req.Name, err)
		handleError(w, r, err)
		return
	}
	a.record(r, modulePermissions, "CREATE", p.ID().String(), nil)
	created(w, "/api/permissions/"+p.ID().String(), newPermissionView(p))
}

func (a *API) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := auth.ParsePermissionID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updatePermissionRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	moduleID, err := optionalModuleID(req.ModuleID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.rbac.UpdatePermission(r.Context(), id, auth.PermissionUpdate{
		Name:        req.Name,
		Description: req.Description,
		ModuleID:    moduleID,
	})
	a.record(r, modulePermissions, "UPDATE", id.String(), err)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPermissionView(p))
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request) {
	getHandler(auth.ParsePermissionID, a.rbac.GetPermission, newPermissionView)(w, r)
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	listHandler(a.rbac.ListPermissions, newPermissionView)(w, r)
}

func (a *API) searchPermissions(w http.ResponseWriter, r *http.Request) {
	nameSearchHandler(a.rbac.SearchPermissions, newPermissionView)(w, r)
}

func (a *API) setPermissionStatus(activate bool) http.HandlerFunc {
	apply := a.rbac.DeactivatePermission
	if activate {
		apply = a.rbac.ActivatePermission
	}
	return statusHandler(a, modulePermissions, statusAction(activate), auth.ParsePermissionID, apply, newPermissionView)
}

// --- roles ---

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	role, err := a.rbac.CreateRole(r.Context(), auth.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		a.record(r, moduleRoles, "CREATE", req.Name, err)
		handleError(w, r, err)
		return
	}
	a.record(r, moduleRoles, "CREATE", role.ID().String(), nil)
	created(w, "/api/roles/"+role.ID().String(), newRoleView(role))
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := auth.ParseRoleID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updateRoleRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	role, err := a.rbac.UpdateRole(r.Context(), id, auth.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	a.record(r, moduleRoles, "UPDATE", id.String(), err)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoleView(role))
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request) {
	getHandler(auth.ParseRoleID, a.rbac.GetRole, newRoleView)(w, r)
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	listHandler(a.rbac.ListRoles, newRoleView)(w, r)
}

func (a *API) searchRoles(w http.ResponseWriter, r *http.Request) {
	nameSearchHandler(a.rbac.SearchRoles, newRoleView)(w, r)
}

func (a *API) setRoleStatus(activate bool) http.HandlerFunc {
	apply := a.rbac.DeactivateRole
	if activate {
		apply = a.rbac.ActivateRole
	}
	return statusHandler(a, moduleRoles, statusAction(activate), auth.ParseRoleID, apply, newRoleView)
}

func (a *API) addRolePermission(w http.ResponseWriter, r *http.Request) {
	a.changeRolePermission(w, r, "ADD_PERMISSION", a.rbac.AddPermissionToRole)
}

func (a *API) removeRolePermission(w http.ResponseWriter, r *http.Request) {
	a.changeRolePermission(w, r, "REMOVE_PERMISSION", a.rbac.RemovePermissionFromRole)
}

func (a *API) changeRolePermission(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, auth.RoleID, auth.PermissionID) (*auth.Role, error)) {
	roleID, err := auth.ParseRoleID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	permissionID, err := auth.ParsePermissionID(chi.URLParam(r, "permissionId"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	role, err := apply(r.Context(), roleID, permissionID)
	a.record(r, moduleRoles, action, roleID.String()+" permission "+permissionID.String(), err)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoleView(role))
}

// --- users ---

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.rbac.CreateUser(r.Context(), auth.CreateUserInput{
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		a.record(r, moduleUsers, "CREATE", auth.NormalizeEmail(req.Email), err)
		handleError(w, r, err)
		return
	}
	a.record(r, moduleUsers, "CREATE", u.ID().String(), nil)
	created(w, "/api/users/"+u.ID().String(), newUserView(u))
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := auth.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.rbac.UpdateUser(r.Context(), id, auth.UserUpdate{
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
	})
	a.record(r, moduleUsers, "UPDATE", id.String(), err)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	getHandler(auth.ParseUserID, a.rbac.GetUser, newUserView)(w, r)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	listHandler(a.rbac.ListUsers, newUserView)(w, r)
}

func (a *API) searchUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	q := auth.UserQuery{Email: strings.TrimSpace(r.URL.Query().Get("email"))}
	if raw := r.URL.Query().Get("status"); strings.TrimSpace(raw) != "" {
		status, err := auth.ParseStatus(raw)
		if err != nil {
			handleError(w, r, err)
			return
		}
		q.Status = status
	}
	result, err := a.rbac.SearchUsers(r.Context(), q, page)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.MapPage(result, newUserView))
}

func (a *API) setUserStatus(activate bool) http.HandlerFunc {
	apply := a.rbac.DeactivateUser
	if activate {
		apply = a.rbac.ActivateUser
	}
	return statusHandler(a, moduleUsers, statusAction(activate), auth.ParseUserID, apply, newUserView)
}

func (a *API) assignUserRole(w http.ResponseWriter, r *http.Request) {
	a.changeUserRole(w, r, "ASSIGN_ROLE", a.rbac.AssignRole)
}

func (a *API) revokeUserRole(w http.ResponseWriter, r *http.Request) {
	a.changeUserRole(w, r, "REVOKE_ROLE", a.rbac.RevokeRole)
}

func (a *API) changeUserRole(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, auth.UserID, auth.RoleID) (*auth.User, error)) {
	userID, err := auth.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	roleID, err := auth.ParseRoleID(chi.URLParam(r, "roleId"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := apply(r.Context(), userID, roleID)
	a.record(r, moduleUsers, action, userID.String()+" role "+roleID.String(), err)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}
