package auth

// Built-in authority names guarding the administrative API.
const (
	RoleAdmin       = "ADMIN"
	PermissionRead  = "READ_PRIVILEGES"
	PermissionWrite = "WRITE_PRIVILEGES"
	AuthorityAdmin  = RolePrefix + RoleAdmin
	AuthorityRead   = PermissionPrefix + PermissionRead
	AuthorityWrite  = PermissionPrefix + PermissionWrite
)

var (
	ReadAuthorities  = []string{AuthorityRead, AuthorityAdmin}
	WriteAuthorities = []string{AuthorityWrite, AuthorityAdmin}
	AdminAuthorities = []string{AuthorityAdmin}
)
