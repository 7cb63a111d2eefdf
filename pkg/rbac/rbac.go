package rbac

const (
	PermissionProjectRead   = "project:read"
	PermissionProjectWrite  = "project:write"
	PermissionProjectDelete = "project:delete"
	PermissionOTDRReset     = "otdr:reset"
	PermissionMailSend      = "mail:send"
)

const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

var rolePermissions = map[string][]string{
	RoleViewer: {
		PermissionProjectRead,
	},
	RoleAdmin: {
		PermissionProjectRead,
		PermissionProjectWrite,
		PermissionProjectDelete,
		PermissionOTDRReset,
		PermissionMailSend,
	},
}

func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning a typed error.
func CheckPermission(subject, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Subject: subject, Role: role, Permission: permission}
	}
	return nil
}

type PermissionDeniedError struct {
	Subject    string
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions: " + e.Permission
}
