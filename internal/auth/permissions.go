package auth

// Admin permission keys.
const (
	PermUserManagement = "user_management"
	PermSystemConfig   = "system_config"
	PermAuditLogs      = "audit_logs"
	PermDatabaseAdmin  = "database_admin"
)

// BuiltinPermissions lists every permission an admin can be granted.
var BuiltinPermissions = []string{
	PermUserManagement,
	PermSystemConfig,
	PermAuditLogs,
	PermDatabaseAdmin,
}

func knownPermission(p string) bool {
	for _, k := range BuiltinPermissions {
		if k == p {
			return true
		}
	}
	return false
}
