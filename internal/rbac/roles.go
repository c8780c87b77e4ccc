package rbac

// Role names carried in access tokens. Keep stable; dashboards mint tokens with them.
const (
	RoleOwner      = "owner"
	RoleMember     = "member"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
