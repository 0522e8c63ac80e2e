package rbac

type Role string
type Action string

const (
	RoleGKM             Role = "GKM"
	RoleKaprodi         Role = "Kaprodi"
	RoleSekretarisProdi Role = "Sekretaris Prodi"
	RoleDekan           Role = "Dekan"
	RoleWakilDekan1     Role = "Wakil Dekan 1"
	RoleWakilDekan2     Role = "Wakil Dekan 2"
	RoleWakilDekan3     Role = "Wakil Dekan 3"
	RoleTendik          Role = "Tendik"
	RoleAdmin           Role = "Admin"
)

const (
	ActionFillSections   Action = "fill_sections"
	ActionCreateEvents   Action = "create_events"
	ActionViewStatistics Action = "view_statistics"
	ActionManageUsers    Action = "manage_users"
	ActionViewAuditLog   Action = "view_audit_log"
)

// AllRoles lists every role accepted at registration, in display order.
var AllRoles = []Role{
	RoleGKM,
	RoleKaprodi,
	RoleSekretarisProdi,
	RoleDekan,
	RoleWakilDekan1,
	RoleWakilDekan2,
	RoleWakilDekan3,
	RoleTendik,
	RoleAdmin,
}

// StatisticsRoles lists the content-producing roles covered by the
// statistics view. GKM and Admin supervise and are excluded.
var StatisticsRoles = []Role{
	RoleKaprodi,
	RoleSekretarisProdi,
	RoleDekan,
	RoleWakilDekan1,
	RoleWakilDekan2,
	RoleWakilDekan3,
	RoleTendik,
}

func Valid(role string) bool {
	for _, r := range AllRoles {
		if Role(role) == r {
			return true
		}
	}
	return false
}

func Can(role Role, action Action) bool {
	switch action {
	case ActionFillSections:
		return role != RoleAdmin
	case ActionCreateEvents:
		return role == RoleGKM || role == RoleKaprodi
	case ActionViewStatistics:
		return role == RoleGKM || role == RoleAdmin
	case ActionManageUsers, ActionViewAuditLog:
		return role == RoleAdmin
	default:
		return false
	}
}
