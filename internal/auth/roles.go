package auth

// Role is the account role the server reports at login.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// Permission names one action the dashboard may offer.
type Permission string

const (
	ManageUsers Permission = "manage_users"

	ManageEvents Permission = "manage_events"
	ViewEvents   Permission = "view_events"

	ManageDelegations Permission = "manage_delegations"
	ViewDelegations   Permission = "view_delegations"
	AddDelegations    Permission = "add_delegations"
	EditDelegations   Permission = "edit_delegations"
	DeleteDelegations Permission = "delete_delegations"

	ManageMembers Permission = "manage_members"
	ViewMembers   Permission = "view_members"
	AddMembers    Permission = "add_members"
	EditMembers   Permission = "edit_members"
	DeleteMembers Permission = "delete_members"

	ManageDepartures Permission = "manage_departures"
	ViewDepartures   Permission = "view_departures"
	AddDepartures    Permission = "add_departures"
	EditDepartures   Permission = "edit_departures"
	DeleteDepartures Permission = "delete_departures"

	ViewReports   Permission = "view_reports"
	ExportReports Permission = "export_reports"
	PrintReports  Permission = "print_reports"

	UseFilters     Permission = "use_filters"
	AdvancedSearch Permission = "advanced_search"

	SystemSettings Permission = "system_settings"
	AuditLogs      Permission = "audit_logs"
)

var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: set(
		ManageEvents, ViewEvents,
		ManageDelegations, ViewDelegations, AddDelegations, EditDelegations, DeleteDelegations,
		ManageMembers, ViewMembers, AddMembers, EditMembers, DeleteMembers,
		ManageDepartures, ViewDepartures, AddDepartures, EditDepartures, DeleteDepartures,
		ViewReports, ExportReports, PrintReports,
		UseFilters, AdvancedSearch,
		SystemSettings, AuditLogs,
	),
	RoleUser: set(
		ViewEvents,
		ViewDelegations, AddDelegations, EditDelegations,
		ViewMembers, AddMembers, EditMembers,
		ViewDepartures, AddDepartures, EditDepartures,
		UseFilters, AdvancedSearch,
	),
}

func set(ps ...Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(ps))
	for _, p := range ps {
		m[p] = true
	}
	return m
}

// Can reports whether role grants p. The super admin holds every
// permission; an unknown or empty role holds none.
func (r Role) Can(p Permission) bool {
	if r == RoleSuperAdmin {
		return true
	}
	return rolePermissions[r][p]
}
