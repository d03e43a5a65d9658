package rbac

const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
)

// Catalog lists every permission the route guards check.
var Catalog = []Permission{
	{Resource: "employee", Action: "read", Label: "View employees", Category: "Employee"},
	{Resource: "employee", Action: "create", Label: "Create employees", Category: "Employee"},
	{Resource: "employee", Action: "delete", Label: "Delete employees", Category: "Employee"},

	{Resource: "leave", Action: "read", Label: "View leave requests", Category: "Leave"},
	{Resource: "leave", Action: "read_all", Label: "View all leave requests", Category: "Leave"},
	{Resource: "leave", Action: "create", Label: "Request leave", Category: "Leave"},
	{Resource: "leave", Action: "approve", Label: "Approve or reject leave", Category: "Leave"},

	{Resource: "ledger", Action: "read", Label: "View leave balances", Category: "Leave"},
	{Resource: "ledger", Action: "carry_forward", Label: "Carry balances forward", Category: "Leave"},

	{Resource: "attendance", Action: "read", Label: "View attendance", Category: "Attendance"},
	{Resource: "attendance", Action: "read_all", Label: "View all attendance", Category: "Attendance"},
	{Resource: "attendance", Action: "create", Label: "Clock in and out", Category: "Attendance"},

	{Resource: "role", Action: "read", Label: "View roles", Category: "Access"},
	{Resource: "role", Action: "manage", Label: "Assign roles", Category: "Access"},
}

// DefaultRoles maps each seeded role to its "resource:action" grants.
var DefaultRoles = map[string][]string{
	RoleAdmin: nil,
	RoleManager: {
		"employee:read",
		"leave:read", "leave:read_all", "leave:create", "leave:approve",
		"ledger:read", "ledger:carry_forward",
		"attendance:read", "attendance:read_all", "attendance:create",
	},
	RoleEmployee: {
		"leave:read", "leave:create",
		"ledger:read",
		"attendance:read", "attendance:create",
	},
}

func permissionKey(resource, action string) string {
	return resource + ":" + action
}
