package user

type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

type Permission string

const (
	// Attendance
	PermissionAttendanceClock   Permission = "attendance.clock"
	PermissionAttendanceViewOwn Permission = "attendance.view_own"
	PermissionAttendanceViewAll Permission = "attendance.view_all"
	PermissionAttendanceCorrect Permission = "attendance.correct"

	// Leave
	PermissionLeaveCreate    Permission = "leave.create"
	PermissionLeaveViewOwn   Permission = "leave.view_own"
	PermissionLeaveViewAll   Permission = "leave.view_all"
	PermissionLeaveApprove   Permission = "leave.approve"
	PermissionLeaveGrant     Permission = "leave.grant"
	PermissionLeaveReconcile Permission = "leave.reconcile"

	// Work types
	PermissionWorkTypeManage Permission = "work_type.manage"
	PermissionWorkTypeAssign Permission = "work_type.assign"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermissionAttendanceClock,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionAttendanceCorrect,
		PermissionLeaveCreate,
		PermissionLeaveViewOwn,
		PermissionLeaveViewAll,
		PermissionLeaveApprove,
		PermissionLeaveGrant,
		PermissionLeaveReconcile,
		PermissionWorkTypeManage,
		PermissionWorkTypeAssign,
	},
	RoleManager: {
		PermissionAttendanceClock,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionAttendanceCorrect,
		PermissionLeaveCreate,
		PermissionLeaveViewOwn,
		PermissionLeaveViewAll,
		PermissionLeaveApprove,
		PermissionLeaveGrant,
		PermissionLeaveReconcile,
		PermissionWorkTypeAssign,
	},
	RoleEmployee: {
		PermissionAttendanceClock,
		PermissionAttendanceViewOwn,
		PermissionLeaveCreate,
		PermissionLeaveViewOwn,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
