package lifecycle

import "container-dispatch/core/models"

// IsManager reports whether role has the management view of all jobs
func IsManager(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleDispatcher
}

// CanViewJob evaluates read access to a single job.
// Managers see everything; drivers see only jobs assigned to them.
func CanViewJob(actorID string, role models.Role, job *models.Job) GuardResult {
	if IsManager(role) || job.IsAssignedTo(actorID) {
		return allow()
	}
	return deny(ErrForbidden, "job %s is not assigned to you", job.ID)
}

// CanQueryDriver evaluates whether actor may list the jobs of driverID.
func CanQueryDriver(actorID string, role models.Role, driverID string) GuardResult {
	if IsManager(role) || actorID == driverID {
		return allow()
	}
	return deny(ErrForbidden, "drivers can only list their own jobs")
}

// CanManage evaluates dispatcher-level operations such as create, update and reports.
func CanManage(role models.Role) GuardResult {
	if IsManager(role) {
		return allow()
	}
	return deny(ErrForbidden, "requires admin or dispatcher role")
}

// CanAdminister evaluates admin-only operations.
func CanAdminister(role models.Role) GuardResult {
	if role == models.RoleAdmin {
		return allow()
	}
	return deny(ErrForbidden, "requires admin role")
}
