package rbac

const (
	RoleAdmin    = "admin"
	RoleExaminer = "examiner"
	RoleStudent  = "student"
)

const (
	PermExamView        = "exam:view"
	PermResponseSave    = "response:save"
	PermExamSubmit      = "exam:submit"
	PermExamRegrade     = "exam:regrade"
	PermResponseViewOwn = "response:view-own"
	PermResponseViewAll = "response:view-all"
	PermResultViewOwn   = "result:view-own"
	PermResultViewAll   = "result:view-all"
	PermEventsView      = "events:view"
)

// Default policy. Students act on their own attempts only; "-own" permissions
// take effect through RequireOwnerOr at the route.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermExamView,
		PermResponseSave,
		PermExamSubmit,
		PermExamRegrade,
		PermResponseViewOwn,
		PermResultViewOwn,
	},
	RoleExaminer: {
		PermExamView,
		PermResponseSave,
		PermExamSubmit,
		PermExamRegrade,
		"response:view-*",
		"result:view-*",
	},
	RoleAdmin: {
		"*",
	},
}
