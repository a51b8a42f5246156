package rbac

const (
	RoleOwner  = "owner"
	RoleViewer = "viewer"
)

const (
	PermBankRead      = "bank:read"
	PermBankWrite     = "bank:write"
	PermImport        = "bank:import"
	PermExamTake      = "exam:take"
	PermExamView      = "exam:view"
	PermReviewAnswer  = "review:answer"
	PermReviewView    = "review:view"
	PermDashboardView = "dashboard:view"
)

// RolePermissions is the default policy. The owner studies; a viewer can only look.
var RolePermissions = map[string][]string{
	RoleOwner: {"*"},
	RoleViewer: {
		PermBankRead,
		PermExamView,
		PermReviewView,
		PermDashboardView,
	},
}
