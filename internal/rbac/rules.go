package rbac

const (
	PermMasterWrite     = "master:write"
	PermMasterRead      = "master:read"
	PermCycleManage     = "cycle:manage"
	PermSeatingAllocate = "seating:allocate"
	PermSeatingView     = "seating:view"
	PermAttendanceMark  = "attendance:mark"
	PermBundlesGenerate = "bundles:generate"
	PermResultsEnter    = "results:enter"
	PermResultsDecode   = "results:decode"
	PermResultsGrade    = "results:grade"
	PermResultsModerate = "results:moderate"
	PermLedgerView      = "ledger:view"
)

var AllPermissions = []string{
	PermMasterWrite, PermMasterRead, PermCycleManage,
	PermSeatingAllocate, PermSeatingView, PermAttendanceMark,
	PermBundlesGenerate, PermResultsEnter, PermResultsDecode,
	PermResultsGrade, PermResultsModerate, PermLedgerView,
}

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	// controller of examinations
	"coe": {
		"master:*",
		"cycle:manage",
		"seating:*",
		"attendance:mark",
		"bundles:generate",
		"results:*",
		"ledger:view",
	},
	"examiner": {
		"master:read",
		"seating:view",
		"results:enter",
		"ledger:view",
	},
	"invigilator": {
		"seating:view",
		"attendance:mark",
	},
	"admin": {
		"*", // everything
	},
}
