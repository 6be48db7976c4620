package rbac

const (
	PermGenerate = "assessment:generate"
	PermEvaluate = "assessment:evaluate"
	PermViewOwn  = "assessment:view-own"
	PermViewAll  = "assessment:view-all"
	// PermStaff marks roles trusted to act for any student and to preview
	// past an attempt ceiling.
	PermStaff = "assessment:staff"

	PermGradebookView   = "gradebook:view"
	PermSubmissionsView = "submissions:view"
)

// DefaultPolicy is the role table used by the HTTP surface.
var DefaultPolicy = Policy{
	"student": {PermGenerate, PermEvaluate, PermViewOwn},
	"teacher": {"assessment:*", PermGradebookView, PermSubmissionsView},
	"admin":   {"*"},
}
