package assessment

// ActivityType selects default points and feedback policy.
type ActivityType string

const (
	ActivityLesson     ActivityType = "lesson"
	ActivityAssignment ActivityType = "assignment"
	ActivityExam       ActivityType = "exam"
	ActivityLab        ActivityType = "lab"
)

// UnlimitedAttempts is the ceiling used when nothing configures one.
const UnlimitedAttempts = 9999

// ActivitySettings is a course's policy for one activity type.
type ActivitySettings struct {
	MaxAttempts  *int    `json:"maxAttempts,omitempty" validate:"omitnil,min=1"`
	PointsValue  float64 `json:"pointsValue,omitempty" validate:"min=0"`
	ShowFeedback *bool   `json:"showFeedback,omitempty"`
}

var activityDefaults = map[ActivityType]struct {
	points       float64
	showFeedback bool
}{
	ActivityLesson:     {points: 1, showFeedback: true},
	ActivityAssignment: {points: 2, showFeedback: true},
	ActivityExam:       {points: 2, showFeedback: false},
	ActivityLab:        {points: 1, showFeedback: true},
}

// ResolveMaxAttempts applies per-call > activity type > course assessment >
// UnlimitedAttempts. A per-call value comes from the client, so it can only
// lower the configured ceiling.
func ResolveMaxAttempts(call, activity, course *int) int {
	configured := UnlimitedAttempts
	switch {
	case activity != nil && *activity > 0:
		configured = *activity
	case course != nil && *course > 0:
		configured = *course
	}
	if call != nil && *call > 0 && *call < configured {
		return *call
	}
	return configured
}

// effectiveMaxAttempts never lets a later policy change raise a ceiling that
// was fixed when the assessment was created.
func effectiveMaxAttempts(stored int, inst Instance) int {
	current := ResolveMaxAttempts(nil, inst.Activity.MaxAttempts, inst.Pool.MaxAttempts)
	if stored > 0 && stored < current {
		return stored
	}
	return current
}

func resolvePoints(inst Instance) float64 {
	if inst.Pool.PointsValue > 0 {
		return inst.Pool.PointsValue
	}
	if inst.Activity.PointsValue > 0 {
		return inst.Activity.PointsValue
	}
	if d, ok := activityDefaults[inst.activityType()]; ok {
		return d.points
	}
	return 1
}

func resolveShowFeedback(inst Instance) bool {
	if inst.Pool.ShowFeedback != nil {
		return *inst.Pool.ShowFeedback
	}
	if inst.Activity.ShowFeedback != nil {
		return *inst.Activity.ShowFeedback
	}
	if d, ok := activityDefaults[inst.activityType()]; ok {
		return d.showFeedback
	}
	return true
}
