package assessment

import (
	"context"
	"time"

	"github.com/rtdacademy/assessments/internal/docstore"
)

// GradeLedger applies the best-score policy to a grade path.
type GradeLedger interface {
	RaiseScoreIfHigher(ctx context.Context, path string, score, maxScore float64) (raised bool, rec GradeRecord, err error)
}

type StoreGradeLedger struct {
	Store docstore.Store
	Now   func() time.Time
}

// RaiseScoreIfHigher writes score when no grade exists yet, including a zero,
// and otherwise only when score is strictly higher.
func (l StoreGradeLedger) RaiseScoreIfHigher(ctx context.Context, path string, score, maxScore float64) (bool, GradeRecord, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	var (
		raised bool
		rec    GradeRecord
	)
	err := docstore.UpdateJSON(ctx, l.Store, path, func(cur *GradeRecord, exists bool) (bool, error) {
		if exists && score <= cur.Score {
			rec = *cur
			return false, nil
		}
		cur.Score = score
		cur.MaxScore = maxScore
		cur.UpdatedAt = now().UTC()
		rec, raised = *cur, true
		return true, nil
	})
	if err != nil {
		return false, GradeRecord{}, err
	}
	return raised, rec, nil
}
