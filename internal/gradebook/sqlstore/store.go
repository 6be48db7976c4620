package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rtdacademy/assessments/internal/gradebook"
)

type Store struct{ DB *sql.DB }

func (s *Store) UpsertEntry(ctx context.Context, e gradebook.Entry) (gradebook.Entry, error) {
	// the ledger keeps the higher score if an older update arrives late
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO gradebook_entries (student_key, course_id, assessment_id, title, unit, weight, score, max_score, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (course_id, assessment_id, student_key)
		DO UPDATE SET
			title=EXCLUDED.title,
			unit=EXCLUDED.unit,
			weight=EXCLUDED.weight,
			score=CASE WHEN EXCLUDED.score > gradebook_entries.score THEN EXCLUDED.score ELSE gradebook_entries.score END,
			max_score=EXCLUDED.max_score,
			updated_at=EXCLUDED.updated_at
		RETURNING score`,
		e.StudentKey, e.CourseID, e.AssessmentID, e.Title, e.Unit, e.Weight, e.Score, e.MaxScore, e.UpdatedAt.UnixNano()).
		Scan(&e.Score)
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, courseID, studentKey string) ([]gradebook.Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT student_key, course_id, assessment_id, title, unit, weight, score, max_score, updated_at
		FROM gradebook_entries
		WHERE course_id=$1 AND ($2 = '' OR student_key=$2)
		ORDER BY student_key, assessment_id`, courseID, studentKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gradebook.Entry
	for rows.Next() {
		var e gradebook.Entry
		var updated int64
		if err := rows.Scan(&e.StudentKey, &e.CourseID, &e.AssessmentID, &e.Title, &e.Unit, &e.Weight, &e.Score, &e.MaxScore, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetCourseLink(ctx context.Context, courseID string) (gradebook.LTILink, error) {
	var link gradebook.LTILink
	err := s.DB.QueryRowContext(ctx, `
		SELECT course_id, platform_issuer, deployment_id, context_id, resource_link_id, lineitems_url
		FROM lti_course_links WHERE course_id=$1`, courseID).
		Scan(&link.CourseID, &link.PlatformIssuer, &link.DeploymentID, &link.ContextID, &link.ResourceLinkID, &link.LineItemsURL)
	if errors.Is(err, sql.ErrNoRows) {
		return gradebook.LTILink{}, gradebook.ErrNoLink
	}
	return link, err
}

// LinkCourse records the LTI context a course is launched from.
func (s *Store) LinkCourse(ctx context.Context, l gradebook.LTILink) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO lti_course_links (course_id, platform_issuer, deployment_id, context_id, resource_link_id, lineitems_url)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (course_id) DO UPDATE SET
			platform_issuer=EXCLUDED.platform_issuer,
			deployment_id=EXCLUDED.deployment_id,
			context_id=EXCLUDED.context_id,
			resource_link_id=EXCLUDED.resource_link_id,
			lineitems_url=EXCLUDED.lineitems_url,
			updated_at=CURRENT_TIMESTAMP`,
		l.CourseID, l.PlatformIssuer, l.DeploymentID, l.ContextID, l.ResourceLinkID, l.LineItemsURL)
	return err
}

// MapUser records the platform subject of a local student.
func (s *Store) MapUser(ctx context.Context, issuer, studentKey, platformSub string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO lti_user_map (platform_issuer, platform_sub, local_user_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (platform_issuer, platform_sub) DO UPDATE SET local_user_id=EXCLUDED.local_user_id`,
		issuer, platformSub, studentKey)
	return err
}

func (s *Store) UpsertLineItem(ctx context.Context, li gradebook.GradebookLineItem) (gradebook.GradebookLineItem, error) {
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO gradebook_lineitems (course_id, assessment_id, platform_issuer, label, score_max, line_item_url)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (course_id, assessment_id, platform_issuer)
		DO UPDATE SET
			label=EXCLUDED.label,
			score_max=EXCLUDED.score_max,
			line_item_url=EXCLUDED.line_item_url,
			updated_at=CURRENT_TIMESTAMP
		RETURNING id`,
		li.CourseID, li.AssessmentID, li.PlatformIssuer, li.Label, li.ScoreMax, li.LineItemURL).
		Scan(&li.ID)
	return li, err
}

func (s *Store) FindLineItem(ctx context.Context, courseID, assessmentID, issuer string) (gradebook.GradebookLineItem, error) {
	var li gradebook.GradebookLineItem
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, course_id, assessment_id, platform_issuer, label, score_max, line_item_url
		FROM gradebook_lineitems
		WHERE course_id=$1 AND assessment_id=$2 AND platform_issuer=$3`,
		courseID, assessmentID, issuer).
		Scan(&li.ID, &li.CourseID, &li.AssessmentID, &li.PlatformIssuer, &li.Label, &li.ScoreMax, &li.LineItemURL)
	if errors.Is(err, sql.ErrNoRows) {
		return li, gradebook.ErrNotFound
	}
	return li, err
}

func (s *Store) GetPlatformUserID(ctx context.Context, issuer, studentKey string) (string, error) {
	var sub string
	err := s.DB.QueryRowContext(ctx, `SELECT platform_sub FROM lti_user_map WHERE platform_issuer=$1 AND local_user_id=$2`,
		issuer, studentKey).Scan(&sub)
	return sub, err
}

func (s *Store) MarkSyncPending(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO grade_sync_status (entry_key, status, retries, updated_at)
		VALUES ($1,'pending',0,CURRENT_TIMESTAMP)
		ON CONFLICT (entry_key)
		DO UPDATE SET status='pending', updated_at=CURRENT_TIMESTAMP`,
		key)
	return err
}

func (s *Store) MarkSyncOK(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE grade_sync_status
		   SET status='ok', last_error=NULL, updated_at=CURRENT_TIMESTAMP
		 WHERE entry_key=$1`, key)
	return err
}

func (s *Store) MarkSyncFailed(ctx context.Context, key string, lastErr string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO grade_sync_status (entry_key, status, retries, last_error, updated_at)
		VALUES ($1,'failed',1,$2,CURRENT_TIMESTAMP)
		ON CONFLICT (entry_key)
		DO UPDATE SET
			status='failed',
			retries=grade_sync_status.retries+1,
			last_error=$2,
			updated_at=CURRENT_TIMESTAMP`,
		key, lastErr)
	return err
}

func (s *Store) GetSyncStatus(ctx context.Context, key string) (gradebook.SyncStatus, error) {
	st := gradebook.SyncStatus{Key: key}
	var lastErr sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT status, retries, last_error FROM grade_sync_status WHERE entry_key=$1`, key).
		Scan(&st.Status, &st.Retries, &lastErr)
	if errors.Is(err, sql.ErrNoRows) {
		return st, gradebook.ErrNotFound
	}
	st.LastError = lastErr.String
	return st, err
}
