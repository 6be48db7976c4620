// Package submissions is the append-only audit trail of graded answers.
package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Record struct {
	ID            string    `json:"id"`
	StudentKey    string    `json:"studentKey"`
	CourseID      string    `json:"courseId"`
	AssessmentID  string    `json:"assessmentId"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	Attempt       int       `json:"attempt"`
	MaxAttempts   int       `json:"maxAttempts"`
	Score         float64   `json:"score"`
	QuestionIndex int       `json:"questionIndex"`
	QuestionText  string    `json:"questionText"`
	Status        string    `json:"status"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

type Filter struct {
	StudentKey   string
	CourseID     string
	AssessmentID string
	Limit        int
}

type Log interface {
	Append(ctx context.Context, r Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
}

// prepare fills the id and timestamp of a record about to be appended.
func prepare(r Record) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	return r
}

type SQLLog struct{ db *sql.DB }

func NewSQLLog(db *sql.DB) *SQLLog { return &SQLLog{db: db} }

func (l *SQLLog) Append(ctx context.Context, r Record) error {
	r = prepare(r)
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO submission_log (id, student_key, course_id, assessment_id, answer, is_correct, attempt, score, question_index, data, submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.StudentKey, r.CourseID, r.AssessmentID, r.Answer, r.IsCorrect, r.Attempt, r.Score, r.QuestionIndex,
		string(data), r.SubmittedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("append submission: %w", err)
	}
	return nil
}

func (l *SQLLog) List(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT data FROM submission_log
		  WHERE ($1 = '' OR student_key = $1)
		    AND ($2 = '' OR course_id = $2)
		    AND ($3 = '' OR assessment_id = $3)
		  ORDER BY submitted_at ASC
		  LIMIT $4`,
		f.StudentKey, f.CourseID, f.AssessmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	out := make([]Record, 0, 16)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type memoryLog struct {
	mu      sync.Mutex
	records []Record
}

func NewInMemoryLog() Log { return &memoryLog{} }

func (m *memoryLog) Append(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, prepare(r))
	return nil
}

func (m *memoryLog) List(_ context.Context, f Filter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if (f.StudentKey == "" || r.StudentKey == f.StudentKey) &&
			(f.CourseID == "" || r.CourseID == f.CourseID) &&
			(f.AssessmentID == "" || r.AssessmentID == f.AssessmentID) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
