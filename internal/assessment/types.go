package assessment

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusAttempted Status = "attempted"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further submissions are accepted.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

type Option struct {
	ID       string `json:"id" validate:"required"`
	Text     string `json:"text" validate:"required"`
	Feedback string `json:"feedback,omitempty"`
}

// QuestionRecord is one immutable entry of a question pool. ID is optional;
// without it the pool index identifies the question.
type QuestionRecord struct {
	ID              string   `json:"id,omitempty"`
	Text            string   `json:"text" validate:"required"`
	Options         []Option `json:"options" validate:"min=2,dive"`
	CorrectOptionID string   `json:"correctOptionId" validate:"required"`
	Explanation     string   `json:"explanation,omitempty"`
	Difficulty      string   `json:"difficulty,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Validate checks option id uniqueness and that the correct id is one of them.
func (q QuestionRecord) Validate() error {
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("duplicate option id %q", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	if _, ok := seen[q.CorrectOptionID]; !ok {
		return fmt.Errorf("correct option %q is not among the options", q.CorrectOptionID)
	}
	return nil
}

// PoolConfig is the course supplied definition of one multiple-choice
// assessment. Pointer fields are unset when the course does not override
// the activity-type policy.
type PoolConfig struct {
	Questions          []QuestionRecord `json:"questions" validate:"dive"`
	RandomizeQuestions bool             `json:"randomizeQuestions"`
	RandomizeOptions   bool             `json:"randomizeOptions"`
	AllowSameQuestion  bool             `json:"allowSameQuestion"`
	DifficultyFilter   string           `json:"difficultyFilter,omitempty"`
	TagFilter          []string         `json:"tagFilter,omitempty"`
	ActivityType       ActivityType     `json:"activityType" validate:"omitempty,oneof=lesson assignment exam lab"`
	MaxAttempts        *int             `json:"maxAttempts,omitempty" validate:"omitnil,min=1"`
	PointsValue        float64          `json:"pointsValue,omitempty" validate:"min=0"`
	ShowFeedback       *bool            `json:"showFeedback,omitempty"`
	Theme              string           `json:"theme,omitempty"`
}

type PublicOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Settings struct {
	ActivityType ActivityType `json:"activityType"`
	ShowFeedback bool         `json:"showFeedback"`
	ExamMode     bool         `json:"examMode,omitempty"`
	Theme        string       `json:"theme,omitempty"`
}

type Submission struct {
	Answer    string    `json:"answer"`
	IsCorrect bool      `json:"isCorrect"`
	Feedback  string    `json:"feedback,omitempty"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

// PublicState is the student readable document. It never holds the answer
// key, the explanation or per-option feedback of an unanswered question.
type PublicState struct {
	QuestionText          string         `json:"questionText"`
	Options               []PublicOption `json:"options"`
	Attempts              int            `json:"attempts"`
	MaxAttempts           int            `json:"maxAttempts"`
	Status                Status         `json:"status"`
	UsedQuestionIDs       []string       `json:"usedQuestionIds"`
	SelectedQuestionIndex int            `json:"selectedQuestionIndex"`
	PointsValue           float64        `json:"pointsValue"`
	Settings              Settings       `json:"settings"`
	LastSubmission        *Submission    `json:"lastSubmission,omitempty"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// SecureKey lives on a server-only path and is deleted once the assessment
// reaches a terminal state.
type SecureKey struct {
	CorrectOptionID       string            `json:"correctOptionId"`
	Explanation           string            `json:"explanation,omitempty"`
	OptionFeedback        map[string]string `json:"optionFeedback,omitempty"`
	OptionIDs             []string          `json:"optionIds"`
	SelectedQuestionIndex int               `json:"selectedQuestionIndex"`
}

type GradeRecord struct {
	Score     float64   `json:"score"`
	MaxScore  float64   `json:"maxScore"`
	UpdatedAt time.Time `json:"updatedAt"`
}
