package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rtdacademy/assessments/internal/assessment"
	"github.com/rtdacademy/assessments/internal/course"
	"github.com/rtdacademy/assessments/internal/docstore"
	"github.com/rtdacademy/assessments/internal/grading"
)

// Draft is the stored state of a long-answer assessment.
type Draft struct {
	Prompt    string    `json:"prompt"`
	MaxWords  int       `json:"maxWords,omitempty"`
	Answer    string    `json:"answer,omitempty"`
	Words     int       `json:"words"`
	Saves     int       `json:"saves"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type LongAnswerResult struct {
	Success      bool   `json:"success"`
	AssessmentID string `json:"assessmentId"`
	Draft        Draft  `json:"draft"`
}

// TooLongError rejects an answer above the configured word limit.
type TooLongError struct {
	Words, MaxWords int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("answer has %d words, the limit is %d", e.Words, e.MaxWords)
}

// StoreLongAnswer keeps long-answer drafts in the document store. Grading is
// left to staff; Scorer only checks the word limit and defaults to
// grading.NewRouter.
type StoreLongAnswer struct {
	Store  docstore.Store
	Scorer grading.Scorer
	Now    func() time.Time
}

func (s StoreLongAnswer) path(key assessment.Key) (string, error) {
	return docstore.Join("students", key.StudentKey, "courses", key.CourseID, "longAnswers", key.AssessmentID)
}

func (s StoreLongAnswer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Generate issues the prompt, keeping any saved answer.
func (s StoreLongAnswer) Generate(ctx context.Context, key assessment.Key, def *course.Assessment) (any, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out Draft
	err = docstore.UpdateJSON(ctx, s.Store, p, func(d *Draft, exists bool) (bool, error) {
		if !exists {
			d.CreatedAt, d.Status = now, "draft"
		}
		d.Prompt, d.MaxWords, d.UpdatedAt = def.LongAnswer.Prompt, def.LongAnswer.MaxWords, now
		out = *d
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("write long answer: %w", err)
	}
	return LongAnswerResult{Success: true, AssessmentID: key.AssessmentID, Draft: out}, nil
}

// Save stores the answer text. It requires a prior Generate.
func (s StoreLongAnswer) Save(ctx context.Context, key assessment.Key, def *course.Assessment, answer string) (any, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	scorer := s.Scorer
	if scorer == nil {
		scorer = grading.NewRouter()
	}
	v, err := scorer.Score(ctx, grading.Item{
		Kind:     grading.LongAnswer,
		Points:   def.LongAnswer.PointsValue,
		MaxWords: def.LongAnswer.MaxWords,
	}, answer)
	if err != nil {
		return nil, fmt.Errorf("score long answer: %w", err)
	}
	if v.Invalid {
		return nil, &TooLongError{Words: v.Words, MaxWords: def.LongAnswer.MaxWords}
	}
	words := v.Words
	var out Draft
	err = docstore.UpdateJSON(ctx, s.Store, p, func(d *Draft, exists bool) (bool, error) {
		if !exists {
			return false, &assessment.NotFoundError{What: "long answer " + key.AssessmentID}
		}
		d.Answer, d.Words, d.Status, d.UpdatedAt = answer, words, "saved", s.now()
		d.Saves++
		out = *d
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return LongAnswerResult{Success: true, AssessmentID: key.AssessmentID, Draft: out}, nil
}
