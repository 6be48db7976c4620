package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rtdacademy/assessments/internal/docstore"
	"github.com/rtdacademy/assessments/internal/gradebook"
	"github.com/rtdacademy/assessments/internal/grading"
	"github.com/rtdacademy/assessments/internal/submissions"
)

// Instance is one resolved assessment definition for one student.
type Instance struct {
	Key      Key
	Pool     PoolConfig
	Activity ActivitySettings
}

func (i Instance) activityType() ActivityType {
	if i.Pool.ActivityType == "" {
		return ActivityLesson
	}
	return i.Pool.ActivityType
}

// SubmissionLog receives one record per graded answer.
type SubmissionLog interface {
	Append(ctx context.Context, r submissions.Record) error
}

// GradebookSyncer propagates a new best score to the course ledger.
type GradebookSyncer interface {
	Sync(ctx context.Context, u gradebook.Update) error
}

type Engine struct {
	store    docstore.Store
	guard    AttemptGuard
	ledger   GradeLedger
	selector Selector
	scorer   grading.Scorer
	log      SubmissionLog
	book     GradebookSyncer
	logger   *slog.Logger
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithGuard(g AttemptGuard) EngineOption          { return func(e *Engine) { e.guard = g } }
func WithGradeLedger(l GradeLedger) EngineOption     { return func(e *Engine) { e.ledger = l } }
func WithSelector(s Selector) EngineOption           { return func(e *Engine) { e.selector = s } }
func WithScorer(s grading.Scorer) EngineOption       { return func(e *Engine) { e.scorer = s } }
func WithSubmissionLog(l SubmissionLog) EngineOption { return func(e *Engine) { e.log = l } }
func WithGradebook(s GradebookSyncer) EngineOption   { return func(e *Engine) { e.book = s } }
func WithLogger(l *slog.Logger) EngineOption         { return func(e *Engine) { e.logger = l } }
func WithClock(now func() time.Time) EngineOption    { return func(e *Engine) { e.now = now } }

// NewEngine defaults to the loose attempt guard, the store backed grade
// ledger and no submission log or gradebook.
func NewEngine(store docstore.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		selector: NewSelector(nil),
		scorer:   grading.NewRouter(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.guard == nil {
		e.guard = LooseGuard{Store: store}
	}
	if e.ledger == nil {
		e.ledger = StoreGradeLedger{Store: store, Now: e.now}
	}
	return e
}

type GenerateParams struct {
	Difficulty string
	// Topic is a comma separated list of tags.
	Topic       string
	MaxAttempts *int
	ExamMode    bool
	// IsStaff must come from a verified role, never from the request body.
	IsStaff bool
}

type GenerateResult struct {
	Success               bool   `json:"success"`
	AssessmentID          string `json:"assessmentId"`
	SelectedQuestionIndex int    `json:"selectedQuestionIndex"`
	Attempts              int    `json:"attempts"`
	MaxAttempts           int    `json:"maxAttempts"`
	Status                Status `json:"status"`
}

type EvaluateParams struct {
	Answer   string
	ExamMode bool
	IsStaff  bool
}

type Outcome struct {
	IsCorrect       bool   `json:"isCorrect"`
	Feedback        string `json:"feedback,omitempty"`
	Explanation     string `json:"explanation,omitempty"`
	CorrectOptionID string `json:"correctOptionId,omitempty"`
}

// EvaluateResult is returned for every evaluation that reached a decision.
// Success is false when the assessment no longer accepts submissions.
type EvaluateResult struct {
	Success           bool     `json:"success"`
	Result            *Outcome `json:"result,omitempty"`
	AttemptsRemaining int      `json:"attemptsRemaining"`
	AttemptsMade      int      `json:"attemptsMade"`
	Status            Status   `json:"status"`
	Message           string   `json:"message,omitempty"`
}

// State returns the student readable document.
func (e *Engine) State(ctx context.Context, key Key) (PublicState, error) {
	p, err := key.paths()
	if err != nil {
		return PublicState{}, err
	}
	var st PublicState
	ok, err := e.store.Get(ctx, p.public, &st)
	if err != nil {
		return PublicState{}, fmt.Errorf("read assessment state: %w", err)
	}
	if !ok {
		return PublicState{}, &NotFoundError{What: "assessment " + key.AssessmentID}
	}
	return st, nil
}

// Generate issues a new question, or replaces the current one on a
// regeneration. Attempts are carried over unchanged.
func (e *Engine) Generate(ctx context.Context, inst Instance, p GenerateParams) (GenerateResult, error) {
	paths, err := inst.Key.paths()
	if err != nil {
		return GenerateResult{}, err
	}
	if len(inst.Pool.Questions) == 0 {
		return GenerateResult{}, &EmptyPoolError{CourseID: inst.Key.CourseID, AssessmentID: inst.Key.AssessmentID}
	}

	var prev PublicState
	regen, err := e.store.Get(ctx, paths.public, &prev)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("read assessment state: %w", err)
	}

	maxAttempts := ResolveMaxAttempts(p.MaxAttempts, inst.Activity.MaxAttempts, inst.Pool.MaxAttempts)
	if regen {
		maxAttempts = min(maxAttempts, effectiveMaxAttempts(prev.MaxAttempts, inst))
		if p.IsStaff && (prev.Status.Terminal() || prev.Attempts >= maxAttempts) {
			e.logger.Warn("staff reopened closed assessment",
				"student", inst.Key.StudentKey, "assessment", inst.Key.AssessmentID,
				"status", prev.Status, "attempts", prev.Attempts, "max", maxAttempts)
		}
		if !p.IsStaff {
			if prev.Status == StatusCompleted {
				return GenerateResult{}, &AttemptsExceededError{Attempts: prev.Attempts, MaxAttempts: maxAttempts, Completed: true}
			}
			if prev.Attempts >= maxAttempts {
				return GenerateResult{}, &AttemptsExceededError{Attempts: prev.Attempts, MaxAttempts: maxAttempts}
			}
		}
	}

	sel, err := e.selector.Select(inst.Pool, SelectOptions{
		Difficulty: p.Difficulty,
		Tags:       splitTopic(p.Topic),
		UsedIDs:    prev.UsedQuestionIDs,
	})
	if err != nil {
		var empty *EmptyPoolError
		if errors.As(err, &empty) {
			empty.CourseID, empty.AssessmentID = inst.Key.CourseID, inst.Key.AssessmentID
		}
		return GenerateResult{}, err
	}
	used := append(append([]string(nil), prev.UsedQuestionIDs...), sel.ID)
	if sel.Reset {
		used = []string{sel.ID}
	}

	options, key := Split(sel)
	now := e.now().UTC()
	next := PublicState{
		QuestionText:          sel.Question.Text,
		Options:               options,
		Attempts:              prev.Attempts,
		MaxAttempts:           maxAttempts,
		Status:                StatusActive,
		UsedQuestionIDs:       used,
		SelectedQuestionIndex: sel.Index,
		PointsValue:           resolvePoints(inst),
		Settings: Settings{
			ActivityType: inst.activityType(),
			ShowFeedback: resolveShowFeedback(inst),
			ExamMode:     p.ExamMode,
			Theme:        inst.Pool.Theme,
		},
		LastSubmission: prev.LastSubmission,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if regen {
		fresh := next
		fresh.CreatedAt = prev.CreatedAt
		next, err = e.guard.CompareAndUpdateAttempts(ctx, paths.public, prev, func(st *PublicState) {
			attempts := st.Attempts
			*st = fresh
			st.Attempts = attempts
		})
	} else {
		err = e.store.Set(ctx, paths.public, next)
	}
	if err != nil {
		return GenerateResult{}, fmt.Errorf("write assessment state: %w", err)
	}

	if err := e.store.Set(ctx, paths.secure, key); err != nil {
		e.logger.Error("secure key write failed; question unavailable until regenerated",
			"path", paths.secure, "err", err)
		return GenerateResult{}, fmt.Errorf("write answer key: %w", err)
	}

	e.logger.Info("question generated",
		"student", inst.Key.StudentKey, "course", inst.Key.CourseID, "assessment", inst.Key.AssessmentID,
		"index", sel.Index, "regenerated", regen, "staff", p.IsStaff)
	return GenerateResult{
		Success:               true,
		AssessmentID:          inst.Key.AssessmentID,
		SelectedQuestionIndex: sel.Index,
		Attempts:              next.Attempts,
		MaxAttempts:           next.MaxAttempts,
		Status:                next.Status,
	}, nil
}

// Evaluate grades one submitted option id. Exhaustion and completion are
// reported through EvaluateResult.Success, not as errors.
func (e *Engine) Evaluate(ctx context.Context, inst Instance, p EvaluateParams) (EvaluateResult, error) {
	paths, err := inst.Key.paths()
	if err != nil {
		return EvaluateResult{}, err
	}
	var st PublicState
	ok, err := e.store.Get(ctx, paths.public, &st)
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("read assessment state: %w", err)
	}
	if !ok {
		return EvaluateResult{}, &NotFoundError{What: "assessment " + inst.Key.AssessmentID}
	}

	maxAttempts := effectiveMaxAttempts(st.MaxAttempts, inst)
	switch {
	case st.Status == StatusCompleted:
		return closed(st, (&AttemptsExceededError{Completed: true}).Error()), nil
	case st.Attempts >= maxAttempts || st.Status == StatusFailed:
		return closed(st, (&AttemptsExceededError{Attempts: st.Attempts, MaxAttempts: maxAttempts}).Error()), nil
	}

	var key SecureKey
	ok, err = e.store.Get(ctx, paths.secure, &key)
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("read answer key: %w", err)
	}
	if !ok {
		ierr := &IntegrityError{Path: paths.secure, Reason: fmt.Sprintf("answer key missing while status is %s", st.Status)}
		e.logger.Error("assessment integrity violation", "err", ierr,
			"student", inst.Key.StudentKey, "course", inst.Key.CourseID, "assessment", inst.Key.AssessmentID)
		return EvaluateResult{}, ierr
	}

	answer := strings.TrimSpace(p.Answer)
	points := st.PointsValue
	res, err := e.scorer.Score(ctx, grading.Item{
		Kind:     grading.SingleChoice,
		Points:   points,
		Accepted: []string{key.CorrectOptionID},
		Allowed:  key.OptionIDs,
	}, answer)
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("grade answer: %w", err)
	}
	feedback := key.OptionFeedback[answer]
	if res.Invalid {
		feedback = invalidSelectionMessage
		e.logger.Warn("invalid option submitted", "err", &InvalidSelectionError{OptionID: answer},
			"student", inst.Key.StudentKey, "assessment", inst.Key.AssessmentID)
	}

	made := st.Attempts + 1
	status := StatusAttempted
	switch {
	case res.Correct:
		status = StatusCompleted
	case made >= maxAttempts:
		status = StatusFailed
	}
	terminal := status.Terminal()
	reveal := terminal || (st.Settings.ShowFeedback && !st.Settings.ExamMode && !p.ExamMode)
	shown := ""
	if reveal || res.Invalid {
		shown = feedback
	}

	// The grade lands before the attempt so a terminal status is never
	// stored without its score. A failed grade write leaves the attempt unspent.
	score := res.Score
	raised, grade, err := e.ledger.RaiseScoreIfHigher(ctx, paths.grade, score, points)
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("record grade: %w", err)
	}

	now := e.now().UTC()
	sub := &Submission{Answer: answer, IsCorrect: res.Correct, Feedback: shown, Attempt: made, Timestamp: now}
	next, err := e.guard.CompareAndUpdateAttempts(ctx, paths.public, st, func(s *PublicState) {
		s.Attempts++
		s.MaxAttempts = maxAttempts
		s.Status = status
		s.LastSubmission = sub
		s.UpdatedAt = now
	})
	if err != nil {
		if raised {
			e.logger.Warn("grade recorded but attempt not saved",
				"assessment", inst.Key.AssessmentID, "score", grade.Score, "err", err)
		}
		return EvaluateResult{}, fmt.Errorf("record attempt: %w", err)
	}

	e.secondaryEffects(ctx, inst, next, submissions.Record{
		StudentKey:    inst.Key.StudentKey,
		CourseID:      inst.Key.CourseID,
		AssessmentID:  inst.Key.AssessmentID,
		Answer:        answer,
		IsCorrect:     res.Correct,
		Attempt:       next.Attempts,
		MaxAttempts:   maxAttempts,
		Score:         score,
		QuestionIndex: st.SelectedQuestionIndex,
		QuestionText:  st.QuestionText,
		Status:        string(next.Status),
		SubmittedAt:   now,
	}, raised, grade)

	if terminal {
		if err := e.store.Delete(ctx, paths.secure); err != nil {
			e.logger.Warn("answer key cleanup failed", "path", paths.secure, "err", err)
		}
	}

	out := &Outcome{IsCorrect: res.Correct, Feedback: shown}
	if reveal {
		out.Explanation = key.Explanation
	}
	if terminal {
		out.CorrectOptionID = key.CorrectOptionID
	}

	e.logger.Info("answer evaluated",
		"student", inst.Key.StudentKey, "course", inst.Key.CourseID, "assessment", inst.Key.AssessmentID,
		"correct", res.Correct, "attempt", next.Attempts, "max", maxAttempts, "status", next.Status)
	return EvaluateResult{
		Success:           true,
		Result:            out,
		AttemptsRemaining: max(maxAttempts-next.Attempts, 0),
		AttemptsMade:      next.Attempts,
		Status:            next.Status,
	}, nil
}

// secondaryEffects runs the audit log append and gradebook sync concurrently.
// Failures are logged and never reach the caller.
func (e *Engine) secondaryEffects(ctx context.Context, inst Instance, st PublicState, rec submissions.Record, raised bool, grade GradeRecord) {
	var g errgroup.Group
	if e.log != nil {
		g.Go(func() error {
			if err := e.log.Append(ctx, rec); err != nil {
				e.logger.Warn("submission log append failed", "assessment", inst.Key.AssessmentID, "err", err)
			}
			return nil
		})
	}
	if e.book != nil && raised {
		g.Go(func() error {
			err := e.book.Sync(ctx, gradebook.Update{
				StudentKey:   inst.Key.StudentKey,
				CourseID:     inst.Key.CourseID,
				AssessmentID: inst.Key.AssessmentID,
				Score:        grade.Score,
				MaxScore:     grade.MaxScore,
				At:           grade.UpdatedAt,
			})
			if err != nil {
				e.logger.Warn("gradebook sync failed", "assessment", inst.Key.AssessmentID, "status", st.Status, "err", err)
			}
			return nil
		})
	}
	// each effect logs its own failure; the group only joins them
	_ = g.Wait()
}

func closed(st PublicState, msg string) EvaluateResult {
	return EvaluateResult{
		Success:      false,
		AttemptsMade: st.Attempts,
		Status:       st.Status,
		Message:      msg,
	}
}

func splitTopic(topic string) []string {
	if strings.TrimSpace(topic) == "" {
		return nil
	}
	return strings.Split(topic, ",")
}
