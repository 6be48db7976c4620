// Package dispatch routes (course, assessment, operation) requests to the
// handler of the resolved assessment type.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rtdacademy/assessments/internal/assessment"
	"github.com/rtdacademy/assessments/internal/course"
)

const (
	OpGenerate = "generate"
	OpEvaluate = "evaluate"
	OpSubmit   = "submit"
	OpSave     = "save"
)

var operations = map[course.Type][]string{
	course.TypeMultipleChoice: {OpGenerate, OpEvaluate, OpSubmit},
	course.TypeLongAnswer:     {OpGenerate, OpSave, OpSubmit},
}

// Request is the operation-addressed call of a student or staff client.
type Request struct {
	CourseID        string `json:"courseId" validate:"required"`
	AssessmentID    string `json:"assessmentId" validate:"required"`
	Operation       string `json:"operation" validate:"required"`
	StudentIdentity string `json:"studentIdentity" validate:"required"`
	Answer          string `json:"answer,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
	Topic           string `json:"topic,omitempty"`
	ExamMode        bool   `json:"examMode,omitempty"`
	MaxAttempts     *int   `json:"maxAttempts,omitempty" validate:"omitnil,min=1"`
	// IsStaff is set by the transport from the verified role.
	IsStaff bool `json:"-"`
}

// RequestError reports a malformed request.
type RequestError struct {
	Field string
	Rule  string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s failed %s", e.Field, e.Rule)
}

type Engine interface {
	Generate(ctx context.Context, inst assessment.Instance, p assessment.GenerateParams) (assessment.GenerateResult, error)
	Evaluate(ctx context.Context, inst assessment.Instance, p assessment.EvaluateParams) (assessment.EvaluateResult, error)
}

type Catalog interface {
	Lookup(courseID, assessmentID string) (*course.Assessment, error)
	Instance(key assessment.Key, a *course.Assessment) assessment.Instance
}

// LongAnswerHandler serves free-text assessments.
type LongAnswerHandler interface {
	Generate(ctx context.Context, key assessment.Key, def *course.Assessment) (any, error)
	Save(ctx context.Context, key assessment.Key, def *course.Assessment, answer string) (any, error)
}

type Dispatcher struct {
	catalog  Catalog
	engine   Engine
	long     LongAnswerHandler
	validate *validator.Validate
	logger   *slog.Logger
}

// New builds a dispatcher. long may be nil, in which case long-answer
// assessments fail with a configuration error.
func New(catalog Catalog, engine Engine, long LongAnswerHandler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{catalog: catalog, engine: engine, long: long, validate: validator.New(), logger: logger}
}

// Operations lists the legal operations of an assessment type.
func Operations(t course.Type) []string { return append([]string(nil), operations[t]...) }

// Handle returns the operation result: an assessment.GenerateResult, an
// assessment.EvaluateResult or the long-answer handler's value.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (any, error) {
	req.Operation = strings.ToLower(strings.TrimSpace(req.Operation))
	if strings.TrimSpace(req.CourseID) == "" || strings.TrimSpace(req.AssessmentID) == "" {
		return nil, &assessment.ConfigurationError{CourseID: req.CourseID, AssessmentID: req.AssessmentID, Reason: "course and assessment are required"}
	}
	if err := d.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &RequestError{Field: verrs[0].Field(), Rule: verrs[0].Tag()}
		}
		return nil, err
	}

	def, err := d.catalog.Lookup(req.CourseID, req.AssessmentID)
	if err != nil {
		return nil, err
	}
	allowed := operations[def.Type]
	if !contains(allowed, req.Operation) {
		return nil, &assessment.InvalidOperationError{Operation: req.Operation, Type: string(def.Type), Allowed: Operations(def.Type)}
	}
	key, err := assessment.NewKey(req.StudentIdentity, req.CourseID, req.AssessmentID)
	if err != nil {
		return nil, &RequestError{Field: "StudentIdentity", Rule: "path"}
	}

	d.logger.Info("dispatch",
		"course", req.CourseID, "assessment", req.AssessmentID, "type", def.Type,
		"op", req.Operation, "student", key.StudentKey, "staff", req.IsStaff)

	switch def.Type {
	case course.TypeMultipleChoice:
		inst := d.catalog.Instance(key, def)
		if req.Operation == OpGenerate {
			return d.engine.Generate(ctx, inst, assessment.GenerateParams{
				Difficulty:  req.Difficulty,
				Topic:       req.Topic,
				MaxAttempts: req.MaxAttempts,
				ExamMode:    req.ExamMode,
				IsStaff:     req.IsStaff,
			})
		}
		return d.engine.Evaluate(ctx, inst, assessment.EvaluateParams{
			Answer:   req.Answer,
			ExamMode: req.ExamMode,
			IsStaff:  req.IsStaff,
		})
	case course.TypeLongAnswer:
		if d.long == nil {
			return nil, &assessment.ConfigurationError{CourseID: req.CourseID, AssessmentID: req.AssessmentID, Reason: "no long-answer handler configured"}
		}
		if req.Operation == OpGenerate {
			return d.long.Generate(ctx, key, def)
		}
		return d.long.Save(ctx, key, def, req.Answer)
	default:
		return nil, &assessment.ConfigurationError{CourseID: req.CourseID, AssessmentID: req.AssessmentID, Reason: "unsupported assessment type " + string(def.Type)}
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
