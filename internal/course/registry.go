// Package course is the static registry of assessment definitions. It is
// built once at startup from JSON catalogs and never mutated afterwards.
package course

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rtdacademy/assessments/internal/assessment"
	"github.com/rtdacademy/assessments/internal/docstore"
	"github.com/rtdacademy/assessments/internal/gradebook"
)

//go:embed catalogs/*.json
var embedded embed.FS

type Type string

const (
	TypeMultipleChoice Type = "multiple_choice"
	TypeLongAnswer     Type = "long_answer"
)

// LongAnswer configures a free-text assessment handled outside the engine.
type LongAnswer struct {
	Prompt      string  `json:"prompt" validate:"required"`
	MaxWords    int     `json:"maxWords,omitempty" validate:"min=0"`
	PointsValue float64 `json:"pointsValue,omitempty" validate:"min=0"`
}

type Assessment struct {
	ID         string                 `json:"-"`
	CourseID   string                 `json:"-"`
	Type       Type                   `json:"type" validate:"required,oneof=multiple_choice long_answer"`
	Title      string                 `json:"title" validate:"required"`
	Unit       string                 `json:"unit,omitempty"`
	Weight     float64                `json:"weight" validate:"min=0,max=1"`
	Pool       *assessment.PoolConfig `json:"pool,omitempty" validate:"required_if=Type multiple_choice"`
	LongAnswer *LongAnswer            `json:"longAnswer,omitempty" validate:"required_if=Type long_answer"`
}

type Course struct {
	ID            string                                                  `json:"courseId" validate:"required"`
	Title         string                                                  `json:"title" validate:"required"`
	ActivityTypes map[assessment.ActivityType]assessment.ActivitySettings `json:"activityTypes,omitempty" validate:"dive,keys,oneof=lesson assignment exam lab,endkeys"`
	Assessments   map[string]*Assessment                                  `json:"assessments" validate:"required,min=1,dive,required"`
}

// Registry maps (courseId, assessmentId) to an immutable definition.
type Registry struct {
	courses  map[string]*Course
	warnings []string
}

// Load reads the embedded catalogs and, when dir is set, every *.json file in
// it. A course defined twice is an error.
func Load(dir string) (*Registry, error) {
	sub, err := fs.Sub(embedded, "catalogs")
	if err != nil {
		return nil, err
	}
	sources := []fs.FS{sub}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("catalog dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("catalog dir %s is not a directory", dir)
		}
		sources = append(sources, os.DirFS(dir))
	}
	return LoadFS(sources...)
}

func LoadFS(sources ...fs.FS) (*Registry, error) {
	r := &Registry{courses: map[string]*Course{}}
	v := validator.New()
	for _, src := range sources {
		names, err := fs.Glob(src, "*.json")
		if err != nil {
			return nil, err
		}
		sort.Strings(names)
		for _, name := range names {
			raw, err := fs.ReadFile(src, name)
			if err != nil {
				return nil, fmt.Errorf("read catalog %s: %w", name, err)
			}
			c, err := parse(v, raw)
			if err != nil {
				return nil, fmt.Errorf("catalog %s: %w", filepath.Base(name), err)
			}
			if _, dup := r.courses[c.ID]; dup {
				return nil, fmt.Errorf("catalog %s: course %q defined twice", name, c.ID)
			}
			r.courses[c.ID] = c
			r.warnings = append(r.warnings, lint(c)...)
		}
	}
	return r, nil
}

func parse(v *validator.Validate, raw []byte) (*Course, error) {
	var c Course
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	if err := v.Struct(c); err != nil {
		return nil, describe(err)
	}
	if _, err := docstore.Join(c.ID); err != nil {
		return nil, err
	}
	for id, a := range c.Assessments {
		if _, err := docstore.Join(id); err != nil {
			return nil, err
		}
		a.ID, a.CourseID = id, c.ID
		if a.Pool == nil {
			continue
		}
		for i, q := range a.Pool.Questions {
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("assessment %s question %d: %w", id, i, err)
			}
		}
	}
	return &c, nil
}

// describe flattens validator errors into one readable line.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// lint reports definitions that load but cannot serve a request.
func lint(c *Course) []string {
	var out []string
	for id, a := range c.Assessments {
		if a.Type == TypeMultipleChoice && len(a.Pool.Questions) == 0 {
			out = append(out, fmt.Sprintf("course %s assessment %s: question pool is empty", c.ID, id))
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Warnings() []string { return append([]string(nil), r.warnings...) }

// Lookup resolves an assessment definition.
func (r *Registry) Lookup(courseID, assessmentID string) (*Assessment, error) {
	c, ok := r.courses[courseID]
	if !ok {
		return nil, &assessment.ConfigurationError{CourseID: courseID, AssessmentID: assessmentID, Reason: "unknown course"}
	}
	a, ok := c.Assessments[assessmentID]
	if !ok {
		return nil, &assessment.ConfigurationError{CourseID: courseID, AssessmentID: assessmentID, Reason: "unknown assessment"}
	}
	return a, nil
}

// ActivitySettings returns the course policy for an activity type, or the
// zero value when the course sets none.
func (r *Registry) ActivitySettings(courseID string, t assessment.ActivityType) assessment.ActivitySettings {
	c, ok := r.courses[courseID]
	if !ok {
		return assessment.ActivitySettings{}
	}
	if t == "" {
		t = assessment.ActivityLesson
	}
	return c.ActivityTypes[t]
}

// Instance binds a multiple-choice definition to a student key.
func (r *Registry) Instance(key assessment.Key, a *Assessment) assessment.Instance {
	pool := *a.Pool
	return assessment.Instance{
		Key:      key,
		Pool:     pool,
		Activity: r.ActivitySettings(a.CourseID, pool.ActivityType),
	}
}

// GradebookMetadata implements gradebook.Catalog.
func (r *Registry) GradebookMetadata(courseID, assessmentID string) (gradebook.Metadata, error) {
	a, err := r.Lookup(courseID, assessmentID)
	if err != nil {
		return gradebook.Metadata{}, err
	}
	return gradebook.Metadata{Title: a.Title, Unit: a.Unit, Weight: a.Weight}, nil
}

// Courses lists course ids in order.
func (r *Registry) Courses() []string {
	out := make([]string, 0, len(r.courses))
	for id := range r.courses {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Assessments lists the definitions of one course ordered by id.
func (r *Registry) Assessments(courseID string) []*Assessment {
	c, ok := r.courses[courseID]
	if !ok {
		return nil
	}
	out := make([]*Assessment, 0, len(c.Assessments))
	for _, a := range c.Assessments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
