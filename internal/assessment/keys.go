package assessment

import (
	"strings"

	"github.com/rtdacademy/assessments/internal/docstore"
)

// Key addresses one assessment instance of one student.
type Key struct {
	StudentKey   string
	CourseID     string
	AssessmentID string
}

// NormalizeStudentKey turns an identity (usually an email) into a path safe key.
func NormalizeStudentKey(identity string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(identity)), ".", ",")
}

func NewKey(identity, courseID, assessmentID string) (Key, error) {
	k := Key{
		StudentKey:   NormalizeStudentKey(identity),
		CourseID:     strings.TrimSpace(courseID),
		AssessmentID: strings.TrimSpace(assessmentID),
	}
	if _, err := k.paths(); err != nil {
		return Key{}, err
	}
	return k, nil
}

type paths struct {
	public string
	secure string
	grade  string
}

func (k Key) paths() (paths, error) {
	pub, err := docstore.Join("students", k.StudentKey, "courses", k.CourseID, "assessments", k.AssessmentID)
	if err != nil {
		return paths{}, err
	}
	sec, err := docstore.Join("secureAssessments", k.CourseID, k.AssessmentID, k.StudentKey)
	if err != nil {
		return paths{}, err
	}
	grade, err := docstore.Join("students", k.StudentKey, "courses", k.CourseID, "grades", "assessments", k.AssessmentID)
	if err != nil {
		return paths{}, err
	}
	return paths{public: pub, secure: sec, grade: grade}, nil
}

// PublicPath is the student readable location of the assessment state.
func (k Key) PublicPath() string {
	p, _ := k.paths()
	return p.public
}

// SecurePath is the server-only location of the answer key.
func (k Key) SecurePath() string {
	p, _ := k.paths()
	return p.secure
}

func (k Key) GradePath() string {
	p, _ := k.paths()
	return p.grade
}
