package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rtdacademy/assessments/internal/assessment"
	"github.com/rtdacademy/assessments/internal/dispatch"
	"github.com/rtdacademy/assessments/internal/rbac"
)

// permFor maps an operation to the permission it needs. Unknown operations
// fall through to the dispatcher, which reports the legal set.
func permFor(op string) string {
	if strings.EqualFold(op, dispatch.OpGenerate) {
		return rbac.PermGenerate
	}
	return rbac.PermEvaluate
}

// POST /api/courses/{courseID}/assessments/{assessmentID}/{operation}
func OperationHandler(d Dispatcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dispatch.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json"})
			return
		}
		req.CourseID = chi.URLParam(r, "courseID")
		req.AssessmentID = chi.URLParam(r, "assessmentID")
		req.Operation = chi.URLParam(r, "operation")

		p, _ := rbac.PrincipalFrom(r.Context())
		if !p.Can(permFor(req.Operation)) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		req.IsStaff = p.Staff()
		req.StudentIdentity = p.ActingFor(req.StudentIdentity)

		out, err := d.Handle(r.Context(), req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/courses/{courseID}/assessments/{assessmentID}[?student=]
func StateHandler(s StateReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := rbac.PrincipalFrom(r.Context())
		key, err := assessment.NewKey(
			p.ActingFor(r.URL.Query().Get("student")),
			chi.URLParam(r, "courseID"),
			chi.URLParam(r, "assessmentID"),
		)
		if err != nil {
			writeError(w, logger, &dispatch.RequestError{Field: "path", Rule: "segment"})
			return
		}
		st, err := s.State(r.Context(), key)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": st})
	}
}
