package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rtdacademy/assessments/internal/assessment"
	"github.com/rtdacademy/assessments/internal/submissions"
)

// GET /api/courses/{courseID}/gradebook[?student=]
func GradebookHandler(g GradebookLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := ""
		if s := r.URL.Query().Get("student"); s != "" {
			student = assessment.NormalizeStudentKey(s)
		}
		entries, err := g.List(r.Context(), chi.URLParam(r, "courseID"), student)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
	}
}

// GET /api/courses/{courseID}/submissions[?assessment=&student=&limit=]
func SubmissionsHandler(l SubmissionLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := submissions.Filter{
			CourseID:     chi.URLParam(r, "courseID"),
			AssessmentID: q.Get("assessment"),
		}
		if s := q.Get("student"); s != "" {
			f.StudentKey = assessment.NormalizeStudentKey(s)
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
				return
			}
			f.Limit = n
		}
		recs, err := l.List(r.Context(), f)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "submissions": recs})
	}
}
