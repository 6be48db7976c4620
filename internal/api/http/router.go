package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rtdacademy/assessments/internal/assessment"
	auth "github.com/rtdacademy/assessments/internal/auth/middleware"
	"github.com/rtdacademy/assessments/internal/dispatch"
	"github.com/rtdacademy/assessments/internal/gradebook"
	"github.com/rtdacademy/assessments/internal/rbac"
	"github.com/rtdacademy/assessments/internal/submissions"
)

type Dispatcher interface {
	Handle(ctx context.Context, req dispatch.Request) (any, error)
}

type StateReader interface {
	State(ctx context.Context, key assessment.Key) (assessment.PublicState, error)
}

type GradebookLister interface {
	List(ctx context.Context, courseID, studentKey string) ([]gradebook.Entry, error)
}

type SubmissionLister interface {
	List(ctx context.Context, f submissions.Filter) ([]submissions.Record, error)
}

// Server holds the collaborators of the HTTP surface. Gradebook and
// Submissions are optional.
type Server struct {
	Dispatcher  Dispatcher
	State       StateReader
	Gradebook   GradebookLister
	Submissions SubmissionLister

	Auth            *auth.AuthService
	Staff           auth.StaffAccount
	EnableLocalAuth bool

	CORSOrigins []string
	Timeout     time.Duration
	Logger      *slog.Logger

	// Ready backs /readyz; nil means always ready.
	Ready func(context.Context) error
}

func NewRouter(s Server) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(logger), middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(s.Auth, s.Staff))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(s.Auth))
		pr.Route("/api/courses/{courseID}", func(cr chi.Router) {
			cr.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).
				Get("/assessments/{assessmentID}", StateHandler(s.State, logger))
			cr.With(rbac.RequireAny(rbac.PermGenerate, rbac.PermEvaluate)).
				Post("/assessments/{assessmentID}/{operation}", OperationHandler(s.Dispatcher, logger))
			if s.Gradebook != nil {
				cr.With(rbac.Require(rbac.PermGradebookView)).
					Get("/gradebook", GradebookHandler(s.Gradebook, logger))
			}
			if s.Submissions != nil {
				cr.With(rbac.Require(rbac.PermSubmissionsView)).
					Get("/submissions", SubmissionsHandler(s.Submissions, logger))
			}
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.Ready != nil {
			if err := s.Ready(r.Context()); err != nil {
				logger.Warn("not ready", "err", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// RequestLogger writes one structured line per request.
func RequestLogger(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"dur", time.Since(start),
				"req_id", middleware.GetReqID(r.Context()))
		})
	}
}
