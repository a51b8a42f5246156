package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/mindengage-study/internal/auth"
	"github.com/mind-engage/mindengage-study/internal/bank"
	"github.com/mind-engage/mindengage-study/internal/csvimport"
	"github.com/mind-engage/mindengage-study/internal/dashboard"
	"github.com/mind-engage/mindengage-study/internal/exam"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/rbac"
	"github.com/mind-engage/mindengage-study/internal/review"
)

// Deps are the services the API is built from.
type Deps struct {
	Auth      *auth.Service
	Bank      *bank.Service
	Importer  *csvimport.Importer
	Generator *exam.Generator
	Sessions  *exam.Session
	Reviews   *review.Service
	Dashboard *dashboard.Aggregator
	Log       *logger.Logger

	CORSOrigins    []string
	RequestTimeout time.Duration
	// Now is the clock used for due-review queries.
	Now func() time.Time
}

type api struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	d.Log = logger.OrNop(d.Log)
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(d.Auth))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermBankRead)).Get("/disciplinas", a.listSubjects)
		pr.With(rbac.Require(rbac.PermBankWrite)).Post("/disciplinas", a.createSubject)
		pr.With(rbac.Require(rbac.PermBankWrite)).Delete("/disciplinas/{id}", a.deleteSubject)

		pr.With(rbac.Require(rbac.PermBankRead)).Get("/topicos", a.listTopics)
		pr.With(rbac.Require(rbac.PermBankWrite)).Post("/topicos", a.createTopic)
		pr.With(rbac.Require(rbac.PermBankWrite)).Delete("/topicos/{id}", a.deleteTopic)

		pr.With(rbac.Require(rbac.PermBankRead)).Get("/questoes", a.listQuestions)
		pr.With(rbac.Require(rbac.PermBankWrite)).Post("/questoes", a.createQuestion)
		pr.With(rbac.Require(rbac.PermBankRead)).Get("/questoes/{id}", a.getQuestion)
		pr.With(rbac.Require(rbac.PermBankWrite)).Patch("/questoes/{id}", a.updateQuestion)
		pr.With(rbac.Require(rbac.PermBankWrite)).Delete("/questoes/{id}", a.deleteQuestion)
		pr.With(rbac.Require(rbac.PermBankWrite)).Post("/questoes/{id}/flag", a.flagQuestion)

		pr.With(rbac.Require(rbac.PermImport)).Post("/import/csv", a.importCSV)

		pr.With(rbac.Require(rbac.PermExamView)).Get("/simulados", a.listExams)
		pr.With(rbac.Require(rbac.PermExamTake)).Post("/simulados", a.generateExam)
		pr.With(rbac.Require(rbac.PermExamView)).Get("/simulados/{id}", a.getExam)
		pr.With(rbac.Require(rbac.PermExamView)).Get("/simulados/{id}/current", a.currentSlot)
		pr.With(rbac.Require(rbac.PermExamTake)).Post("/simulados/{id}/answers", a.answerSlot)
		pr.With(rbac.Require(rbac.PermExamTake)).Post("/simulados/{id}/finish", a.finishExam)

		pr.With(rbac.Require(rbac.PermReviewView)).Get("/revisoes/due", a.dueReviews)
		pr.With(rbac.Require(rbac.PermReviewAnswer)).Post("/revisoes/{questionID}", a.answerReview)

		pr.With(rbac.Require(rbac.PermDashboardView)).Get("/dashboard", a.dashboard)
		pr.With(rbac.Require(rbac.PermDashboardView)).Get("/dashboard/dias", a.dailyStats)
	})
	return r
}

// requestLogger logs one line per request through the service logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
