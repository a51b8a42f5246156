// Package app assembles the study services over one record store.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	api "github.com/mind-engage/mindengage-study/internal/api/http"
	"github.com/mind-engage/mindengage-study/internal/auth"
	"github.com/mind-engage/mindengage-study/internal/bank"
	"github.com/mind-engage/mindengage-study/internal/config"
	"github.com/mind-engage/mindengage-study/internal/csvimport"
	"github.com/mind-engage/mindengage-study/internal/dashboard"
	"github.com/mind-engage/mindengage-study/internal/exam"
	"github.com/mind-engage/mindengage-study/internal/grading"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/review"
	"github.com/mind-engage/mindengage-study/internal/storage"
	"github.com/mind-engage/mindengage-study/internal/store"
	"github.com/mind-engage/mindengage-study/internal/store/local"
	"github.com/mind-engage/mindengage-study/internal/store/remote"
)

// OpenStore picks the backend named by the configuration.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendRemote:
		if cfg.RemoteDSN == "" {
			return nil, errors.New("backend remote needs remote_dsn")
		}
		s, err := remote.Open(ctx, cfg.RemoteDSN, cfg.RemoteMaxConns)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := local.Open(ctx, cfg.LocalDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type App struct {
	Store     store.Store
	Bank      *bank.Service
	Importer  *csvimport.Importer
	Generator *exam.Generator
	Sessions  *exam.Session
	Reviews   *review.Service
	Dashboard *dashboard.Aggregator
	Auth      *auth.Service
	Log       *logger.Logger

	cfg config.Config
	now func() time.Time
}

type Option func(*App)

// WithClock fixes the time source of every time-dependent service.
func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

func New(st store.Store, cfg config.Config, log *logger.Logger, opts ...Option) *App {
	a := &App{Store: st, Log: logger.OrNop(log), cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	grader := grading.NewDefaultGrader(grading.WithTrimFillBlank(true))

	a.Bank = bank.NewService(st, a.Log)
	importOpts := []csvimport.Option{csvimport.WithClock(a.now)}
	if cfg.ArchiveDir != "" {
		arch, err := storage.NewFSArchive(cfg.ArchiveDir)
		if err != nil {
			a.Log.Warn("app: import archive disabled", "dir", cfg.ArchiveDir, "error", err)
		} else {
			importOpts = append(importOpts, csvimport.WithArchive(arch))
		}
	}
	a.Importer = csvimport.NewImporter(st, a.Log, importOpts...)
	a.Dashboard = dashboard.New(st, a.Log,
		dashboard.WithClock(a.now),
		dashboard.WithTrendDays(cfg.DashboardTrendDays),
		dashboard.WithRecentLimit(cfg.DashboardRecentLimit),
	)
	a.Generator = exam.NewGenerator(st, a.Log, exam.WithGeneratorClock(a.now))
	a.Sessions = exam.NewSession(st, grader, a.Log,
		exam.WithSessionClock(a.now),
		exam.WithInvalidator(a.Dashboard),
	)
	a.Reviews = review.NewService(review.NewScheduler(st, a.Log, review.WithClock(a.now)), grader)
	a.Auth = auth.NewService(cfg)
	return a
}

func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Auth:           a.Auth,
		Bank:           a.Bank,
		Importer:       a.Importer,
		Generator:      a.Generator,
		Sessions:       a.Sessions,
		Reviews:        a.Reviews,
		Dashboard:      a.Dashboard,
		Log:            a.Log,
		CORSOrigins:    a.cfg.CORSOrigins,
		RequestTimeout: a.cfg.RequestTimeout,
		Now:            a.now,
	})
}

func (a *App) Close() error { return a.Store.Close() }
