package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-study/internal/app"
	"github.com/mind-engage/mindengage-study/internal/config"
	"github.com/mind-engage/mindengage-study/internal/logger"
)

var (
	v          = config.New()
	configFile string

	rootCmd = &cobra.Command{
		Use:   "studyd",
		Short: "Question bank, exams and spaced repetition for a single student",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	// flag defaults mirror the config defaults: an unchanged flag still wins over them in viper
	persistentFlag("mode", "dev|prod")
	persistentFlag("backend", "record store backend: local|remote")
	persistentFlag("local-dsn", "sqlite dsn for the local backend")
	persistentFlag("remote-dsn", "postgres dsn for the remote backend")

	serveCmd.Flags().String("addr", v.GetString("http_addr"), "http listen address")
	_ = v.BindPFlag("http_addr", serveCmd.Flags().Lookup("addr"))

	importCmd.Flags().Bool("commit", false, "persist the parsed questions instead of only previewing them")

	rootCmd.AddCommand(serveCmd, importCmd, dueCmd)
}

// persistentFlag declares a dashed root flag bound to its underscored config key.
func persistentFlag(name, usage string) {
	key := strings.ReplaceAll(name, "-", "_")
	rootCmd.PersistentFlags().String(name, v.GetString(key), usage)
	_ = v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name))
}

// boot loads the configuration, the logger and the application over the configured store.
func boot(ctx context.Context) (*app.App, config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, cfg, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Mode)
	if err != nil {
		return nil, cfg, fmt.Errorf("logger: %w", err)
	}
	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	return app.New(st, cfg, log), cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		a, cfg, err := boot(openCtx)
		cancel()
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.Log.Sync()

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           a.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		a.Log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "backend", cfg.Backend)

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			a.Log.Info("shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Preview or commit a CSV of questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, _, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.Log.Sync()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		p, err := a.Importer.Parse(ctx, f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		commit, _ := cmd.Flags().GetBool("commit")
		if !commit {
			for _, e := range p.Log {
				fmt.Fprintln(out, e)
			}
			fmt.Fprintf(out, "preview only: %d questions ready, run again with --commit to save them\n", len(p.Rows))
			return a.Importer.Discard(ctx, p)
		}
		rep, err := a.Importer.Commit(ctx, p)
		for _, e := range rep.Log {
			fmt.Fprintln(out, e)
		}
		return err
	},
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List the questions due for review today",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, _, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.Log.Sync()

		items, err := a.Reviews.DueQuestions(ctx, time.Now())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, it := range items {
			fmt.Fprintf(out, "%s  caixa %d  %s\n", it.Review.NextDue.Format("2006-01-02"), it.Review.Bucket, it.Question.Statement)
		}
		fmt.Fprintf(out, "%d due\n", len(items))
		return nil
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
