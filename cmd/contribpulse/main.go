package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/contribpulse/contribpulse/internal/analysis"
	"github.com/contribpulse/contribpulse/internal/config"
	"github.com/contribpulse/contribpulse/internal/database"
	"github.com/contribpulse/contribpulse/internal/export"
	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/pipeline"
	"github.com/contribpulse/contribpulse/internal/server"
	"github.com/contribpulse/contribpulse/internal/summarize"
	"github.com/contribpulse/contribpulse/internal/types"
)

var rootCmd = &cobra.Command{
	Use:   "contribpulse",
	Short: "Contributor scoring and expertise classification engine",
	Long:  `Contribpulse scores repository contributors from stored GitHub activity, classifies their expertise areas, and generates activity summaries.`,
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Score contributors over a date window and persist the results",
	Run: func(cmd *cobra.Command, args []string) {
		repository, _ := cmd.Flags().GetString("repository")
		startDate, _ := cmd.Flags().GetString("start-date")
		endDate, _ := cmd.Flags().GetString("end-date")
		intervalRaw, _ := cmd.Flags().GetString("interval")
		force, _ := cmd.Flags().GetBool("force")

		if startDate == "" && endDate == "" {
			today := time.Now().UTC().Format("2006-01-02")
			startDate, endDate = today, today
		}
		for _, d := range []string{startDate, endDate} {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				fmt.Fprintf(os.Stderr, "Error: dates must be YYYY-MM-DD, got %q\n", d)
				os.Exit(1)
			}
		}

		interval := types.IntervalType(intervalRaw)
		switch interval {
		case types.IntervalDay, types.IntervalWeek, types.IntervalMonth:
		default:
			fmt.Fprintf(os.Stderr, "Error: interval must be day, week, or month\n")
			os.Exit(1)
		}

		app, err := buildApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := app.pipeline.ProcessTimeframe(ctx, pipeline.Options{
			Repository: repository,
			Window:     types.DateRange{StartDate: startDate, EndDate: endDate},
			Interval:   interval,
			Force:      force,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Processed %d contributors (%d PRs, %d issues, %d reviews, %d comments)\n",
			result.Totals.Contributors, result.Totals.PullRequests, result.Totals.Issues,
			result.Totals.Reviews, result.Totals.Comments)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.db.Close()

		srv := server.New(app.cfg, app.store, app.pipeline, app.logger, app.registry)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		case <-quit:
			app.logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: forced shutdown: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

type app struct {
	cfg      *config.Config
	db       *database.DB
	store    *database.Store
	pipeline *pipeline.Pipeline
	logger   *monitoring.Logger
	registry *prometheus.Registry
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := monitoring.NewLogger()
	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	store := database.NewStore(db)
	engine := analysis.NewEngine(store, cfg.Scoring, cfg.Tags, logger)
	summarizer := summarize.NewClient(cfg.Summary, logger)
	exporter := export.NewExporter(store, cfg.DataDir, logger)
	p := pipeline.New(store, engine, summarizer, exporter, cfg, logger, metrics)

	return &app{
		cfg:      cfg,
		db:       db,
		store:    store,
		pipeline: p,
		logger:   logger,
		registry: registry,
	}, nil
}

func init() {
	processCmd.Flags().StringP("repository", "r", "", "Repository in owner/name form")
	processCmd.Flags().String("start-date", "", "Window start (YYYY-MM-DD, default today)")
	processCmd.Flags().String("end-date", "", "Window end (YYYY-MM-DD, default today)")
	processCmd.Flags().String("interval", "day", "Summary interval: day, week, or month")
	processCmd.Flags().BoolP("force", "f", false, "Regenerate summaries even when one exists")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
