package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edgeworks/nfledge/internal/bankroll"
	"github.com/edgeworks/nfledge/internal/catalog"
	"github.com/edgeworks/nfledge/internal/config"
	"github.com/edgeworks/nfledge/internal/discovery"
	"github.com/edgeworks/nfledge/internal/httpapi"
	"github.com/edgeworks/nfledge/internal/modelclassifier"
	"github.com/edgeworks/nfledge/internal/persistence/postgres"
	"github.com/edgeworks/nfledge/internal/schedule"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "nfledge",
		Short:   "Edge-discovery and pregame decision core for NFL wagering",
		Version: version,
	}
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to YAML config file")

	rootCmd.AddCommand(
		newDiscoverCmd(),
		newRecommendCmd(),
		newBacktestCmd(),
		newServeCmd(),
		newCatalogCmd(),
		newScheduleCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func openDB(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is not configured")
	}
	db, err := sqlx.Connect("postgres", cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// runDiscovery executes one Discoverer sweep against Postgres-backed
// history. Shared by the `discover` subcommand and the `schedule` runner's
// "discover.weekly"/"discover.oncall" job types.
func runDiscovery(ctx context.Context, cfg *config.Config, runID string) (discovery.RunSummary, error) {
	db, err := openDB(cfg)
	if err != nil {
		return discovery.RunSummary{}, err
	}
	defer db.Close()

	cat := catalog.New(postgres.NewCatalogRepo(db), cfg.Catalog.MonitoringWindowGames, log.Logger)
	history := postgres.NewGameHistoryRepo(db)
	runLog := postgres.NewDiscoveryLogRepo(db)

	d := discovery.New(cat, history, nil, discovery.Config{
		StartSeasonsBack:      cfg.Discovery.StartSeasonsBack,
		MinSample:             cfg.Discovery.MinSample,
		PValueThreshold:       cfg.Discovery.PValueThreshold,
		HoldoutSeasons:        cfg.Discovery.HoldoutSeasons,
		InteractionMinSupport: cfg.Discovery.InteractionMinSupport,
	}, runLog, log.Logger)

	summary, err := d.Run(ctx, runID)
	if err != nil {
		return summary, fmt.Errorf("discovery run: %w", err)
	}
	return summary, nil
}

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one Edge Discoverer sweep over historical games and register qualifying candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runID := fmt.Sprintf("discover-%d", time.Now().UnixNano())
			summary, err := runDiscovery(cmd.Context(), cfg, runID)
			if err != nil {
				return err
			}
			log.Info().
				Int("considered", summary.Considered).
				Int("registered", summary.Registered).
				Int("duplicates", summary.Duplicates).
				Int("version_bumps", summary.VersionBumps).
				Int("rejected", summary.Rejected).
				Int("errored", summary.Errored).
				Msg("discovery run complete")
			return nil
		},
	}
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var jobsPath string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the cron-driven job scheduler (discover.weekly, discover.oncall)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jobsCfg, err := schedule.LoadConfig(jobsPath)
			if err != nil {
				return err
			}

			sched := schedule.New(jobsCfg, log.Logger)
			discoverJob := func(ctx context.Context, job schedule.Job) error {
				runID := fmt.Sprintf("%s-%d", job.Name, time.Now().UnixNano())
				summary, err := runDiscovery(ctx, cfg, runID)
				if err != nil {
					return err
				}
				log.Info().Str("job", job.Name).Int("registered", summary.Registered).Msg("scheduled discovery run complete")
				return nil
			}
			sched.Register("discover.weekly", discoverJob)
			sched.Register("discover.oncall", discoverJob)

			return sched.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&jobsPath, "jobs", "jobs.yaml", "Path to the scheduled-jobs YAML file")
	return cmd
}

func newRecommendCmd() *cobra.Command {
	var weightsPath string
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Evaluate the Decision Engine against active Edges (requires an orchestrator/collector wiring not shipped by this CLI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if weightsPath == "" {
				return fmt.Errorf("--weights is required (the trained classifier artifact)")
			}
			if _, err := modelclassifier.LoadWeights(weightsPath); err != nil {
				return err
			}
			return fmt.Errorf("recommend requires a live FeatureBuilder/OddsQuote collector wiring; those are external collaborators (spec §6) this CLI does not implement — use `backtest` against historical data instead")
		},
	}
	cmd.Flags().StringVar(&weightsPath, "weights", "", "Path to the classifier weights artifact (JSON)")
	return cmd
}

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Walk-forward backtest is wired through internal/backtest; run it from a driver program that supplies a FeatureBuilder/GameSource/OddsAsOf for your historical data lake",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("backtest needs a FeatureBuilder/GameSource/OddsAsOf implementation bound to your historical data lake; those are external collaborators (spec §6), not shipped by this CLI")
		},
	}
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP status/metrics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			cat := catalog.New(postgres.NewCatalogRepo(db), cfg.Catalog.MonitoringWindowGames, log.Logger)
			ledger := bankroll.New(postgres.NewBankrollRepo(db), 50)
			metrics := httpapi.NewMetricsRegistry(prometheus.DefaultRegisterer)

			srv, err := httpapi.NewServer(httpapi.DefaultServerConfig(), cat, ledger, metrics, log.Logger)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	return cmd
}

func newCatalogCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and manage the Edge Catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active Edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			cat := catalog.New(postgres.NewCatalogRepo(db), cfg.Catalog.MonitoringWindowGames, log.Logger)
			edges, err := cat.ListActive(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range edges {
				fmt.Printf("%s\t%s\t%s\twinrate=%.3f roi=%.3f n=%d\n",
					e.ID, e.RecommendedSide, e.PredicateText, e.RecentStats.WinRate, e.RecentStats.ROI, e.RecentStats.SampleSize)
			}
			return nil
		},
	}

	var retireReason string
	retireCmd := &cobra.Command{
		Use:   "retire <edge-id>",
		Short: "Manually retire an Edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			cat := catalog.New(postgres.NewCatalogRepo(db), cfg.Catalog.MonitoringWindowGames, log.Logger)
			if retireReason == "" {
				retireReason = "manual retirement via CLI"
			}
			return cat.Retire(cmd.Context(), args[0], retireReason)
		},
	}
	retireCmd.Flags().StringVar(&retireReason, "reason", "", "Reason recorded against the Edge")

	promoteCmd := &cobra.Command{
		Use:   "promote <edge-id>",
		Short: "Promote a candidate Edge to active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			cat := catalog.New(postgres.NewCatalogRepo(db), cfg.Catalog.MonitoringWindowGames, log.Logger)
			return cat.Promote(cmd.Context(), args[0])
		},
	}

	root.AddCommand(listCmd, retireCmd, promoteCmd)
	return root
}
