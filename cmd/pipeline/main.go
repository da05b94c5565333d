// cmd/pipeline/main.go
//
// CLI entrypoint for running the pipeline stages directly: one-shot runs for
// backfills and operations, plus a long-running schedule mode.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/freshrisk/internal/config"
	"github.com/andresuchdata/freshrisk/internal/pipeline/actions"
	"github.com/andresuchdata/freshrisk/internal/pipeline/changedetect"
	"github.com/andresuchdata/freshrisk/internal/pipeline/features"
	"github.com/andresuchdata/freshrisk/internal/pipeline/risk"
	"github.com/andresuchdata/freshrisk/internal/repository/postgres"
	"github.com/andresuchdata/freshrisk/internal/scheduler"
	"github.com/andresuchdata/freshrisk/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newDateFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "date",
		Usage: "Snapshot date (YYYY-MM-DD), defaults to today",
	}
}

func newIncrementalFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "incremental",
		Usage: "Process only keys flagged as changed since the last run",
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "pipeline",
		Usage: "Run the expiry-risk pipeline stages",
		Commands: []*cli.Command{
			runCommand("features", "Build rolling velocity features", scheduler.JobNameFeatures),
			runCommand("risk", "Score inventory batches for expiry risk", scheduler.JobNameRisk),
			runCommand("actions", "Generate and persist mitigation recommendations", scheduler.JobNameActions),
			runCommand("nightly", "Run features, risk and actions in sequence", scheduler.JobNameNightly),
			{
				Name:  "schedule",
				Usage: "Run the nightly pipeline on a cron schedule until interrupted",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "cron",
						Usage: "Cron spec for the nightly run",
					},
				},
				Action: runSchedule,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand(name, usage, jobName string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			newDBURLFlag(),
			newDateFlag(),
			newIncrementalFlag(),
		},
		Action: func(c *cli.Context) error {
			return runJob(c, jobName)
		},
	}
}

func runJob(c *cli.Context, jobName string) error {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	snapshotDate, err := parseDate(c.String("date"))
	if err != nil {
		return err
	}

	sched, db, err := buildScheduler(c.String("db-url"), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	params := scheduler.JobParams{
		SnapshotDate: snapshotDate,
		Incremental:  c.Bool("incremental"),
	}

	result, err := sched.RunJob(c.Context, jobName, params)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if !result.Success {
		return fmt.Errorf("job %s failed: %s", jobName, result.Message)
	}
	return nil
}

func runSchedule(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	sched, db, err := buildScheduler(c.String("db-url"), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	spec := c.String("cron")
	if spec == "" {
		spec = cfg.Scheduler.NightlyCronSpec
	}

	if err := sched.StartCron(spec); err != nil {
		return err
	}
	defer sched.StopCron()

	logger.Log.Info().Str("cron", spec).Msg("schedule mode running, press ctrl-c to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info().Msg("schedule mode stopping")
	return nil
}

func buildScheduler(dbURL string, cfg *config.Config) (*scheduler.Scheduler, *postgres.DB, error) {
	db, err := postgres.NewDBFromURL("pgx", dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	salesRepo := postgres.NewSalesRepository(db.DB)
	inventoryRepo := postgres.NewInventoryRepository(db.DB)
	featureRepo := postgres.NewFeatureRepository(db)
	riskRepo := postgres.NewRiskRepository(db)
	actionRepo := postgres.NewActionRepository(db)
	trackingRepo := postgres.NewChangeTrackingRepository(db)
	jobRepo := postgres.NewJobRepository(db)
	costRepo := postgres.NewCostRepository(db.DB)
	masterRepo := postgres.NewMasterRepository(db.DB)

	builder := features.NewBuilder(salesRepo, featureRepo)
	runner := risk.NewRunner(inventoryRepo, featureRepo, riskRepo, costRepo, cfg.Risk.DefaultUnitCost)
	engine := actions.NewEngine(riskRepo, featureRepo, actionRepo, masterRepo, costRepo, cfg.Actions, cfg.Risk.DefaultUnitCost)
	detector := changedetect.NewDetector(salesRepo, inventoryRepo, featureRepo, riskRepo, trackingRepo,
		cfg.Risk.ChangedScoreDelta, cfg.Risk.AlwaysReprocessScore)

	sched := scheduler.NewScheduler(jobRepo, scheduler.NewRetryPolicy(cfg.Scheduler))
	featureJob := scheduler.NewFeatureBuildJob(builder, detector)
	riskJob := scheduler.NewRiskScoringJob(runner, detector)
	actionJob := scheduler.NewActionGenerationJob(engine, detector)
	sched.Register(featureJob)
	sched.Register(riskJob)
	sched.Register(actionJob)
	sched.Register(scheduler.NewNightlyJob(featureJob, riskJob, actionJob))

	return sched, db, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", raw)
	}
	return parsed, nil
}
