// Command inventory is the operational entry point for the emissions engine:
// schema migration, reference data seeding, factor imports, calculations,
// rollups, QA/QC runs and report generation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ghg-ledger/inventory-engine/internal/aggregation"
	"ghg-ledger/inventory-engine/internal/config"
	"ghg-ledger/inventory-engine/internal/evidence"
	"ghg-ledger/inventory-engine/internal/factors"
	"ghg-ledger/inventory-engine/internal/provenance"
	"ghg-ledger/inventory-engine/internal/qaqc"
	"ghg-ledger/inventory-engine/internal/report"
	"ghg-ledger/inventory-engine/internal/snapshot"
	"ghg-ledger/inventory-engine/internal/store"
	"ghg-ledger/inventory-engine/pkg/storage"
)

const usage = `Usage: inventory <command> [flags]

Commands:
  migrate          create or update the database schema
  seed             seed the source taxonomy and GWP tables
  import-factors   import an emission factor file (authority auto-detected)
  factor-template  write the factor submission template workbook
  calculate        run calculations for one activity or an organization
  reproduce        re-run a stored calculation from its frozen snapshots
  aggregate        roll an organization's inventory up and print the summary
  qaqc             run data-quality checks for an organization
  report           compose the full report context as JSON
  attach-evidence  upload an evidence file for an activity
  list-evidence    list the evidence attached to an activity

Configuration comes from GHG_CONFIG (default config.json), overridden by
environment variables. A .env file is honored when present.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()

	configPath := os.Getenv("GHG_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli{cfg: cfg, logger: logger}

	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "migrate":
		err = app.migrate(ctx)
	case "seed":
		err = app.seed(ctx)
	case "import-factors":
		err = app.importFactors(ctx, args)
	case "factor-template":
		err = app.factorTemplate(args)
	case "calculate":
		err = app.calculate(ctx, args)
	case "reproduce":
		err = app.reproduce(ctx, args)
	case "aggregate":
		err = app.aggregate(ctx, args)
	case "qaqc":
		err = app.runQAQC(ctx, args)
	case "report":
		err = app.composeReport(ctx, args)
	case "attach-evidence":
		err = app.attachEvidence(ctx, args)
	case "list-evidence":
		err = app.listEvidence(ctx, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", command, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

// openRepository connects to Postgres and verifies the connection before any
// command touches it.
func (c *cli) openRepository() (store.Repository, error) {
	dsn := c.cfg.Database.GetDatabaseURL()
	db, err := store.Open(dsn)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c.logger.Info("connected to database",
		zap.String("host", c.cfg.Database.Host),
		zap.String("database", c.cfg.Database.DBName))
	return store.NewRepository(db), nil
}

func (c *cli) newEngine(repo store.Repository) *snapshot.Engine {
	var signer snapshot.ReceiptSigner
	if c.cfg.Provenance.ReceiptSecret != "" {
		signer = provenance.NewSigner(c.cfg.Provenance.ReceiptSecret, c.cfg.Provenance.Issuer)
	}
	return snapshot.NewEngine(repo, signer, c.logger)
}

// objectStore selects S3 when a bucket is configured, the in-memory store
// otherwise. The in-memory store does not survive the process; it exists so
// local runs work without credentials.
func (c *cli) objectStore(ctx context.Context) (storage.S3Client, string, error) {
	if c.cfg.Storage.Bucket == "" {
		c.logger.Warn("no evidence bucket configured, using in-memory object store")
		return storage.NewMemoryClient(), "local", nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3Config{
		Region:    c.cfg.Storage.Region,
		AccessKey: c.cfg.Storage.AccessKey,
		SecretKey: c.cfg.Storage.SecretKey,
	})
	if err != nil {
		return nil, "", err
	}
	return client, c.cfg.Storage.Bucket, nil
}

func (c *cli) migrate(ctx context.Context) error {
	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	c.logger.Info("schema migrated")
	return nil
}

func (c *cli) seed(ctx context.Context) error {
	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	if err := repo.SeedReferenceData(ctx); err != nil {
		return err
	}
	c.logger.Info("reference data seeded")
	return nil
}

func (c *cli) importFactors(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-factors", flag.ExitOnError)
	file := fs.String("file", "", "factor file to import (.xlsx or .csv)")
	authority := fs.String("authority", "", "source authority (DEFRA, EPA, IPCC, API, IEA); auto-detected from the file name when empty")
	retire := fs.Bool("retire-previous", false, "retire open-ended factors for the same authority and activity codes")
	dryRun := fs.Bool("dry-run", false, "validate and report without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	auth := strings.ToUpper(*authority)
	if auth == "" {
		detected, ok := factors.DetectAuthority(*file)
		if !ok {
			return fmt.Errorf("could not detect authority from %q, pass -authority", filepath.Base(*file))
		}
		auth = detected
		c.logger.Info("detected factor authority", zap.String("authority", auth))
	}

	loader, err := factors.NewLoader(auth)
	if err != nil {
		return err
	}
	batch, err := factors.LoadAndNormalize(loader, *file)
	if err != nil {
		return err
	}

	result := factors.Validate(batch)
	for _, warning := range result.Warnings {
		c.logger.Warn("factor validation", zap.String("warning", warning))
	}
	if !result.Valid {
		for _, e := range result.Errors {
			c.logger.Error("factor validation", zap.String("error", e))
		}
		return fmt.Errorf("factor file failed validation with %d errors", len(result.Errors))
	}

	if *dryRun {
		c.logger.Info("dry run, nothing written",
			zap.String("authority", auth),
			zap.Int("factors", len(batch)))
		return nil
	}

	repo, err := c.openRepository()
	if err != nil {
		return err
	}

	if *retire {
		codes := make([]string, 0, len(batch))
		seen := make(map[string]bool)
		for _, f := range batch {
			if !seen[f.ActivityCode] {
				seen[f.ActivityCode] = true
				codes = append(codes, f.ActivityCode)
			}
		}
		retired, err := repo.RetireFactors(ctx, auth, codes, time.Now().UTC())
		if err != nil {
			return err
		}
		c.logger.Info("retired superseded factors", zap.Int64("count", retired))
	}

	if err := repo.CreateFactors(ctx, batch); err != nil {
		return err
	}
	c.logger.Info("factors imported",
		zap.String("authority", auth),
		zap.Int("count", len(batch)))
	return nil
}

func (c *cli) factorTemplate(args []string) error {
	fs := flag.NewFlagSet("factor-template", flag.ExitOnError)
	out := fs.String("out", "emission_factor_template.xlsx", "output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := factors.WriteTemplate(*out); err != nil {
		return err
	}
	c.logger.Info("template written", zap.String("path", *out))
	return nil
}

func (c *cli) calculate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calculate", flag.ExitOnError)
	activityFlag := fs.String("activity", "", "calculate a single activity by id")
	orgFlag := fs.String("org", "", "calculate activities of this organization")
	force := fs.Bool("force", false, "recalculate activities that already have a calculation")
	performedBy := fs.String("by", "cli", "actor recorded in the audit trail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	engine := c.newEngine(repo)

	if *activityFlag != "" {
		activityID, err := uuid.Parse(*activityFlag)
		if err != nil {
			return fmt.Errorf("invalid activity id: %w", err)
		}
		calc, err := engine.Calculate(ctx, activityID, *performedBy)
		if err != nil {
			return err
		}
		return printJSON(calc)
	}

	if *orgFlag == "" {
		return errors.New("pass -activity or -org")
	}
	organizationID, err := uuid.Parse(*orgFlag)
	if err != nil {
		return fmt.Errorf("invalid organization id: %w", err)
	}

	activities, err := repo.ListActivities(ctx, store.ActivityFilter{OrganizationID: &organizationID})
	if err != nil {
		return err
	}

	var calculated, skipped, failed int
	for _, activity := range activities {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !*force {
			if _, err := repo.LatestCalculation(ctx, activity.ID); err == nil {
				skipped++
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if _, err := engine.Calculate(ctx, activity.ID, *performedBy); err != nil {
			failed++
			c.logger.Error("calculation failed",
				zap.String("activity_id", activity.ID.String()),
				zap.String("method", activity.MethodKey),
				zap.Error(err))
			continue
		}
		calculated++
	}

	c.logger.Info("calculation run finished",
		zap.Int("calculated", calculated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d calculations failed", failed, calculated+failed)
	}
	return nil
}

func (c *cli) reproduce(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reproduce", flag.ExitOnError)
	calcFlag := fs.String("calculation", "", "calculation id to reproduce")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *calcFlag == "" {
		return errors.New("-calculation is required")
	}
	calculationID, err := uuid.Parse(*calcFlag)
	if err != nil {
		return fmt.Errorf("invalid calculation id: %w", err)
	}

	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	result, err := c.newEngine(repo).Reproduce(ctx, calculationID)
	if err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Match || !result.HashesValid {
		return errors.New("stored calculation could not be reproduced")
	}
	return nil
}

func (c *cli) aggregate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	orgFlag := fs.String("org", "", "organization id")
	fromFlag := fs.String("from", "", "period start (2006-01-02), open when empty")
	toFlag := fs.String("to", "", "period end (2006-01-02), open when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	organizationID, err := uuid.Parse(*orgFlag)
	if err != nil {
		return fmt.Errorf("invalid organization id: %w", err)
	}
	from, err := parseDateFlag(*fromFlag)
	if err != nil {
		return err
	}
	to, err := parseDateFlag(*toFlag)
	if err != nil {
		return err
	}

	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	summary, err := aggregation.NewAggregator(repo, c.logger).Summarize(ctx, organizationID, from, to)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func (c *cli) runQAQC(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("qaqc", flag.ExitOnError)
	orgFlag := fs.String("org", "", "organization id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	organizationID, err := uuid.Parse(*orgFlag)
	if err != nil {
		return fmt.Errorf("invalid organization id: %w", err)
	}

	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	qaReport, err := qaqc.NewRunner(repo, c.logger).Run(ctx, organizationID)
	if err != nil {
		return err
	}
	if err := printJSON(qaReport); err != nil {
		return err
	}
	if !qaReport.Passed {
		return fmt.Errorf("QA/QC failed with %d errors", qaReport.Summary.Errors)
	}
	return nil
}

func (c *cli) composeReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	orgFlag := fs.String("org", "", "organization id")
	year := fs.Int("year", 0, "reporting year, defaults to the current year")
	out := fs.String("out", "", "output path, stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	organizationID, err := uuid.Parse(*orgFlag)
	if err != nil {
		return fmt.Errorf("invalid organization id: %w", err)
	}

	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	composer := report.NewComposer(repo, c.logger)
	doc, err := composer.Compose(ctx, organizationID, *year)
	if err != nil {
		return err
	}
	appendix, err := composer.FactorAppendix(ctx, organizationID)
	if err != nil {
		return err
	}
	doc["emission_factors"] = appendix

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if *out == "" {
		fmt.Println(string(raw))
		return nil
	}
	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		return err
	}
	c.logger.Info("report written", zap.String("path", *out))
	return nil
}

func (c *cli) attachEvidence(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("attach-evidence", flag.ExitOnError)
	activityFlag := fs.String("activity", "", "activity id")
	file := fs.String("file", "", "evidence file to upload")
	tag := fs.String("tag", "", "evidence tag, e.g. meter_reading or invoice")
	uploadedBy := fs.String("by", "cli", "actor recorded on the attachment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	activityID, err := uuid.Parse(*activityFlag)
	if err != nil {
		return fmt.Errorf("invalid activity id: %w", err)
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	objects, bucket, err := c.objectStore(ctx)
	if err != nil {
		return err
	}
	attachment, err := evidence.NewService(repo, objects, bucket, c.logger).Attach(ctx, evidence.AttachRequest{
		ActivityID: activityID,
		FileName:   filepath.Base(*file),
		Content:    f,
		Tag:        *tag,
		UploadedBy: *uploadedBy,
	})
	if err != nil {
		return err
	}
	return printJSON(attachment)
}

func (c *cli) listEvidence(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-evidence", flag.ExitOnError)
	activityFlag := fs.String("activity", "", "activity id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	activityID, err := uuid.Parse(*activityFlag)
	if err != nil {
		return fmt.Errorf("invalid activity id: %w", err)
	}

	repo, err := c.openRepository()
	if err != nil {
		return err
	}
	objects, bucket, err := c.objectStore(ctx)
	if err != nil {
		return err
	}
	attachments, err := evidence.NewService(repo, objects, bucket, c.logger).List(ctx, activityID)
	if err != nil {
		return err
	}
	return printJSON(attachments)
}

func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want 2006-01-02", value)
	}
	return t, nil
}

func printJSON(v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
