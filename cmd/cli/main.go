package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/gastos/internal/config"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/export"
	"github.com/dvloznov/gastos/internal/gcsuploader"
	"github.com/dvloznov/gastos/internal/identity"
	"github.com/dvloznov/gastos/internal/infra"
	infraBQ "github.com/dvloznov/gastos/internal/infra/bigquery"
	"github.com/dvloznov/gastos/internal/logger"
	"github.com/dvloznov/gastos/internal/notionsync"
	"github.com/dvloznov/gastos/internal/telegram"
	"github.com/dvloznov/gastos/internal/validation"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewFromOptions(logger.Options{
		Level:  cfg.Logger.Level,
		Format: logger.Format(cfg.Logger.Format),
	})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "set-webhook":
		runSetWebhook(cfg, log)
	case "issue-code":
		runIssueCode(cfg, log)
	case "dev-token":
		runDevToken(cfg, log)
	case "export":
		runExport(cfg, log)
	case "sync-notion":
		runSyncNotion(cfg, log)
	case "init-archive":
		runInitArchive(cfg, log)
	case "backfill-archive":
		runBackfillArchive(cfg, log)
	case "receipt":
		runReceipt(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Gastos CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  set-webhook       Point the Telegram bot at the API webhook")
	fmt.Println("  issue-code        Issue a link code for a Telegram chat")
	fmt.Println("  dev-token         Sign a development ID token for an account")
	fmt.Println("  export            Export an account's expenses to an .xlsx workbook")
	fmt.Println("  sync-notion       Mirror an account's expenses into Notion")
	fmt.Println("  init-archive      Create the BigQuery expense archive table")
	fmt.Println("  backfill-archive  Copy an account's expenses into the BigQuery archive")
	fmt.Println("  receipt           Download an archived receipt image")
	fmt.Println("  help              Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runSetWebhook(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("set-webhook", flag.ExitOnError)
	apiURL := fs.String("api-url", "", "Public base URL of the API server")
	fs.Parse(os.Args[2:])

	if *apiURL == "" {
		log.Fatal().Msg("Error: --api-url is required")
	}
	if cfg.Telegram.BotToken == "" {
		log.Fatal().Msg("Error: TELEGRAM_BOT_TOKEN is not set")
	}

	bot, err := telegram.NewBot(cfg.Telegram.BotToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}

	url := *apiURL + "/webhooks/telegram"
	if err := bot.SetWebhook(url, cfg.Telegram.WebhookSecret); err != nil {
		log.Fatal().Err(err).Msg("Failed to set webhook")
	}

	fmt.Printf("Webhook set to %s\n", url)
}

func runIssueCode(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("issue-code", flag.ExitOnError)
	chatID := fs.String("chat-id", "", "Telegram chat ID to link")
	fs.Parse(os.Args[2:])

	if *chatID == "" {
		log.Fatal().Msg("Error: --chat-id is required")
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	store := openStore(ctx, cfg, log)
	defer store.Close()

	tok, err := identity.NewLinker(store, log).IssueCode(ctx, *chatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue link code")
	}

	fmt.Printf("Code: %s (expires %s)\n", tok.Token, tok.ExpiresAt.Format(time.RFC3339))
}

func runDevToken(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("dev-token", flag.ExitOnError)
	accountID := fs.String("account", "", "Web account ID to put in the token subject")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	fs.Parse(os.Args[2:])

	if *accountID == "" {
		log.Fatal().Msg("Error: --account is required")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("Error: AUTH_JWT_SECRET is not set")
	}

	token, err := identity.SignDevToken(cfg.Auth.JWTSecret, *accountID, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	fmt.Println(token)
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	ownerID := fs.String("owner", "", "Account ID whose expenses are exported")
	startStr := fs.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endStr := fs.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	out := fs.String("out", "expenses.xlsx", "Output workbook path")
	fs.Parse(os.Args[2:])

	if *ownerID == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	start, end := parseRange(log, *startStr, *endStr)

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	store := openStore(ctx, cfg, log)
	defer store.Close()

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to create output file")
	}
	defer f.Close()

	n, err := export.Expenses(ctx, store, *ownerID, start, end, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d expenses to %s\n", n, *out)
}

func runSyncNotion(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	ownerID := fs.String("owner", "", "Account ID whose expenses are synced")
	startStr := fs.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endStr := fs.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(os.Args[2:])

	if *ownerID == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN and NOTION_DATABASE_ID are required")
	}
	start, end := parseRange(log, *startStr, *endStr)

	ctx, cancel := commandContext(log, 10*time.Minute)
	defer cancel()

	store := openStore(ctx, cfg, log)
	defer store.Close()

	notionClient := notionsync.NewNotionClient(cfg.Notion.Token)

	res, err := notionsync.SyncExpenses(ctx, store, notionClient, cfg.Notion.DatabaseID, *ownerID, start, end, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		res.Created, res.Updated, res.Archived, res.Failed)
}

func runInitArchive(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("init-archive", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	archive := openArchive(ctx, cfg, log)
	defer archive.Close()

	if err := archive.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create archive table")
	}

	fmt.Printf("Archive table ready in dataset %s.\n", cfg.Archive.Dataset)
}

func runBackfillArchive(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("backfill-archive", flag.ExitOnError)
	ownerID := fs.String("owner", "", "Account ID whose expenses are archived")
	startStr := fs.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endStr := fs.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	fs.Parse(os.Args[2:])

	if *ownerID == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	start, end := parseRange(log, *startStr, *endStr)

	ctx, cancel := commandContext(log, 10*time.Minute)
	defer cancel()

	store := openStore(ctx, cfg, log)
	defer store.Close()
	archive := openArchive(ctx, cfg, log)
	defer archive.Close()

	expenses, err := store.List(ctx, domain.NewFilter(*ownerID, &start, &end, domain.CategoryAll))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list expenses")
	}

	failed := 0
	for _, e := range expenses {
		if err := archive.InsertExpense(ctx, e); err != nil {
			log.Warn().Err(err).Str("expense_id", e.ID).Msg("Failed to archive expense")
			failed++
		}
	}

	fmt.Printf("Archived %d of %d expenses.\n", len(expenses)-failed, len(expenses))
}

func runReceipt(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("receipt", flag.ExitOnError)
	uri := fs.String("uri", "", "gs:// URI of the archived receipt")
	out := fs.String("out", "", "Output path (defaults to the object's file name)")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Error: --uri is required")
	}
	bucket, _, err := gcsuploader.ParseURI(*uri)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid receipt URI")
	}
	if *out == "" {
		*out = gcsuploader.ExtractFilename(*uri)
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	receipts, err := gcsuploader.NewReceiptStore(ctx, bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create receipt store")
	}
	defer receipts.Close()

	data, err := receipts.DownloadReceipt(ctx, *uri)
	if err != nil {
		log.Fatal().Err(err).Msg("Download failed")
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to write receipt")
	}

	fmt.Printf("Saved %s (%d bytes)\n", *out, len(data))
}

func commandContext(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) infra.Store {
	store, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store")
	}
	return store
}

func openArchive(ctx context.Context, cfg *config.Config, log zerolog.Logger) *infraBQ.ExpenseArchive {
	if cfg.Archive.Dataset == "" {
		log.Fatal().Msg("Error: EXPENSES_DATASET is not set")
	}
	archive, err := infraBQ.NewExpenseArchive(ctx, cfg.Archive.ProjectID, cfg.Archive.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create expense archive")
	}
	return archive
}

func parseRange(log zerolog.Logger, startStr, endStr string) (time.Time, time.Time) {
	if startStr == "" || endStr == "" {
		log.Fatal().Msg("Error: --start-date and --end-date are required")
	}
	start, err := validation.ParseDate(startStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", startStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}
	end, err := validation.ParseDate(endStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", endStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}
	if end.Before(start) {
		log.Fatal().
			Time("start_date", start).
			Time("end_date", end).
			Msg("Error: end-date must not be before start-date")
	}
	return start, end
}
