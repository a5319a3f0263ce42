package main

import (
	"context"
	"os"

	"policy-digest/config"
	"policy-digest/digest"
	"policy-digest/feeder"
	"policy-digest/fetcher"
	"policy-digest/internal/logger"
	"policy-digest/quota"
	"policy-digest/sheets"
	"policy-digest/summarizer"
	"policy-digest/wordpress"
)

// The bot runs one digest pass and exits. Scheduling is external
// (cron, systemd timer, or the trigger server).
func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	bot := digest.New(
		cfg,
		feeder.New(),
		fetcher.New(cfg.Fetch),
		summarizer.New(cfg.GeminiModel, quota.NewLimiterFromConfig(cfg.SummaryQuota)),
		sheets.New(
			os.Getenv("SHEETS_BASE_URL"),
			cfg.Sheets.SpreadsheetID,
			cfg.Sheets.Range,
			os.Getenv("SHEETS_ACCESS_TOKEN"),
		),
		wordpress.New(
			os.Getenv("WP_URL"),
			os.Getenv("WP_USER"),
			os.Getenv("WP_PASS"),
			cfg.WordPress.DefaultCategoryID,
		),
	)

	if err := bot.Run(context.Background()); err != nil {
		logger.Log.Errorf("digest run failed: %v", err)
		os.Exit(1)
	}
}
