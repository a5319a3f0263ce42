package main

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

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

// The server exposes the external trigger as an HTTP endpoint. Runs stay
// strictly sequential: a second trigger while one is in flight gets 409.
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

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	handler := cors.Default().Handler(newRouter(bot))
	logger.Log.Infof("trigger server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}

func newRouter(bot *digest.Bot) *gin.Engine {
	r := gin.Default()

	var running sync.Mutex

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/api/v1/run", func(c *gin.Context) {
		if !running.TryLock() {
			c.JSON(http.StatusConflict, gin.H{"status": "run already in progress"})
			return
		}

		go func() {
			defer running.Unlock()
			if err := bot.Run(context.Background()); err != nil {
				logger.Log.Errorf("digest run failed: %v", err)
			}
		}()

		c.JSON(http.StatusAccepted, gin.H{"status": "run started"})
	})

	return r
}
