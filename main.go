// @title           BOQ Units API
// @version         1.0
// @description     Company unit catalog, BOQ viewer with resolved units, and unit data-quality audit.

// @BasePath  /
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"boqunits/config"
	"boqunits/handlers"
	"boqunits/repository"
	"boqunits/services"
	"boqunits/storage"
	"boqunits/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func CORSConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:9000",
		"http://localhost:8080",
		"http://localhost:3000",
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Content-Type", "Content-Length", "Accept-Encoding", "Accept",
		"Origin", "X-Requested-With", "Authorization", "Cache-Control",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Disposition", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

func setupRouter(db *sql.DB, logger *zap.Logger, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(CORSConfig()))

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := utils.GetQueryContext(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			utils.ErrorResponse(c, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		units := api.Group("/companies/:company_id/units")
		units.GET("", handlers.GetUnits(db))
		units.POST("", handlers.CreateUnit(db))
		units.GET("/:id", handlers.GetUnitByID(db))
		units.PUT("/:id", handlers.UpdateUnit(db))
		units.DELETE("/:id", handlers.DeleteUnit(db))

		boqs := api.Group("/companies/:company_id/boqs")
		boqs.GET("/:id/view", handlers.GetBOQView(db))
		boqs.GET("/:id/pdf", handlers.GenerateBOQPDF(db, logger))

		api.GET("/unit-audit", handlers.GetUnitAudit(db, logger, cfg.AuditSampleSize))
		api.GET("/boq-units/export", handlers.ExportBOQUnits(db, logger))
	}
	return r
}

var normalizeRunning int32

// runScheduledNormalization runs one normalization pass unless one is already
// in flight. It reports whether the run happened.
func runScheduledNormalization(ctx context.Context, svc *services.UnitNormalizationService, opts services.BatchOptions, logger *zap.Logger) (ran bool) {
	if !atomic.CompareAndSwapInt32(&normalizeRunning, 0, 1) {
		logger.Warn("previous normalization still running, skipping this run")
		return false
	}
	defer atomic.StoreInt32(&normalizeRunning, 0)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in scheduled normalization",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	report, err := svc.Run(ctx, opts)
	if err != nil {
		logger.Error("scheduled normalization failed", zap.Error(err))
		return true
	}
	logger.Info("scheduled normalization completed",
		zap.Int("boqs_updated", report.BOQsUpdated),
		zap.Int("items_updated", report.ItemsUpdated),
	)
	return true
}

func scheduleNormalization(cfg *config.Config, store repository.Transactor, logger *zap.Logger) (*cron.Cron, error) {
	cronLogger := logger.Named("cron")
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(zap.NewStdLog(cronLogger))),
	)
	svc := services.NewUnitNormalizationService(store, services.NewUnitResolver(cfg.UnitTieBreak), cronLogger)
	opts := services.BatchOptions{DryRun: cfg.DryRun, CompanyIDs: cfg.CompanyIDs}

	_, err := c.AddFunc(cfg.NormalizeCron, func() {
		ctx, cancel := utils.GetJobContext(context.Background(), cfg.JobTimeout)
		defer cancel()
		runScheduledNormalization(ctx, svc, opts, cronLogger)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid NORMALIZE_SCHEDULE %q: %w", cfg.NormalizeCron, err)
	}
	return c, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat, "boq-units-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	db, err := storage.InitDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return 1
	}
	defer db.Close()

	gormDB, err := storage.InitGormDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database with GORM", zap.Error(err))
		return 1
	}
	defer storage.CloseGormDB(gormDB)

	if cfg.NormalizeCron != "" {
		c, err := scheduleNormalization(cfg, repository.NewGormStore(gormDB), logger)
		if err != nil {
			logger.Error("failed to schedule normalization", zap.Error(err))
			return 1
		}
		c.Start()
		defer func() {
			<-c.Stop().Done()
		}()
		logger.Info("nightly normalization scheduled", zap.String("schedule", cfg.NormalizeCron))
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := setupRouter(db, logger, cfg)

	portInt, err := strconv.Atoi(cfg.Port)
	if err != nil || portInt < 0 || portInt > 65535 {
		logger.Error("invalid PORT", zap.String("port", cfg.Port))
		return 1
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
	case err := <-serveErr:
		logger.Error("failed to start server", zap.Error(err))
		return 1
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return 1
	}
	logger.Info("server exiting")
	return 0
}
