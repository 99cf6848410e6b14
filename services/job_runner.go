package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"boqunits/config"
	"boqunits/storage"
	"boqunits/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobEnv is what a command-line job receives from RunJob.
type JobEnv struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sql.DB
	Gorm   *gorm.DB
}

// JobOptions selects which connections RunJob opens.
type JobOptions struct {
	// Gorm opens the transactional connection used by mutating jobs.
	Gorm bool
}

// RunJob loads configuration, connects, and runs fn under the job timeout.
// It returns the process exit code: 0 on success, 1 on any failure.
func RunJob(name string, opts JobOptions, fn func(ctx context.Context, env *JobEnv) error) int {
	bootLogger, err := utils.NewLogger("info", "json", name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load config", zap.Error(err))
		_ = bootLogger.Sync()
		return 1
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat, name)
	if err != nil {
		bootLogger.Error("failed to init logger", zap.Error(err))
		return 1
	}
	defer func() { _ = logger.Sync() }()

	env := &JobEnv{Config: cfg, Logger: logger}

	env.DB, err = storage.InitDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return 1
	}
	defer env.DB.Close()

	if opts.Gorm {
		env.Gorm, err = storage.InitGormDB(cfg)
		if err != nil {
			logger.Error("failed to connect to database with GORM", zap.Error(err))
			return 1
		}
		defer func() {
			if err := storage.CloseGormDB(env.Gorm); err != nil {
				logger.Warn("failed to close GORM connection", zap.Error(err))
			}
		}()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := utils.GetJobContext(sigCtx, cfg.JobTimeout)
	defer cancel()

	if err := fn(ctx, env); err != nil {
		logger.Error("job failed", zap.Error(err))
		return 1
	}
	return 0
}

// WriteJSON prints v indented, for job summaries on stdout.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
