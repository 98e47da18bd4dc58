package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/upsguard/upsguard/internal/app"
	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/control"
	"github.com/upsguard/upsguard/pkg/logger"
	"github.com/upsguard/upsguard/pkg/sysutil"
	"go.uber.org/zap"
)

const (
	AppName    = "UPS Guardian"
	AppVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ./config.yaml if present)")
	flag.Parse()

	fmt.Printf("%s v%s\n", AppName, AppVersion)

	path := *configPath
	if path == "" {
		path = os.Getenv("UPSGUARD_CONFIG")
	}
	if path == "" && sysutil.FileExists("./config.yaml") {
		path = "./config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.IsDevelopment()); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.App.Environment),
		zap.String("monitoringMode", string(cfg.Monitor.MonitoringMode)),
		zap.String("testMode", string(cfg.Shutdown.TestMode)))

	if cfg.Shutdown.TestMode == config.TestModeProduction && !sysutil.IsRoot() {
		logger.Warn("running without root privileges; the configured host shutdown command may fail")
	}

	appCtx, err := app.New(cfg)
	if err != nil {
		logger.Fatal("failed to wire application context", zap.Error(err))
	}
	defer func() {
		if err := appCtx.Close(); err != nil {
			logger.Warn("error closing database", zap.Error(err))
		}
	}()
	logger.Info("application context wired", zap.String("database", cfg.Database.Driver))

	controlServer := control.NewServer(cfg.App.ControlSocket, appCtx)
	go func() {
		if err := controlServer.Serve(); err != nil {
			logger.Warn("control socket stopped", zap.Error(err))
		}
	}()
	defer controlServer.Close()

	// retentionCron owns the single recurring job this daemon schedules
	// itself: the nightly event/metric retention cleanup.
	retentionCron := cron.New()
	if _, err := retentionCron.AddFunc("0 3 * * *", appCtx.Cleanup); err != nil {
		logger.Warn("failed to schedule retention cleanup job", zap.Error(err))
	} else {
		retentionCron.Start()
		defer retentionCron.Stop()
		logger.Info("retention cleanup scheduled", zap.Int("retentionDays", cfg.App.RetentionDays))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go appCtx.Run(ctx)

	logger.Info("ups-guardiand started",
		zap.String("nutHost", cfg.NUT.Host),
		zap.Int("nutPort", cfg.NUT.Port),
		zap.String("controlSocket", cfg.App.ControlSocket))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down ups-guardiand")
	cancel()
}
