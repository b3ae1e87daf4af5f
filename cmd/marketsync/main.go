package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"marketsync/internal/app"
	"marketsync/internal/retention"
	"marketsync/pkg/config"
	"marketsync/pkg/logger"
	"marketsync/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	// config path: file flag wins over env
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Logging.AuditDir != "" {
		if err := logger.AttachAuditFileSink(cfg.Logging.AuditDir); err != nil {
			log.Fatalf("failed to attach audit sink: %v", err)
		}
	}

	// flags explicitly set win over env/config for addr and db path
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Storage.DBPath
	if setFlags["db"] || dbPath == "" {
		dbPath = dbVal
	}

	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}

	a, err := app.New(cfg, addr, dbPath, strings.Join(srcs, ", "), version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, dbPath, 0)
	}
	retention.SetConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String())
		cancel()
	}()

	if err := a.Run(ctx); err != nil {
		_ = a.Close()
		shutdown.Abort("server failed", err, dbPath, 0)
	}
	if err := a.Close(); err != nil {
		logger.Error("store_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
}
