package app

import (
	"fmt"
	"os"

	"github.com/adhocore/gronx"

	"marketsync/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(cfg *config.Config, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, MARKETSYNC_DB_PATH env, or storage.db_path in config")
	}

	// TLS cert/key presence check if one is set
	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if cfg.Chat.EditWindow < 0 {
		return fmt.Errorf("chat.edit_window must not be negative")
	}

	ret := cfg.Chat.Retention
	if ret.Enabled {
		if ret.Period <= 0 {
			return fmt.Errorf("chat.retention.period must be positive when retention is enabled")
		}
		if ret.Cron != "" && !gronx.IsValid(ret.Cron) {
			return fmt.Errorf("invalid chat.retention.cron expression: %s", ret.Cron)
		}
	}

	for _, e := range cfg.Directory {
		if e.ID == "" {
			return fmt.Errorf("directory entry with empty id")
		}
	}

	return nil
}
