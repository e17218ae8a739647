package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"saleschecker/internal/config"
)

// ConfigSummaryLines returns human readable lines describing the loaded app
// config. Secrets never appear; only presence is reported.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Cache: %s (ttl %s)", cfg.Cache.Dir, cfg.Cache.TTL()),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
	}

	switch {
	case strings.TrimSpace(cfg.Marketplace.File) != "":
		lines = append(lines, fmt.Sprintf("Marketplace config: %s", cfg.Marketplace.File))
	case cfg.Marketplace.Value != nil:
		lines = append(lines, "Marketplace config: inline")
	default:
		lines = append(lines, "Marketplace config: not configured")
	}
	if cfg.Marketplace.Value != nil {
		for _, conn := range cfg.Marketplace.Value.Connections {
			lines = append(lines, fmt.Sprintf("Connection %s: kind=%s", conn.Name, conn.Kind))
		}
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
