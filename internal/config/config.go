// Package config loads the Trinity host configuration from a TOML file
// overlaid with environment variables, and produces the models.Config
// value the rest of the host is built from.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/trinitybot/trinity/pkg/models"
)

// fileConfig mirrors the on-disk TOML layout.
type fileConfig struct {
	Homeserver     string `toml:"homeserver"`
	BotUserID      string `toml:"bot_user_id"`
	BotPassword    string `toml:"bot_password"`
	TransportStore string `toml:"transport_store"`
	AdminKVPath    string `toml:"admin_kv_path"`
	AdminUserID    string `toml:"admin_user_id"`
	ModuleDirs     []string `toml:"module_dirs"`

	// Modules maps module name -> arbitrary string key/value init config.
	Modules map[string]map[string]string `toml:"modules"`

	Telemetry TelemetryConfig `toml:"telemetry"`
	Admin     AdminAPIConfig  `toml:"admin_api"`
}

// TelemetryConfig controls OpenTelemetry tracing bootstrap.
type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// AdminAPIConfig controls the read-only introspection HTTP surface.
type AdminAPIConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Result bundles the host's domain configuration with the ambient
// concerns (telemetry, admin HTTP) that sit alongside it but aren't
// part of models.Config.
type Result struct {
	Host      models.Config
	Telemetry TelemetryConfig
	AdminAPI  AdminAPIConfig
}

// Load reads the TOML file at path (or the file named by TRINITY_CONFIG,
// defaulting to "./trinity.toml"), then overlays environment variables.
// A missing config file is not an error as long as the required
// settings come from environment variables. module_dirs and the
// per-module "modules" table have no environment override, so a
// deployment without a config file fails on the missing module_dirs.
func Load(path string) (*Result, error) {
	if path == "" {
		path = envStr("TRINITY_CONFIG", "./trinity.toml")
	}

	// The admin API is on unless the file or the environment turns it off.
	fc := fileConfig{Admin: AdminAPIConfig{Enabled: true}}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(&fc)

	if fc.Homeserver == "" {
		return nil, fmt.Errorf("missing required setting: homeserver")
	}
	if fc.BotUserID == "" {
		return nil, fmt.Errorf("missing required setting: bot_user_id")
	}
	if fc.AdminUserID == "" {
		return nil, fmt.Errorf("missing required setting: admin_user_id")
	}
	if fc.AdminKVPath == "" {
		return nil, fmt.Errorf("missing required setting: admin_kv_path")
	}
	if len(fc.ModuleDirs) == 0 {
		return nil, fmt.Errorf("missing required setting: module_dirs")
	}

	return &Result{
		Host: models.Config{
			Homeserver:       fc.Homeserver,
			BotUserID:        fc.BotUserID,
			BotPassword:      fc.BotPassword,
			TransportStore:   fc.TransportStore,
			AdminKVPath:      fc.AdminKVPath,
			AdminUserID:      fc.AdminUserID,
			ModuleDirs:       fc.ModuleDirs,
			ModuleInitConfig: fc.Modules,
		},
		Telemetry: fc.Telemetry,
		AdminAPI:  fc.Admin,
	}, nil
}

func applyEnvOverrides(fc *fileConfig) {
	fc.Homeserver = envStr("TRINITY_HOMESERVER", fc.Homeserver)
	fc.BotUserID = envStr("TRINITY_BOT_USER_ID", fc.BotUserID)
	fc.BotPassword = envStr("TRINITY_BOT_PASSWORD", fc.BotPassword)
	fc.TransportStore = envStr("TRINITY_TRANSPORT_STORE", fc.TransportStore)
	fc.AdminKVPath = envStr("TRINITY_ADMIN_KV_PATH", fc.AdminKVPath)
	fc.AdminUserID = envStr("TRINITY_ADMIN_USER_ID", fc.AdminUserID)

	fc.Telemetry.Enabled = envBool("TRINITY_OTEL_ENABLED", fc.Telemetry.Enabled)
	fc.Telemetry.OTLPEndpoint = envStr("TRINITY_OTEL_ENDPOINT", fc.Telemetry.OTLPEndpoint)
	if fc.Telemetry.ServiceName == "" {
		fc.Telemetry.ServiceName = "trinity"
	}

	fc.Admin.Addr = envStr("TRINITY_ADMIN_ADDR", fc.Admin.Addr)
	if fc.Admin.Addr == "" {
		fc.Admin.Addr = ":8090"
	}
	fc.Admin.Enabled = envBool("TRINITY_ADMIN_ENABLED", fc.Admin.Enabled)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
