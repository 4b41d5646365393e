package backend

import (
	"fmt"
	"strings"

	"budgetbook/internal/config"
)

// FromAppConfig builds the backend config for the primary data store.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	return fromAppConfig(appConfig, appConfig.DataBackend)
}

// MirrorFromAppConfig builds the backend config for the worker's mirror store.
// The mirror is never cached: the worker only writes to it.
func MirrorFromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg, err := fromAppConfig(appConfig, appConfig.MirrorBackend)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL = 0
	return cfg, nil
}

func fromAppConfig(appConfig *config.Config, backend string) (Config, error) {
	backendType := BackendType(backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", backend)
	}

	return Config{
		Type: backendType,

		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PostgresURL:   appConfig.PostgresURL,

		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
		RedisPrefix:   appConfig.RedisPrefix,

		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetName:       appConfig.GoogleSheetName,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,

		CacheTTL:  appConfig.CacheTTL,
		CacheSize: appConfig.CacheSize,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type %q, want one of %s", c.Type, strings.Join(GetBackendTypeStrings(), ", "))
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case RedisBackend:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		// DataDirectory is optional; without it the store starts empty.
	}

	if c.CacheTTL > 0 && c.CacheSize < 1 {
		return fmt.Errorf("cache size must be at least 1 when caching is enabled")
	}
	return nil
}

func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, RedisBackend, SheetsBackend}
}

func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
