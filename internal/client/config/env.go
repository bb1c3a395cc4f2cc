package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "FINKEEPER_"

// parseEnv loads the dotenv file named by -e/-env (or ./.env when present)
// and copies FINKEEPER_* variables into cfg. Variables already set in the
// process environment win over the file. Malformed values panic.
func parseEnv(cfg *Config) {
	path := flagx.EnvFileFlags()
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	}

	for name, dst := range map[string]*string{
		"SERVER_ADDR":  &cfg.ServerEndpointAddr,
		"TRANSPORT":    &cfg.Transport,
		"STORAGE":      &cfg.StorageBackend,
		"DATA_PATH":    &cfg.DataPath,
		"DEVICE_ID":    &cfg.DeviceID,
		"ACCESS_TOKEN": &cfg.AccessToken,
		"LOG_FILE":     &cfg.LogFile,
	} {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	for name, dst := range map[string]*time.Duration{
		"ONLINE_CHECK_INTERVAL": &cfg.OnlineCheckInterval,
		"DEBOUNCE":              &cfg.DebounceWindow,
		"SYNC_INTERVAL":         &cfg.SyncInterval,
		"REQUEST_TIMEOUT":       &cfg.RequestTimeout,
		"RETRY_BASE":            &cfg.RetryBase,
		"RETRY_MAX":             &cfg.RetryMax,
	} {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "SCHEMA_VERSION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		cfg.SchemaVersion = n
	}
}
