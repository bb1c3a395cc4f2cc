package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "FINKEEPER_"

// parseEnv loads the dotenv file named by -e/-env (or ./.env when present)
// into the process environment and copies FINKEEPER_* variables into config.
// A dotenv file that exists but cannot be parsed panics.
func parseEnv(config *Config) {
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

	if v, ok := os.LookupEnv(envPrefix + "HTTP_ADDR"); ok {
		config.EndpointAddrHTTP = v
	}
	if v, ok := os.LookupEnv(envPrefix + "GRPC_ADDR"); ok {
		config.EndpointAddrGRPC = v
	}
	if v, ok := os.LookupEnv(envPrefix + "DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv(envPrefix + "JWT_SECRET"); ok {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv(envPrefix + "TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		config.TokenValidityDuration = d
	}
}
