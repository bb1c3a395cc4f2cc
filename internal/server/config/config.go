// Package config handles configuration for the reference sync server,
// including defaults, a dotenv/environment overlay, a JSON file and
// command-line flags.
package config

import "time"

// Config holds runtime settings for the FinKeeper sync server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP/JSON API.
//   - EndpointAddrGRPC: bind address for the gRPC API; empty disables it.
//   - SecretKey: HMAC secret for device tokens (HS256). Empty disables auth.
//   - TokenValidityDuration: lifetime of issued device tokens.
//   - IssueToken: when set, the binary prints a token for this device id and exits.
//   - DatabaseDSN: PostgreSQL connection string; empty keeps records in memory.
type Config struct {
	EndpointAddrHTTP      string
	EndpointAddrGRPC      string
	SecretKey             string
	TokenValidityDuration time.Duration
	IssueToken            string
	DatabaseDSN           string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.SecretKey = ""
	c.DatabaseDSN = ""
	c.TokenValidityDuration = 30 * 24 * time.Hour
}

// LoadConfig builds a Config by applying defaults, then the environment,
// then an optional JSON file and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
