package config

import "time"

// Config holds runtime settings for the FinKeeper client.
//
// Fields:
//   - ServerEndpointAddr: base URL (http) or host:port (grpc) of the sync server.
//   - Transport: "http" or "grpc".
//   - StorageBackend: "sqlite" or "file".
//   - DataPath: SQLite database or JSON document path.
//   - DeviceID: device identity; generated and persisted when empty.
//   - AccessToken: bearer token issued by the server, optional.
//   - OnlineCheckInterval: how often the client checks server reachability.
//   - DebounceWindow: connectivity changes shorter than this are ignored.
//   - SyncInterval: periodic sync; zero disables it.
//   - RequestTimeout: bound for each network call.
//   - RetryBase, RetryMax: backoff schedule after transient failures.
//   - SchemaVersion: data schema the client speaks.
//   - LogFile: rotating log file; the terminal is kept for the prompt.
type Config struct {
	ServerEndpointAddr  string
	Transport           string
	StorageBackend      string
	DataPath            string
	DeviceID            string
	AccessToken         string
	OnlineCheckInterval time.Duration
	DebounceWindow      time.Duration
	SyncInterval        time.Duration
	RequestTimeout      time.Duration
	RetryBase           time.Duration
	RetryMax            time.Duration
	SchemaVersion       int
	LogFile             string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.Transport = "http"
	c.StorageBackend = "sqlite"
	c.DataPath = "finkeeper.db"
	c.DeviceID = ""
	c.AccessToken = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.DebounceWindow = time.Second
	c.SyncInterval = time.Minute
	c.RequestTimeout = 15 * time.Second
	c.RetryBase = time.Second
	c.RetryMax = 5 * time.Minute
	c.SchemaVersion = 1
	c.LogFile = "finkeeper.log"
}

// LoadConfig constructs a Config, applies defaults, then overlays the
// environment, JSON (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
