package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
// Parse errors panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-p", "-b", "-d", "-k", "-id", "-i", "-y", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "server endpoint")
	fs.StringVar(&cfg.Transport, "p", cfg.Transport, "transport: http or grpc")
	fs.StringVar(&cfg.StorageBackend, "b", cfg.StorageBackend, "storage backend: sqlite or file")
	fs.StringVar(&cfg.DataPath, "d", cfg.DataPath, "data path")
	fs.StringVar(&cfg.AccessToken, "k", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.DeviceID, "id", cfg.DeviceID, "device id")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	syncInterval := fs.Int("y", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds, 0 disables)")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
