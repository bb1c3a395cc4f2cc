// Package config loads runtime configuration for the FinKeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A dotenv file (-e/-env, or ./.env when present) and FINKEEPER_*
//     environment variables.
//  3. Optional JSON file selected via flags: -c or -config.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   server endpoint
//	-p string   transport: http or grpc
//	-b string   storage backend: sqlite or file
//	-d string   data path
//	-k string   access token
//	-id string  device id
//	-i int      online status check interval (seconds)
//	-y int      sync interval (seconds, 0 disables)
//	-l string   log file
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds. Absent fields keep their current values:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "transport": "grpc",
//	  "online_check_interval": "3s",
//	  "retry_max": "10m"
//	}
package config
