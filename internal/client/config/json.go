package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/finkeeper/internal/flagx"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell absent keys apart from zero values.
type JsonConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr"`
	Transport           *string         `json:"transport"`
	StorageBackend      *string         `json:"storage_backend"`
	DataPath            *string         `json:"data_path"`
	DeviceID            *string         `json:"device_id"`
	AccessToken         *string         `json:"access_token"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	DebounceWindow      *timex.Duration `json:"debounce_window"`
	SyncInterval        *timex.Duration `json:"sync_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	RetryBase           *timex.Duration `json:"retry_base"`
	RetryMax            *timex.Duration `json:"retry_max"`
	SchemaVersion       *int            `json:"schema_version"`
	LogFile             *string         `json:"log_file"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// parseJson overlays cfg with values loaded from the JSON file given by -c
// or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.Transport, jc.Transport)
	setString(&cfg.StorageBackend, jc.StorageBackend)
	setString(&cfg.DataPath, jc.DataPath)
	setString(&cfg.DeviceID, jc.DeviceID)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.LogFile, jc.LogFile)

	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.DebounceWindow != nil {
		cfg.DebounceWindow = jc.DebounceWindow.Duration
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RetryBase != nil {
		cfg.RetryBase = jc.RetryBase.Duration
	}
	if jc.RetryMax != nil {
		cfg.RetryMax = jc.RetryMax.Duration
	}
	if jc.SchemaVersion != nil {
		cfg.SchemaVersion = *jc.SchemaVersion
	}
}
