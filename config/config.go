package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

const CONFIG_PATH = "./beacon.config.json"

// EnvPrefix is prepended to every environment override, e.g. BEACON_ADDRESS.
const EnvPrefix = "BEACON"

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		Address:         "127.0.0.1:8080",
		MaxRetries:      64,
		InitialDelay:    1,
		MaxDelay:        5,
		Response:        "Whats up?\n",
		BufferSize:      1024,
		MaxConnections:  0,
		Engine:          EngineGoroutine,
		EnableMulticore: true,
		LogLevel:        "info",
		ShutdownTimeout: 10,
	}
}

// Create writes a configuration file with either default values or
// overrides provided by the user.
//
// The file is written in JSON format with indentation for readability.
//
// Example usage:
//
//	err := config.Create(config.CONFIG_PATH, &config.Config{Address: "0.0.0.0:9000"})
func Create(path string, override *Config) error {
	defaultConfig := Default()
	if override != nil {
		defaultConfig = *override
	}

	file, err := json.MarshalIndent(&defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("Create: failed marshalling config: %w", err)
	}

	err = os.WriteFile(path, file, 0644)
	if err != nil {
		return fmt.Errorf("Create: failed writing config: %w", err)
	}

	return nil
}

// Load reads the configuration file at path, creating it with default values
// if it does not exist, and layers BEACON_* environment variables on top.
//
// v may carry flag bindings made by the caller; a fresh instance is used when
// it is nil. The returned Config is validated.
//
// Example usage:
//
//	cfg, err := config.Load(config.CONFIG_PATH, nil)
//	if err != nil {
//	    // handle error
//	}
func Load(path string, v *viper.Viper) (Config, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := Create(path, nil); err != nil {
			return Config{}, fmt.Errorf("Load: failed creating config: %w", err)
		}
	}

	if v == nil {
		v = viper.New()
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("Load: failed reading json: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("Load: failed unmarshalling json: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that environment-only values survive Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("address", d.Address)
	v.SetDefault("maxRetries", d.MaxRetries)
	v.SetDefault("initialDelay", d.InitialDelay)
	v.SetDefault("maxDelay", d.MaxDelay)
	v.SetDefault("response", d.Response)
	v.SetDefault("bufferSize", d.BufferSize)
	v.SetDefault("maxConnections", d.MaxConnections)
	v.SetDefault("engine", d.Engine)
	v.SetDefault("enableMulticore", d.EnableMulticore)
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logFile", d.LogFile)
	v.SetDefault("shutdownTimeout", d.ShutdownTimeout)
}

var (
	ErrEmptyAddress  = errors.New("address must not be empty")
	ErrUnknownEngine = errors.New("unknown engine")
)

// Validate reports the first field that cannot be used as-is. MaxRetries of zero
// is accepted here; the bind layer treats it as an immediate failure.
func (c Config) Validate() error {
	if c.Address == "" {
		return ErrEmptyAddress
	}
	switch c.Engine {
	case EngineGoroutine, EngineEventLoop:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Engine)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("bufferSize must not be negative, got %d", c.BufferSize)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("maxConnections must not be negative, got %d", c.MaxConnections)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdownTimeout must not be negative, got %d", c.ShutdownTimeout)
	}
	return nil
}
