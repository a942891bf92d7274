package config

import "time"

const (
	EngineGoroutine = "goroutine" // one goroutine per accepted connection
	EngineEventLoop = "eventloop" // gnet event loops, one per core
)

// Config defines listener-level configuration options. A Config is built once at
// startup and passed around by value; nothing mutates it afterwards.
type Config struct {
	Address         string `json:"address" mapstructure:"address"`                 // TCP bind address, host:port (defaults to 127.0.0.1:8080)
	MaxRetries      uint   `json:"maxRetries" mapstructure:"maxRetries"`           // Bind attempts before giving up (defaults to 64)
	InitialDelay    uint   `json:"initialDelay" mapstructure:"initialDelay"`       // First backoff delay in seconds (defaults to 1)
	MaxDelay        uint   `json:"maxDelay" mapstructure:"maxDelay"`               // Backoff ceiling in seconds (defaults to 5)
	Response        string `json:"response" mapstructure:"response"`               // Bytes written back for every non-empty read
	BufferSize      int    `json:"bufferSize" mapstructure:"bufferSize"`           // Read buffer size in bytes (defaults to 1024)
	MaxConnections  int    `json:"maxConnections" mapstructure:"maxConnections"`   // Concurrent connection limit, 0 means unbounded
	Engine          string `json:"engine" mapstructure:"engine"`                   // goroutine or eventloop (defaults to goroutine)
	EnableMulticore bool   `json:"enableMulticore" mapstructure:"enableMulticore"` // Whether the event loop engine uses every core (defaults to true)
	LogLevel        string `json:"logLevel" mapstructure:"logLevel"`               // Logging level (defaults to info)
	LogFile         string `json:"logFile" mapstructure:"logFile"`                 // Optional rotated log file, empty disables it
	ShutdownTimeout int    `json:"shutdownTimeout" mapstructure:"shutdownTimeout"` // Graceful shutdown timeout in seconds (defaults to 10)
}

func (c Config) InitialDelayDuration() time.Duration {
	return time.Duration(c.InitialDelay) * time.Second
}

func (c Config) MaxDelayDuration() time.Duration {
	return time.Duration(c.MaxDelay) * time.Second
}

func (c Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}
