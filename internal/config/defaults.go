package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultServerURL         = "ws://localhost:8080/websocket/websocket"
	DefaultTopicPrefix       = "/topic/"
	DefaultReconnectPolicy   = "fixed"
	DefaultReconnectDelay    = 5 * time.Second
	DefaultReconnectMaxDelay = 60 * time.Second
	DefaultConnectTimeout    = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 90 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultConnBufferSize    = 1000
	DefaultDisplayCap        = 4
	DefaultPruneInterval     = 30 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultHistoryBuffer     = 1000
	DefaultHistoryBufferMax  = 100000
	DefaultHealthPort        = 8081
)

// DefaultTerminalStates are evicted when view.retain_terminal is set.
var DefaultTerminalStates = []string{"REVERTED", "STOPPED"}

func (c *Config) applyDefaults() {
	// Instance defaults
	if c.Instance.ID == "" {
		if host, err := os.Hostname(); err == nil {
			c.Instance.ID = host
		} else {
			c.Instance.ID = "effectwatch"
		}
	}

	// Server defaults
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.TopicPrefix == "" {
		c.Server.TopicPrefix = DefaultTopicPrefix
	}

	// Connection defaults
	if c.Connection.ReconnectPolicy == "" {
		c.Connection.ReconnectPolicy = DefaultReconnectPolicy
	}
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultConnBufferSize
	}

	// View defaults
	if c.View.DisplayCap == 0 {
		c.View.DisplayCap = DefaultDisplayCap
	}
	if c.View.PruneInterval == 0 {
		c.View.PruneInterval = DefaultPruneInterval
	}
	if len(c.View.TerminalStates) == 0 {
		c.View.TerminalStates = append([]string(nil), DefaultTerminalStates...)
	}

	// History defaults
	applyDBDefaults(&c.History.Database)
	if c.History.BatchSize == 0 {
		c.History.BatchSize = DefaultBatchSize
	}
	if c.History.FlushInterval == 0 {
		c.History.FlushInterval = DefaultFlushInterval
	}
	if c.History.BufferSize == 0 {
		c.History.BufferSize = DefaultHistoryBuffer
	}
	if c.History.BufferMax == 0 {
		c.History.BufferMax = DefaultHistoryBufferMax
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
