package config

import "time"

// Config is the root configuration for an effectwatch instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	View       ViewConfig       `yaml:"view"`
	History    HistoryConfig    `yaml:"history"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this watcher in logs and history rows.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the effect server endpoint.
type ServerConfig struct {
	URL         string `yaml:"url"`          // WebSocket URL of the STOMP endpoint
	Host        string `yaml:"host"`         // STOMP virtual host (defaults to URL host)
	Login       string `yaml:"login"`        // Optional STOMP login
	Passcode    string `yaml:"passcode"`     // Optional STOMP passcode
	TopicPrefix string `yaml:"topic_prefix"` // Prefix of effect/schedule, effect/progress, effect/remove
}

// ConnectionConfig holds Connection Manager settings.
type ConnectionConfig struct {
	ReconnectPolicy   string        `yaml:"reconnect_policy"` // "fixed" or "exponential"
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"` // exponential only
	MaxAttempts       int           `yaml:"max_attempts"`        // total attempts incl. the first, 0 = retry forever
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// ViewConfig holds Effect Store settings.
type ViewConfig struct {
	DisplayCap     int           `yaml:"display_cap"`
	RetainTerminal time.Duration `yaml:"retain_terminal"` // 0 = keep until removed
	PruneInterval  time.Duration `yaml:"prune_interval"`
	TerminalStates []string      `yaml:"terminal_states"`
}

// HistoryConfig holds settings for recording applied events in Postgres.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	BufferMax     int           `yaml:"buffer_max"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HealthConfig holds the health and view HTTP server settings.
type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}
