package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/draftpace/draftpace/internal/pacing"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTickInterval     = 500 * time.Millisecond
	DefaultMode             = pacing.KeepUp
	DefaultTarget           = "none"
	DefaultSelfID           = "self"
	DefaultTelemetrySource  = "prometheus"
	DefaultTelemetryTimeout = 2 * time.Second
	DefaultMQTTTopic        = "draftpace/riders/+"
	DefaultMQTTClientID     = "draftpace"
	DefaultHTTPPort         = 8080
	DefaultStreamInterval   = time.Second
	DefaultSnapshotTTL      = 10 * time.Second
	DefaultAPIKeyHeader     = "X-API-Key"
	DefaultKafkaTopic       = "draftpace.output"
	DefaultBufferSize       = 1000
	DefaultLogLevel         = "info"
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// EngineConfig holds the pacing engine settings. All three fields are
// hot-reloadable.
type EngineConfig struct {
	// TickInterval is the period between scheduler ticks.
	TickInterval time.Duration `yaml:"tick_interval"`

	// Mode is the initial pacing mode: keepUp | catchUpSlow.
	Mode pacing.Mode `yaml:"mode"`

	// Target is the initial target rider id. "none" leaves the engine inactive.
	Target string `yaml:"target"`
}

// TelemetryConfig selects and configures the telemetry provider.
type TelemetryConfig struct {
	// Source is one of: prometheus | mqtt | static.
	Source string `yaml:"source"`

	// SelfID is the rider id of the local rider within the roster.
	SelfID string `yaml:"self_id"`

	// Endpoint is the text-exposition URL polled by the prometheus source.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one telemetry fetch or broker connect.
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how the prometheus source authenticates.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options for the prometheus source.
	TLS TLSConfig `yaml:"tls"`

	// MQTT configures the mqtt source.
	MQTT MQTTConfig `yaml:"mqtt"`

	// Riders is the fixed roster served by the static source.
	Riders []RiderConfig `yaml:"riders"`
}

// MQTTConfig configures the broker subscription of the mqtt source.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
	// Username is the literal broker username; the password is read from PasswordEnv.
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// RiderConfig is one rider of the static roster. Absent fields stay nil and
// receive the telemetry fallbacks.
type RiderConfig struct {
	ID           string   `yaml:"id"`
	Mass         *float64 `yaml:"mass_kg"`
	BikeMass     *float64 `yaml:"bike_mass_kg"`
	RollingCoeff *float64 `yaml:"rolling_resistance"`
	Speed        *float64 `yaml:"speed_mps"`
	Power        *float64 `yaml:"power_watts"`
	Grade        *float64 `yaml:"grade"`
	DraftFactor  *float64 `yaml:"draft_factor"`
	Distance     *float64 `yaml:"distance_m"`
	FTP          *float64 `yaml:"ftp_watts"`
}

// AuthConfig specifies the authentication mode for the telemetry endpoint.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header name the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ServerConfig holds the HTTP API and stream settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// StreamInterval is the WebSocket broadcast period.
	StreamInterval time.Duration `yaml:"stream_interval"`

	// SnapshotTTL is how long the latest output is served before it counts as stale.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`

	// Auth protects the control endpoints (target and mode selection).
	Auth ServerAuthConfig `yaml:"auth"`
}

// ServerAuthConfig configures REST API authentication.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the request header carrying the key. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the server API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns Header, or DefaultAPIKeyHeader when unset.
func (a ServerAuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return a.Header
}

// KafkaConfig configures the optional output fan-out to Kafka.
type KafkaConfig struct {
	// Brokers lists bootstrap brokers (host:port). Empty disables the sink.
	Brokers []string `yaml:"brokers"`

	// Topic receives one JSON message per tick output.
	Topic string `yaml:"topic"`

	// BufferSize is the maximum number of outputs held while Kafka is unreachable.
	BufferSize int `yaml:"buffer_size"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AlertsConfig holds ride alert rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "ftp_pct > 110", "gap_m >= 50",
	// "status == target_unavailable", "strategy == emergency re-entry".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to one minute if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: DefaultLogLevel},
		Engine: EngineConfig{
			TickInterval: DefaultTickInterval,
			Mode:         DefaultMode,
			Target:       DefaultTarget,
		},
		Telemetry: TelemetryConfig{
			Source:  DefaultTelemetrySource,
			SelfID:  DefaultSelfID,
			Timeout: DefaultTelemetryTimeout,
			MQTT: MQTTConfig{
				Topic:    DefaultMQTTTopic,
				ClientID: DefaultMQTTClientID,
			},
		},
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			StreamInterval: DefaultStreamInterval,
			SnapshotTTL:    DefaultSnapshotTTL,
		},
		Kafka: KafkaConfig{
			Topic:      DefaultKafkaTopic,
			BufferSize: DefaultBufferSize,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	if cfg.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive")
	}
	if !cfg.Engine.Mode.Valid() {
		return fmt.Errorf("engine.mode: unknown mode %q", cfg.Engine.Mode)
	}
	if cfg.Engine.Target == "" {
		cfg.Engine.Target = DefaultTarget
	}

	tel := cfg.Telemetry
	if tel.SelfID == "" {
		return fmt.Errorf("telemetry.self_id is required")
	}
	if tel.Timeout <= 0 {
		return fmt.Errorf("telemetry.timeout must be positive")
	}
	switch tel.Source {
	case "prometheus":
		if tel.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required for source prometheus")
		}
		switch tel.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("telemetry.auth: unknown mode %q", tel.Auth.Mode)
		}
	case "mqtt":
		if tel.MQTT.Broker == "" {
			return fmt.Errorf("telemetry.mqtt.broker is required for source mqtt")
		}
		if tel.MQTT.QoS > 2 {
			return fmt.Errorf("telemetry.mqtt.qos must be 0, 1 or 2")
		}
	case "static":
		if err := validateRiders(tel); err != nil {
			return err
		}
	default:
		return fmt.Errorf("telemetry.source: unknown source %q", tel.Source)
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", cfg.Server.HTTPPort)
	}
	if cfg.Server.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}
	if cfg.Server.SnapshotTTL <= 0 {
		return fmt.Errorf("server.snapshot_ttl must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth: unknown mode %q", cfg.Server.Auth.Mode)
	}

	if cfg.Kafka.Enabled() {
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when brokers are set")
		}
		if cfg.Kafka.BufferSize <= 0 {
			return fmt.Errorf("kafka.buffer_size must be positive")
		}
	}
	return validateAlerts(cfg.Alerts)
}

func validateAlerts(a AlertsConfig) error {
	seen := make(map[string]bool, len(a.Rules))
	for i, r := range a.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("alerts.rules[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true
		if len(strings.Fields(r.Condition)) < 3 {
			return fmt.Errorf("alerts.rules[%d]: condition %q must be \"field op value\"", i, r.Condition)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d]: unknown severity %q", i, r.Severity)
		}
	}
	for i, wh := range a.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	return nil
}

func validateRiders(tel TelemetryConfig) error {
	seen := make(map[string]bool, len(tel.Riders))
	for i, r := range tel.Riders {
		if r.ID == "" {
			return fmt.Errorf("telemetry.riders[%d]: id is required", i)
		}
		if r.ID == "none" {
			return fmt.Errorf("telemetry.riders[%d]: id %q is reserved", i, r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("telemetry.riders[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true
	}
	if !seen[tel.SelfID] {
		return fmt.Errorf("telemetry.riders: self rider %q not listed", tel.SelfID)
	}
	return nil
}
