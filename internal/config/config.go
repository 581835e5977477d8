// Package config provides configuration types and loading for parley.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Provider, Pipeline, Analysis, Channels, Relay.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Model    ModelConfig    `json:"model"`
	Provider ProviderConfig `json:"provider"`
	Pipeline PipelineConfig `json:"pipeline"`
	Analysis AnalysisConfig `json:"analysis"`
	Channels ChannelsConfig `json:"channels"`
	Relay    RelayConfig    `json:"relay"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// ---------------------------------------------------------------------------
// Model – completion behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups completion model settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ---------------------------------------------------------------------------
// Provider – completion provider endpoint
// ---------------------------------------------------------------------------

// ProviderConfig configures the OpenAI-compatible completion endpoint.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase" envconfig:"API_BASE"`
	// TimeoutSeconds bounds a single completion round trip, streaming included.
	TimeoutSeconds int `json:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
}

// ---------------------------------------------------------------------------
// Pipeline – message pipeline behaviour
// ---------------------------------------------------------------------------

// PipelineConfig groups message pipeline settings.
type PipelineConfig struct {
	// DefaultPriority is assigned to topics that never had SetPriority called.
	DefaultPriority int `json:"defaultPriority" envconfig:"DEFAULT_PRIORITY"`
	// MaxDelegationHops bounds identity delegation chains.
	MaxDelegationHops int `json:"maxDelegationHops" envconfig:"MAX_DELEGATION_HOPS"`
	// HistoryWindow is the number of prior turns sent to the provider.
	HistoryWindow int `json:"historyWindow" envconfig:"HISTORY_WINDOW"`
}

// ---------------------------------------------------------------------------
// Analysis – background subject/keyword pipeline
// ---------------------------------------------------------------------------

// AnalysisConfig groups analysis pipeline settings.
type AnalysisConfig struct {
	Enabled bool `json:"enabled" envconfig:"ENABLED"`
	// QueueSize bounds pending ingestion jobs; overflow is dropped.
	QueueSize int `json:"queueSize" envconfig:"QUEUE_SIZE"`
}

// ---------------------------------------------------------------------------
// Channels – messaging integrations
// ---------------------------------------------------------------------------

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Slack SlackConfig `json:"slack"`
}

// SlackConfig configures the Slack Socket Mode channel.
type SlackConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"ENABLED"`
	BotToken  string   `json:"botToken" envconfig:"BOT_TOKEN"`
	AppToken  string   `json:"appToken" envconfig:"APP_TOKEN"`
	AllowFrom []string `json:"allowFrom"`
}

// ---------------------------------------------------------------------------
// Relay – Kafka event relay
// ---------------------------------------------------------------------------

// RelayConfig configures the Kafka relay for observer events and
// remote inbound messages. Disabled when Brokers is empty.
type RelayConfig struct {
	Brokers      string `json:"brokers" envconfig:"BROKERS"`
	EventTopic   string `json:"eventTopic" envconfig:"EVENT_TOPIC"`
	InboundTopic string `json:"inboundTopic" envconfig:"INBOUND_TOPIC"`
	Group        string `json:"group" envconfig:"GROUP"`
}

// Enabled reports whether the relay is configured.
func (r RelayConfig) Enabled() bool {
	return r.Brokers != ""
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Name:        "gpt-4.1-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Provider: ProviderConfig{
			APIBase:        "https://api.openai.com/v1",
			TimeoutSeconds: 180,
		},
		Pipeline: PipelineConfig{
			DefaultPriority:   50,
			MaxDelegationHops: 10,
			HistoryWindow:     40,
		},
		Analysis: AnalysisConfig{
			Enabled:   true,
			QueueSize: 64,
		},
		Relay: RelayConfig{
			EventTopic:   "parley.events",
			InboundTopic: "parley.inbound",
			Group:        "parley",
		},
	}
}
