package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds newscheck configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Console    ConsoleConfig    `yaml:"console"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Logging    LoggingConfig    `yaml:"logging"`
	Events     EventsConfig     `yaml:"events"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr                string        `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	MaxRequestBodyBytes int64         `yaml:"max_request_body_bytes"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
}

// ArtifactsConfig locates the pre-trained vectorizer and classifier.
type ArtifactsConfig struct {
	Dir             string        `yaml:"dir"`    // local directory holding the artifact files
	Source          string        `yaml:"source"` // optional gs://bucket/prefix or s3://bucket/prefix
	VectorizerFile  string        `yaml:"vectorizer_file"`
	ModelFile       string        `yaml:"model_file"`
	OnnxModelFile   string        `yaml:"onnx_model_file"`
	AccuracyFile    string        `yaml:"accuracy_file"`
	ModelCardFile   string        `yaml:"model_card_file"`
	RequireManifest bool          `yaml:"require_manifest"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	S3Endpoint      string        `yaml:"s3_endpoint"` // e.g. "http://127.0.0.1:9000" for minio
	S3Region        string        `yaml:"s3_region"`

	// Static S3 credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`

	// Service account key for gs:// sources; when empty application default credentials are used.
	GCSCredentialsFile string `yaml:"gcs_credentials_file"`
}

type ClassifierConfig struct {
	Backend             string `yaml:"backend"` // native | onnx
	OnnxInputName       string `yaml:"onnx_input_name"`
	OnnxLabelName       string `yaml:"onnx_label_name"`
	OnnxProbabilityName string `yaml:"onnx_probability_name"`
}

type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	// AnalysisDelay is an optional pause the page shows before revealing a verdict.
	AnalysisDelay time.Duration `yaml:"analysis_delay"`
}

type ScrapeConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxChars int           `yaml:"max_chars"`
}

type LoggingConfig struct {
	EventLevel string `yaml:"event_level"` // metadata | redacted | full
}

type EventsConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	Workers         int           `yaml:"workers"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Sinks           []SinkConfig  `yaml:"sinks"`
}

type SinkConfig struct {
	Type    string            `yaml:"type"` // file_jsonl | webhook
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

// Load reads configuration from a YAML file and applies environment overrides.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":8080",
			MaxRequestBodyBytes: 1 << 20,
			ReadHeaderTimeout:   5 * time.Second,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        30 * time.Second,
			IdleTimeout:         60 * time.Second,
			ShutdownTimeout:     10 * time.Second,
		},
		Artifacts: ArtifactsConfig{
			Dir:            ".",
			VectorizerFile: "vectorizer.json",
			ModelFile:      "lr_model.json",
			OnnxModelFile:  "lr_model.onnx",
			AccuracyFile:   "accuracy.txt",
			ModelCardFile:  "model_card.yaml",
			FetchTimeout:   60 * time.Second,
		},
		Classifier: ClassifierConfig{
			Backend:             "native",
			OnnxInputName:       "float_input",
			OnnxLabelName:       "label",
			OnnxProbabilityName: "probabilities",
		},
		Console: ConsoleConfig{
			Enabled: true,
			Title:   "Fake News Detector",
		},
		Scrape: ScrapeConfig{
			Enabled:  false,
			Timeout:  10 * time.Second,
			MaxChars: 20000,
		},
		Logging: LoggingConfig{
			EventLevel: "metadata",
		},
		Events: EventsConfig{
			QueueSize:       1000,
			Workers:         1,
			ShutdownTimeout: 2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Protocol: "grpc",
		},
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("NEWSCHECK_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCHECK_ARTIFACTS_DIR")); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCHECK_ARTIFACTS_SOURCE")); v != "" {
		cfg.Artifacts.Source = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCHECK_S3_ACCESS_KEY_ID")); v != "" {
		cfg.Artifacts.S3AccessKeyID = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCHECK_S3_SECRET_ACCESS_KEY")); v != "" {
		cfg.Artifacts.S3SecretAccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCHECK_CLASSIFIER_BACKEND")); v != "" {
		cfg.Classifier.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCHECK_TELEMETRY_ENDPOINT")); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.MaxRequestBodyBytes <= 0 {
		cfg.Server.MaxRequestBodyBytes = def.Server.MaxRequestBodyBytes
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = def.Artifacts.Dir
	}
	if cfg.Artifacts.VectorizerFile == "" {
		cfg.Artifacts.VectorizerFile = def.Artifacts.VectorizerFile
	}
	if cfg.Artifacts.ModelFile == "" {
		cfg.Artifacts.ModelFile = def.Artifacts.ModelFile
	}
	if cfg.Artifacts.OnnxModelFile == "" {
		cfg.Artifacts.OnnxModelFile = def.Artifacts.OnnxModelFile
	}
	if cfg.Artifacts.AccuracyFile == "" {
		cfg.Artifacts.AccuracyFile = def.Artifacts.AccuracyFile
	}
	if cfg.Artifacts.ModelCardFile == "" {
		cfg.Artifacts.ModelCardFile = def.Artifacts.ModelCardFile
	}
	if cfg.Artifacts.FetchTimeout <= 0 {
		cfg.Artifacts.FetchTimeout = def.Artifacts.FetchTimeout
	}

	cfg.Classifier.Backend = strings.ToLower(strings.TrimSpace(cfg.Classifier.Backend))
	if cfg.Classifier.Backend == "" {
		cfg.Classifier.Backend = def.Classifier.Backend
	}
	if cfg.Classifier.OnnxInputName == "" {
		cfg.Classifier.OnnxInputName = def.Classifier.OnnxInputName
	}
	if cfg.Classifier.OnnxLabelName == "" {
		cfg.Classifier.OnnxLabelName = def.Classifier.OnnxLabelName
	}
	if cfg.Classifier.OnnxProbabilityName == "" {
		cfg.Classifier.OnnxProbabilityName = def.Classifier.OnnxProbabilityName
	}

	if cfg.Console.Title == "" {
		cfg.Console.Title = def.Console.Title
	}

	if cfg.Scrape.Timeout <= 0 {
		cfg.Scrape.Timeout = def.Scrape.Timeout
	}
	if cfg.Scrape.MaxChars <= 0 {
		cfg.Scrape.MaxChars = def.Scrape.MaxChars
	}

	cfg.Logging.EventLevel = strings.ToLower(strings.TrimSpace(cfg.Logging.EventLevel))
	if cfg.Logging.EventLevel == "" {
		cfg.Logging.EventLevel = def.Logging.EventLevel
	}

	if cfg.Events.QueueSize <= 0 {
		cfg.Events.QueueSize = def.Events.QueueSize
	}
	if cfg.Events.Workers <= 0 {
		cfg.Events.Workers = def.Events.Workers
	}
	if cfg.Events.ShutdownTimeout <= 0 {
		cfg.Events.ShutdownTimeout = def.Events.ShutdownTimeout
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = def.Telemetry.Protocol
	}
}
