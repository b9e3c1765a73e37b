package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/natexcvi/go-llm-eval/agents"
	"github.com/natexcvi/go-llm-eval/engines"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var ErrUnknownModel = errors.New("unknown model")

// Config holds all configuration for the application
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Models         []ModelConfig        `mapstructure:"models"`
	Inference      InferenceConfig      `mapstructure:"inference"`
	Retry          RetryConfig          `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Evaluation     EvaluationConfig     `mapstructure:"evaluation"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ModelConfig is one entry of the model registry. Models are a list so
// that names keep their case.
type ModelConfig struct {
	Name     string `mapstructure:"name"`
	Provider string `mapstructure:"provider"` // openai, azure, rag
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	// APIKeyEnv names an environment variable holding the key. It wins
	// over APIKey when set and non-empty.
	APIKeyEnv   string        `mapstructure:"api_key_env"`
	APIVersion  string        `mapstructure:"api_version"`
	Stop        []string      `mapstructure:"stop"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`

	Restricted        bool    `mapstructure:"restricted"`
	Reasoning         bool    `mapstructure:"reasoning"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`

	KnowledgeBases []string `mapstructure:"knowledge_bases"`
	SessionID      string   `mapstructure:"session_id"`
}

type InferenceConfig struct {
	Dataset      string   `mapstructure:"dataset"`
	IDsFile      string   `mapstructure:"ids_file"`
	OutputDir    string   `mapstructure:"output_dir"`
	Agents       []string `mapstructure:"agents"`
	MaxBatchSize int      `mapstructure:"max_batch_size"`
	Append       bool     `mapstructure:"append"`
	Sequential   bool     `mapstructure:"sequential"`
	RepairJSON   bool     `mapstructure:"repair_json"`
	OutputSchema bool     `mapstructure:"output_schema"`
	// JSONL also writes <label>.jsonl holding this run's records.
	JSONL bool `mapstructure:"jsonl"`
}

type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ReadyToTripRatio float64       `mapstructure:"ready_to_trip_ratio"`
}

type EvaluationConfig struct {
	InputDir        string  `mapstructure:"input_dir"`
	OutputDir       string  `mapstructure:"output_dir"`
	AgentKind       string  `mapstructure:"agent_kind"`
	GroundTruth     string  `mapstructure:"ground_truth"`
	IUPACThreshold  float64 `mapstructure:"iupac_threshold"`
	PenalizeMissing bool    `mapstructure:"penalize_missing"`
	SFTParamKey     string  `mapstructure:"sft_param_key"`
	RecoverPartial  bool    `mapstructure:"recover_partial"`
}

// Load reads configuration from path, or from ./chemeval.yaml when path is
// empty and that file exists, then applies CHEMEVAL_* environment
// overrides (e.g. CHEMEVAL_INFERENCE_OUTPUT_DIR).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHEMEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("chemeval")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debugf("using config file %s", used)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("inference.dataset", "")
	v.SetDefault("inference.ids_file", "")
	v.SetDefault("inference.output_dir", "infer_res")
	v.SetDefault("inference.agents", []string{agents.SynthesisRouteKind})
	v.SetDefault("inference.max_batch_size", agents.DefaultMaxBatchSize)
	v.SetDefault("inference.append", false)
	v.SetDefault("inference.sequential", false)
	v.SetDefault("inference.repair_json", false)
	v.SetDefault("inference.output_schema", false)
	v.SetDefault("inference.jsonl", false)

	retry := engines.DefaultRetryConfig()
	v.SetDefault("retry.max_retries", retry.MaxRetries)
	v.SetDefault("retry.initial_delay", retry.InitialDelay)
	v.SetDefault("retry.max_delay", retry.MaxDelay)
	v.SetDefault("retry.backoff_multiplier", retry.BackoffMultiplier)

	breaker := engines.DefaultBreakerConfig()
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.max_requests", breaker.MaxRequests)
	v.SetDefault("circuit_breaker.interval", breaker.Interval)
	v.SetDefault("circuit_breaker.timeout", breaker.Timeout)
	v.SetDefault("circuit_breaker.ready_to_trip_ratio", breaker.ReadyToTripRatio)

	v.SetDefault("evaluation.input_dir", "infer_res")
	v.SetDefault("evaluation.output_dir", "eval_res")
	v.SetDefault("evaluation.agent_kind", agents.SynthesisRouteKind)
	v.SetDefault("evaluation.ground_truth", "")
	v.SetDefault("evaluation.iupac_threshold", 0.85)
	v.SetDefault("evaluation.penalize_missing", false)
	v.SetDefault("evaluation.sft_param_key", "")
	v.SetDefault("evaluation.recover_partial", false)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = multierror.Append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("models[%d]: name is required", i))
			continue
		}
		if seen[m.Name] {
			errs = multierror.Append(errs, fmt.Errorf("models[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true
		switch engines.Provider(m.Provider) {
		case engines.ProviderOpenAI, engines.ProviderAzure, engines.ProviderRAG, "":
		default:
			errs = multierror.Append(errs, fmt.Errorf("models[%d]: %w: %q", i, engines.ErrUnknownProvider, m.Provider))
		}
		if (m.Provider == string(engines.ProviderAzure) || m.Provider == string(engines.ProviderRAG)) && m.BaseURL == "" {
			errs = multierror.Append(errs, fmt.Errorf("models[%d]: base_url is required for %s", i, m.Provider))
		}
	}
	if c.Inference.MaxBatchSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("inference.max_batch_size must be positive, got %d", c.Inference.MaxBatchSize))
	}
	for _, kind := range c.Inference.Agents {
		if !lo.Contains(agents.Kinds, kind) {
			errs = multierror.Append(errs, fmt.Errorf("inference.agents: unknown agent %q", kind))
		}
	}
	if t := c.Evaluation.IUPACThreshold; t <= 0 || t > 1 {
		errs = multierror.Append(errs, fmt.Errorf("evaluation.iupac_threshold must be in (0, 1], got %v", t))
	}
	return errs.ErrorOrNil()
}

// Model looks a registry entry up by name.
func (c *Config) Model(name string) (ModelConfig, error) {
	m, ok := lo.Find(c.Models, func(m ModelConfig) bool { return m.Name == name })
	if !ok {
		return ModelConfig{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

func (c *Config) ModelNames() []string {
	return lo.Map(c.Models, func(m ModelConfig, _ int) string { return m.Name })
}

// EngineModel converts a registry entry to the engine description,
// resolving the API key from the environment when configured.
func (m ModelConfig) EngineModel() engines.Model {
	apiKey := m.APIKey
	if m.APIKeyEnv != "" {
		if fromEnv := os.Getenv(m.APIKeyEnv); fromEnv != "" {
			apiKey = fromEnv
		}
	}
	return engines.Model{
		Name:              m.Name,
		Provider:          engines.Provider(m.Provider),
		Model:             m.Model,
		BaseURL:           m.BaseURL,
		APIKey:            apiKey,
		APIVersion:        m.APIVersion,
		Stop:              m.Stop,
		MaxTokens:         m.MaxTokens,
		Temperature:       m.Temperature,
		Timeout:           m.Timeout,
		Restricted:        m.Restricted,
		Reasoning:         m.Reasoning,
		RequestsPerSecond: m.RequestsPerSecond,
		KnowledgeBases:    m.KnowledgeBases,
		SessionID:         m.SessionID,
	}
}

// EngineOptions returns the wrappers every engine is built with.
func (c *Config) EngineOptions() []engines.EngineOption {
	var opts []engines.EngineOption
	if c.Retry.MaxRetries > 0 {
		opts = append(opts, engines.WithRetry(&engines.RetryConfig{
			MaxRetries:        c.Retry.MaxRetries,
			InitialDelay:      c.Retry.InitialDelay,
			MaxDelay:          c.Retry.MaxDelay,
			BackoffMultiplier: c.Retry.BackoffMultiplier,
		}))
	}
	if c.CircuitBreaker.Enabled {
		opts = append(opts, engines.WithCircuitBreaker(&engines.BreakerConfig{
			MaxRequests:      c.CircuitBreaker.MaxRequests,
			Interval:         c.CircuitBreaker.Interval,
			Timeout:          c.CircuitBreaker.Timeout,
			ReadyToTripRatio: c.CircuitBreaker.ReadyToTripRatio,
		}))
	}
	return opts
}

// SetupLogging configures the global logrus logger. verbose forces debug.
func SetupLogging(cfg LogConfig, verbose bool) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
