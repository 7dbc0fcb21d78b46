package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds all engine configuration settings.
type Config struct {
	// Deployment mode override: "development", "packaged", "ci"
	Mode string `yaml:"mode"`

	// Strategos is the worker-spawning service connection.
	Strategos StrategosConfig `yaml:"strategos"`

	// Projects is where per-project artifact directories live.
	Projects ProjectsConfig `yaml:"projects"`

	// Pathway is where pathway definitions are loaded from.
	Pathway PathwayConfig `yaml:"pathway"`

	// Concurrency bounds the investigation fan-out.
	Concurrency ConcurrencyConfig `yaml:"concurrency"`

	// Timeouts holds the per-phase and per-level worker timeouts.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// EventLog is the optional durable SQLite event recorder.
	EventLog EventLogConfig `yaml:"event_log"`

	// Neo4jMirror is the optional best-effort graph mirror export.
	Neo4jMirror Neo4jMirrorConfig `yaml:"neo4j_mirror"`
}

// StrategosConfig configures the Worker Gateway's HTTP client.
type StrategosConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIToken     string `yaml:"api_token"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ProjectsConfig locates the filesystem directory tree that owns one
// directory per project (file layout beyond this path is out of scope).
type ProjectsConfig struct {
	RootDir string `yaml:"root_dir"`
}

// PathwayConfig locates pathway definitions and configures the optional
// durable cache (go.etcd.io/bbolt) that sits in front of re-parsing JSON on
// every cold start.
type PathwayConfig struct {
	Directory     string `yaml:"directory"`
	BoltCachePath string `yaml:"bolt_cache_path"`
}

// ConcurrencyConfig holds the bounded-concurrency contract.
type ConcurrencyConfig struct {
	InvestigationBatchSize int           `yaml:"investigation_batch_size"`
	InvestigationBatchGap  time.Duration `yaml:"investigation_batch_gap"`
	ClassificationWorkersMin int         `yaml:"classification_workers_min"`
	ClassificationWorkersMax int         `yaml:"classification_workers_max"`
}

// TimeoutsConfig holds the fixed per-phase and per-level timeouts.
type TimeoutsConfig struct {
	PlanningPhase       time.Duration `yaml:"planning_phase"`
	ClassificationPhase time.Duration `yaml:"classification_phase"`
	SynthesisPhase      time.Duration `yaml:"synthesis_phase"`
	PerLevel            time.Duration `yaml:"per_level"`
	StatusPollInterval  time.Duration `yaml:"status_poll_interval"`
	DefaultWaitForDone  time.Duration `yaml:"default_wait_for_done"`
}

// EventLogConfig configures the optional SQLite-backed EventEmitter.
type EventLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Neo4jMirrorConfig configures the optional post-synthesis graph mirror.
type Neo4jMirrorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Default returns the engine's default configuration, matching the
// phase and fan-out constants used across the pipeline.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".strategos-engine")

	return &Config{
		Mode: "",
		Strategos: StrategosConfig{
			BaseURL:           "http://localhost:8088",
			RequestsPerSecond: 2,
		},
		Projects: ProjectsConfig{
			RootDir: filepath.Join(root, "projects"),
		},
		Pathway: PathwayConfig{
			Directory:     filepath.Join(root, "pathways"),
			BoltCachePath: filepath.Join(root, "cache", "pathways.db"),
		},
		Concurrency: ConcurrencyConfig{
			InvestigationBatchSize:   5,
			InvestigationBatchGap:    2 * time.Second,
			ClassificationWorkersMin: 3,
			ClassificationWorkersMax: 5,
		},
		Timeouts: TimeoutsConfig{
			PlanningPhase:       45 * time.Minute,
			ClassificationPhase: 30 * time.Minute,
			SynthesisPhase:      45 * time.Minute,
			PerLevel:            15 * time.Minute,
			StatusPollInterval:  5 * time.Second,
			DefaultWaitForDone:  30 * time.Minute,
		},
		EventLog: EventLogConfig{
			Enabled: true,
			Path:    filepath.Join(root, "events.db"),
		},
		Neo4jMirror: Neo4jMirrorConfig{
			Enabled: false,
		},
	}
}

// Load loads configuration from a file, layering environment variables and
// an optional .env file on top of the documented defaults.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("strategos", cfg.Strategos)
	v.SetDefault("projects", cfg.Projects)
	v.SetDefault("pathway", cfg.Pathway)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("timeouts", cfg.Timeouts)
	v.SetDefault("event_log", cfg.EventLog)
	v.SetDefault("neo4j_mirror", cfg.Neo4jMirror)

	v.SetEnvPrefix("ENGINE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".strategos-engine")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".strategos-engine"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadEnvFiles() {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".strategos-engine", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies precedence: env var > keychain > config file.
func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("STRATEGOS_BASE_URL"); url != "" {
		cfg.Strategos.BaseURL = url
	}

	if token := os.Getenv("STRATEGOS_API_TOKEN"); token != "" {
		cfg.Strategos.APIToken = token
	} else {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if keychainToken, err := km.GetAPIToken(); err == nil && keychainToken != "" {
				cfg.Strategos.APIToken = keychainToken
			}
		}
	}

	if dir := os.Getenv("PROJECTS_ROOT_DIR"); dir != "" {
		cfg.Projects.RootDir = expandPath(dir)
	}
	if dir := os.Getenv("PATHWAY_DIRECTORY"); dir != "" {
		cfg.Pathway.Directory = expandPath(dir)
	}

	if size := os.Getenv("INVESTIGATION_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.Concurrency.InvestigationBatchSize = n
		}
	}

	if mode := os.Getenv("ENGINE_MODE"); mode != "" {
		cfg.Mode = mode
	}
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("mode", c.Mode)
	v.Set("strategos", c.Strategos)
	v.Set("projects", c.Projects)
	v.Set("pathway", c.Pathway)
	v.Set("concurrency", c.Concurrency)
	v.Set("timeouts", c.Timeouts)
	v.Set("event_log", c.EventLog)
	v.Set("neo4j_mirror", c.Neo4jMirror)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
