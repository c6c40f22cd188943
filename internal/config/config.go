package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/larder-app/larder/internal/categorize"
	"github.com/larder-app/larder/internal/policy"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Models      ModelsConfig
	Policy      PolicyConfig
	Categorizer CategorizerConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type ModelsConfig struct {
	// Dir holds versioned artifact directories. Empty resolves to
	// <data_dir>/models at load time.
	Dir string

	// Version pins a specific artifact version at startup. Empty means
	// "newest on disk, builtin defaults if none".
	Version string
}

type PolicyConfig struct {
	HighThreshold     float64
	MidThreshold      float64
	ReorderWindowDays int
}

type CategorizerConfig struct {
	ConfidenceFloor float64
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	t := policy.DefaultThresholds()
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Policy: PolicyConfig{
			HighThreshold:     t.High,
			MidThreshold:      t.Mid,
			ReorderWindowDays: int(t.ReorderWindowDays),
		},
		Categorizer: CategorizerConfig{
			ConfidenceFloor: categorize.DefaultConfidenceFloor,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.larder.app) and the API
// token falls back to macOS Keychain. On Linux the backend is a JSON file
// at $XDG_CONFIG_HOME/larder/config.json and the token falls back to a
// secrets file under $XDG_DATA_HOME/larder.
//
// Environment variables (LARDER_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret reads for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Models.Dir == "" {
		cfg.Models.Dir = filepath.Join(cfg.Storage.DataDir, "models")
	}

	// Try the platform secret store for the API token if still empty. A
	// missing token is not an error here; the server generates one on
	// first start.
	if cfg.Server.APIToken == "" {
		if token, err := kc.Get(keychainService, keychainAccount); err == nil && token != "" {
			cfg.Server.APIToken = token
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d outside 1-65535", cfg.Server.Port)
	}
	t := policy.Thresholds{
		High:              cfg.Policy.HighThreshold,
		Mid:               cfg.Policy.MidThreshold,
		ReorderWindowDays: float64(cfg.Policy.ReorderWindowDays),
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if cfg.Categorizer.ConfidenceFloor < 0 || cfg.Categorizer.ConfidenceFloor > 1 {
		return fmt.Errorf("categorizer.confidence_floor %g outside [0,1]", cfg.Categorizer.ConfidenceFloor)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}

// Thresholds converts the policy section into the engine's form.
func (c Config) Thresholds() policy.Thresholds {
	return policy.Thresholds{
		High:              c.Policy.HighThreshold,
		Mid:               c.Policy.MidThreshold,
		ReorderWindowDays: float64(c.Policy.ReorderWindowDays),
	}
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
