package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultExpiryWindowDays = 30
	defaultMinimum          = 10
	defaultMaximum          = 100
	defaultLogLevel         = "info"
	defaultLogMaxSizeMB     = 10
	defaultLogMaxFiles      = 5
	defaultStoreFile        = "medstock.db"
	maxExpiryWindowDays     = 365
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Store   StoreConfig   `toml:"store"`
	Alerts  AlertsConfig  `toml:"alerts"`
	Logging LoggingConfig `toml:"logging"`
}

type StoreConfig struct {
	Path     string `toml:"path"`
	SeedDemo bool   `toml:"seed_demo"`
}

type AlertsConfig struct {
	ExpiryWindowDays int `toml:"expiry_window_days"`
	DefaultMinimum   int `toml:"default_minimum"`
	DefaultMaximum   int `toml:"default_maximum"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

type LoadOptions struct {
	ConfigPath string
	DotenvPath string
	Env        map[string]string
	Flags      FlagOverrides

	dotenv map[string]string
}

type FlagOverrides struct {
	StorePath *string
	LogLevel  *string
	SeedDemo  *bool
}

// LoadReport records which files contributed to the loaded config.
type LoadReport struct {
	ConfigPath   string   `json:"config_path"`
	ConfigLoaded bool     `json:"config_loaded"`
	DotenvPath   string   `json:"dotenv_path,omitempty"`
	DotenvKeys   []string `json:"dotenv_keys,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Path:     "",
			SeedDemo: false,
		},
		Alerts: AlertsConfig{
			ExpiryWindowDays: defaultExpiryWindowDays,
			DefaultMinimum:   defaultMinimum,
			DefaultMaximum:   defaultMaximum,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			File:      "",
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// Load layers defaults, the TOML file, the .env file, the process
// environment and finally flags, then validates the result.
func Load(opts LoadOptions) (Config, LoadReport, error) {
	cfg := DefaultConfig()
	report := LoadReport{}

	configPath, err := resolveConfigPath(opts)
	if err != nil {
		return Config{}, report, fmt.Errorf("resolve config path: %w", err)
	}
	report.ConfigPath = configPath
	loaded, err := loadAndApplyFile(configPath, &cfg)
	if err != nil {
		return Config{}, report, err
	}
	report.ConfigLoaded = loaded

	if dotenvPath := resolveDotenvPath(opts); dotenvPath != "" {
		values, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			opts.dotenv = values
			report.DotenvPath = dotenvPath
			for key := range values {
				if strings.HasPrefix(key, envPrefix) {
					report.DotenvKeys = append(report.DotenvKeys, key)
				}
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, report, fmt.Errorf("%w: read dotenv file %q: %v", ErrInvalidConfig, dotenvPath, err)
		}
	}

	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, report, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if cfg.Store.Path == "" {
		home, err := medstockHome(opts)
		if err != nil {
			return Config{}, report, fmt.Errorf("resolve store path: %w", err)
		}
		cfg.Store.Path = filepath.Join(home, defaultStoreFile)
	}

	if err := validate(cfg); err != nil {
		return Config{}, report, err
	}

	return cfg, report, nil
}

type rawConfig struct {
	Store   *rawStore   `toml:"store"`
	Alerts  *rawAlerts  `toml:"alerts"`
	Logging *rawLogging `toml:"logging"`
}

type rawStore struct {
	Path     *string `toml:"path"`
	SeedDemo *bool   `toml:"seed_demo"`
}

type rawAlerts struct {
	ExpiryWindowDays *int `toml:"expiry_window_days"`
	DefaultMinimum   *int `toml:"default_minimum"`
	DefaultMaximum   *int `toml:"default_maximum"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

func loadAndApplyFile(path string, cfg *Config) (bool, error) {
	if path == "" {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false, fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}

	applyRawConfig(cfg, raw)
	return true, nil
}

func applyRawConfig(cfg *Config, raw rawConfig) {
	if raw.Store != nil {
		setString(raw.Store.Path, &cfg.Store.Path)
		setBool(raw.Store.SeedDemo, &cfg.Store.SeedDemo)
	}

	if raw.Alerts != nil {
		setInt(raw.Alerts.ExpiryWindowDays, &cfg.Alerts.ExpiryWindowDays)
		setInt(raw.Alerts.DefaultMinimum, &cfg.Alerts.DefaultMinimum)
		setInt(raw.Alerts.DefaultMaximum, &cfg.Alerts.DefaultMaximum)
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}
}

const envPrefix = "MEDSTOCK_"

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "MEDSTOCK_STORE_PATH"); ok {
		cfg.Store.Path = value
	}
	if err := envBool(opts, "MEDSTOCK_SEED_DEMO", &cfg.Store.SeedDemo); err != nil {
		return err
	}

	if err := envInt(opts, "MEDSTOCK_ALERTS_EXPIRY_WINDOW_DAYS", &cfg.Alerts.ExpiryWindowDays); err != nil {
		return err
	}
	if err := envInt(opts, "MEDSTOCK_ALERTS_DEFAULT_MINIMUM", &cfg.Alerts.DefaultMinimum); err != nil {
		return err
	}
	if err := envInt(opts, "MEDSTOCK_ALERTS_DEFAULT_MAXIMUM", &cfg.Alerts.DefaultMaximum); err != nil {
		return err
	}

	if value, ok := lookupEnv(opts, "MEDSTOCK_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "MEDSTOCK_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if err := envInt(opts, "MEDSTOCK_LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB); err != nil {
		return err
	}
	if err := envInt(opts, "MEDSTOCK_LOG_MAX_FILES", &cfg.Logging.MaxFiles); err != nil {
		return err
	}

	return nil
}

func envInt(opts LoadOptions, key string, target *int) error {
	value, ok := lookupEnv(opts, key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
	}
	*target = parsed
	return nil
}

func envBool(opts LoadOptions, key string, target *bool) error {
	value, ok := lookupEnv(opts, key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
	}
	*target = parsed
	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	if flags.StorePath != nil && *flags.StorePath != "" {
		cfg.Store.Path = *flags.StorePath
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.SeedDemo != nil {
		cfg.Store.SeedDemo = *flags.SeedDemo
	}
}

func validate(cfg Config) error {
	if cfg.Alerts.ExpiryWindowDays <= 0 || cfg.Alerts.ExpiryWindowDays > maxExpiryWindowDays {
		return fmt.Errorf("%w: alerts.expiry_window_days must be between 1 and %d", ErrInvalidConfig, maxExpiryWindowDays)
	}
	if cfg.Alerts.DefaultMinimum < 0 {
		return fmt.Errorf("%w: alerts.default_minimum must not be negative", ErrInvalidConfig)
	}
	if cfg.Alerts.DefaultMaximum <= 0 || cfg.Alerts.DefaultMaximum < cfg.Alerts.DefaultMinimum {
		return fmt.Errorf("%w: alerts.default_maximum must be positive and not below alerts.default_minimum", ErrInvalidConfig)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: logging.level %q is not one of debug, info, warn, error", ErrInvalidConfig, cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxFiles < 0 {
		return fmt.Errorf("%w: logging rotation limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

func setString(raw *string, target *string) {
	if raw == nil {
		return
	}
	*target = *raw
}

func setBool(raw *bool, target *bool) {
	if raw == nil {
		return
	}
	*target = *raw
}

func setInt(raw *int, target *int) {
	if raw == nil {
		return
	}
	*target = *raw
}

// WriteDefault writes cfg as TOML to path unless a file already exists
// there. It reports whether it wrote anything.
func WriteDefault(path string, cfg Config) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("%w: config path is empty", ErrInvalidConfig)
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file %q: %w", path, err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, fmt.Errorf("write config file %q: %w", path, err)
	}
	return true, nil
}

func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	if value, ok := lookupEnv(opts, "MEDSTOCK_CONFIG_PATH"); ok {
		return value, nil
	}
	return defaultConfigPath(opts)
}

func resolveDotenvPath(opts LoadOptions) string {
	if opts.DotenvPath != "" {
		return opts.DotenvPath
	}
	if value, ok := lookupEnv(opts, "MEDSTOCK_DOTENV"); ok {
		return value
	}
	return ".env"
}

// lookupEnv prefers explicit values, then the process environment, then the
// .env file.
func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		if value, ok := opts.Env[key]; ok {
			return value, true
		}
	}
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	if opts.dotenv != nil {
		if value, ok := opts.dotenv[key]; ok {
			return value, true
		}
	}
	return "", false
}

func medstockHome(opts LoadOptions) (string, error) {
	if value, ok := lookupEnv(opts, "MEDSTOCK_HOME"); ok {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Medstock"), nil
	}

	dataHome := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := lookupEnv(opts, "XDG_DATA_HOME"); ok && xdgDataHome != "" {
		dataHome = xdgDataHome
	}
	return filepath.Join(dataHome, "medstock"), nil
}

func defaultConfigPath(opts LoadOptions) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Medstock", "config.toml"), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := lookupEnv(opts, "XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "medstock", "config.toml"), nil
}
