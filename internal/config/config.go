// Package config loads the updater configuration from defaults, a config
// file, UPKEEP_* environment variables and command-line overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyAppName       = "app.name"
	KeyAppExecutable = "app.executable"
	KeyAppInstallDir = "app.install_dir"
	KeyAppVersion    = "app.version"

	KeyBaseURL         = "update.base_url"
	KeyManifestPath    = "update.manifest_path"
	KeyTimeout         = "update.timeout"
	KeyChunkSize       = "update.chunk_size"
	KeyAutoCheck       = "update.auto_check"
	KeyCheckInterval   = "update.check_interval"
	KeyInitialDelay    = "update.initial_delay"
	KeyDecisionTimeout = "update.decision_timeout"
	KeyBackupRetain    = "update.backup_retain"
	KeyHandoffDelay    = "update.handoff_delay"
	KeyHelperWait      = "update.helper_wait"
	KeyElevate         = "update.elevate"
	KeyCacheDir        = "update.cache_dir"

	KeyStatePath = "state.path"

	KeyLogLevel = "log.level"
	KeyLogFile  = "log.file"
)

const (
	envPrefix      = "UPKEEP"
	defaultAppName = "app"
	// ConsoleLog routes logging to stderr instead of a file.
	ConsoleLog = "console"
)

// Config is the resolved configuration.
type Config struct {
	App    AppConfig    `mapstructure:"app" yaml:"app" json:"app"`
	Update UpdateConfig `mapstructure:"update" yaml:"update" json:"update"`
	State  StateConfig  `mapstructure:"state" yaml:"state" json:"state"`
	Log    LogConfig    `mapstructure:"log" yaml:"log" json:"log"`

	// File is the config file that was merged, if any.
	File string `mapstructure:"-" yaml:"file,omitempty" json:"file,omitempty"`
}

// AppConfig describes the application being kept up to date.
type AppConfig struct {
	Name       string `mapstructure:"name" yaml:"name" json:"name"`
	Executable string `mapstructure:"executable" yaml:"executable" json:"executable"`
	InstallDir string `mapstructure:"install_dir" yaml:"install_dir" json:"install_dir"`
	Version    string `mapstructure:"version" yaml:"version,omitempty" json:"version,omitempty"`
}

// UpdateConfig controls checking, downloading and installing.
type UpdateConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	ManifestPath    string        `mapstructure:"manifest_path" yaml:"manifest_path" json:"manifest_path"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ChunkSize       int           `mapstructure:"chunk_size" yaml:"chunk_size" json:"chunk_size"`
	AutoCheck       bool          `mapstructure:"auto_check" yaml:"auto_check" json:"auto_check"`
	CheckInterval   time.Duration `mapstructure:"check_interval" yaml:"check_interval" json:"check_interval"`
	InitialDelay    time.Duration `mapstructure:"initial_delay" yaml:"initial_delay" json:"initial_delay"`
	DecisionTimeout time.Duration `mapstructure:"decision_timeout" yaml:"decision_timeout" json:"decision_timeout"`
	BackupRetain    int           `mapstructure:"backup_retain" yaml:"backup_retain" json:"backup_retain"`
	HandoffDelay    time.Duration `mapstructure:"handoff_delay" yaml:"handoff_delay" json:"handoff_delay"`
	HelperWait      time.Duration `mapstructure:"helper_wait" yaml:"helper_wait" json:"helper_wait"`
	Elevate         bool          `mapstructure:"elevate" yaml:"elevate" json:"elevate"`
	CacheDir        string        `mapstructure:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
}

// StateConfig locates the persisted updater state.
type StateConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	File  string `mapstructure:"file" yaml:"file" json:"file"`
}

type loadSettings struct {
	configFile string
	overrides  map[string]interface{}
	executable string
	configDir  string
}

// Option configures Load.
type Option func(*loadSettings)

// WithConfigFile uses path instead of searching the standard locations.
func WithConfigFile(path string) Option {
	return func(s *loadSettings) {
		s.configFile = path
	}
}

// WithOverrides applies values, typically from CLI flags, above everything else.
func WithOverrides(overrides map[string]interface{}) Option {
	return func(s *loadSettings) {
		s.overrides = overrides
	}
}

// WithExecutable overrides the path used to derive executable defaults.
func WithExecutable(path string) Option {
	return func(s *loadSettings) {
		s.executable = path
	}
}

// WithConfigDir overrides the per-user configuration directory.
func WithConfigDir(dir string) Option {
	return func(s *loadSettings) {
		s.configDir = dir
	}
}

// Load resolves the configuration using the precedence:
// defaults < config file < environment variables < overrides.
func Load(opts ...Option) (*Config, error) {
	settings := loadSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("determine executable: %w", err)
		}
		settings.executable = exe
	}
	if settings.configDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("determine user config dir: %w", err)
		}
		settings.configDir = dir
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := FindConfigFile(settings.configFile, settings.configDir, filepath.Dir(settings.executable))
	if err != nil {
		return nil, err
	}
	if err := mergeConfigFile(v, path); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	for k, val := range settings.overrides {
		v.Set(k, val)
	}

	cfg := &Config{File: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyPathDefaults(cfg, settings)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAppName, defaultAppName)
	v.SetDefault(KeyAppExecutable, "")
	v.SetDefault(KeyAppInstallDir, "")
	v.SetDefault(KeyAppVersion, "")

	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyManifestPath, "versions/latest.json")
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyChunkSize, 8*1024)
	v.SetDefault(KeyAutoCheck, true)
	v.SetDefault(KeyCheckInterval, 2*time.Hour)
	v.SetDefault(KeyInitialDelay, 3*time.Second)
	v.SetDefault(KeyDecisionTimeout, 10*time.Minute)
	v.SetDefault(KeyBackupRetain, 1)
	v.SetDefault(KeyHandoffDelay, time.Second)
	v.SetDefault(KeyHelperWait, 3*time.Second)
	v.SetDefault(KeyElevate, true)
	v.SetDefault(KeyCacheDir, "")

	v.SetDefault(KeyStatePath, "")

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
}

// applyPathDefaults fills values that depend on the app name or executable.
func applyPathDefaults(cfg *Config, settings loadSettings) {
	if cfg.App.Executable == "" {
		cfg.App.Executable = filepath.Base(settings.executable)
	}
	if cfg.App.InstallDir == "" {
		cfg.App.InstallDir = filepath.Dir(settings.executable)
	}
	appDir := filepath.Join(settings.configDir, cfg.App.Name)
	if cfg.Update.CacheDir == "" {
		cfg.Update.CacheDir = filepath.Join(os.TempDir(), cfg.App.Name, "updates")
	}
	if cfg.State.Path == "" {
		cfg.State.Path = filepath.Join(appDir, "update-state.toml")
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(appDir, "upkeep.log")
	}
}

// FindConfigFile returns explicitPath if given, else the first config file
// found in the UPKEEP_CONFIG variable, <configDir>/upkeep or exeDir.
// An empty path without error means no file exists.
func FindConfigFile(explicitPath, configDir, exeDir string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Check UPKEEP_CONFIG environment variable
	if envPath := os.Getenv(envPrefix + "_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	searchPaths := []string{filepath.Join(configDir, "upkeep")}
	if exeDir != "" {
		searchPaths = append(searchPaths, exeDir)
	}

	// File name variants
	fileNames := []string{
		"upkeep.yaml",
		"upkeep.yml",
		"upkeep.toml",
		"upkeep.json",
		"upkeep.conf",
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: reading the user's config file is the point
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	format := detectFormat(path, data)
	if format == FormatUnknown {
		return fmt.Errorf("unable to detect file format for %s", path)
	}
	raw, err := parse(data, format)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := v.MergeConfigMap(raw); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}
