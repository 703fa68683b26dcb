// Package config locates the files of a portfolio and the settings of the
// command line.
//
// Values come from the defaults, then an optional YAML file, then the
// FOLIO_* environment variables. Command line flags are applied last by the
// caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up in the data
// directory.
const FileName = "folio.yaml"

// Config holds the locations and settings. Relative file paths are relative
// to Dir.
type Config struct {
	Dir               string `yaml:"dir"`
	LogFile           string `yaml:"log_file"`
	StartingStateFile string `yaml:"starting_state_file"`
	HistoriesDir      string `yaml:"histories_dir"`
	CacheFile         string `yaml:"cache_file"`
	Currency          string `yaml:"currency"`
	LogLevel          string `yaml:"log_level"`
}

// Default returns the default configuration rooted in dir.
func Default(dir string) Config {
	return Config{
		Dir:               dir,
		LogFile:           "events.jsonl",
		StartingStateFile: "starting_state.json",
		HistoriesDir:      "histories",
		CacheFile:         "cache.db",
		Currency:          "USD",
		LogLevel:          "info",
	}
}

// Load returns the configuration read from file. An empty file name means
// folio.yaml in the data directory, which may not exist.
func Load(file string) (Config, error) {
	c := Default(getEnv("FOLIO_DIR", "data"))
	required := file != ""
	if !required {
		file = filepath.Join(c.Dir, FileName)
	}
	b, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("invalid configuration %q: %w", file, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("cannot read configuration: %w", err)
	}
	c.applyEnv()
	return c, c.Validate()
}

func (c *Config) applyEnv() {
	c.Dir = getEnv("FOLIO_DIR", c.Dir)
	c.LogFile = getEnv("FOLIO_LOG_FILE", c.LogFile)
	c.StartingStateFile = getEnv("FOLIO_STARTING_STATE", c.StartingStateFile)
	c.HistoriesDir = getEnv("FOLIO_HISTORIES_DIR", c.HistoriesDir)
	c.CacheFile = getEnv("FOLIO_CACHE_FILE", c.CacheFile)
	c.Currency = getEnv("FOLIO_CURRENCY", c.Currency)
	c.LogLevel = getEnv("FOLIO_LOG_LEVEL", c.LogLevel)
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("configuration: dir is empty")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("configuration: invalid currency %q", c.Currency)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the log level.
func (c Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("configuration: invalid log level %q", c.LogLevel)
	}
	return l, nil
}

func (c Config) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// LogPath returns the path of the event log.
func (c Config) LogPath() string { return c.path(c.LogFile) }

// StartingStatePath returns the path of the starting state.
func (c Config) StartingStatePath() string { return c.path(c.StartingStateFile) }

// HistoriesPath returns the directory of the alternate histories.
func (c Config) HistoriesPath() string { return c.path(c.HistoriesDir) }

// CachePath returns the path of the relational cache.
func (c Config) CachePath() string { return c.path(c.CacheFile) }

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Environ returns the FOLIO_* variables describing c, with absolute paths,
// so that a child process loading its configuration from the environment
// resolves the same files.
func (c Config) Environ() ([]string, error) {
	abs := func(p string) (string, error) {
		a, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("configuration: %w", err)
		}
		return a, nil
	}
	vars := []struct{ key, path string }{
		{"FOLIO_DIR", c.Dir},
		{"FOLIO_LOG_FILE", c.LogPath()},
		{"FOLIO_STARTING_STATE", c.StartingStatePath()},
		{"FOLIO_HISTORIES_DIR", c.HistoriesPath()},
		{"FOLIO_CACHE_FILE", c.CachePath()},
	}
	env := make([]string, 0, len(vars)+2)
	for _, v := range vars {
		p, err := abs(v.path)
		if err != nil {
			return nil, err
		}
		env = append(env, v.key+"="+p)
	}
	return append(env, "FOLIO_CURRENCY="+c.Currency, "FOLIO_LOG_LEVEL="+c.LogLevel), nil
}
