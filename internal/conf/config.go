package conf

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultPath is the main configuration file.
	DefaultPath = "/etc/adguardhome-certinjector/config.toml"
	// DefaultDropInDir holds drop-in files applied over DefaultPath.
	DefaultDropInDir = "/etc/adguardhome-certinjector/config.toml.d/"
)

// defaultConfig contains the embedded default configuration file.
// It is the base layer applied before the main file and the drop-ins.
//
//go:embed default.toml
var defaultConfig string

// Config represents the immutable resolved configuration.
type Config struct {
	LetsEncryptDir string
	BackupSuffix   string
	LogLevel       slog.Level
	RestartUnit    string
	RestartTimeout time.Duration
}

// Update applies non-nil values from a configDTO. The DTO must come from
// parseConfigDTO, which has already validated its values.
func (c *Config) Update(dto configDTO) {
	if dto.LetsEncryptDir != nil {
		c.LetsEncryptDir = *dto.LetsEncryptDir
	}
	if dto.BackupSuffix != nil {
		c.BackupSuffix = *dto.BackupSuffix
	}
	if dto.LogLevel != nil {
		c.LogLevel, _ = ParseLevel(*dto.LogLevel)
	}
	if dto.RestartUnit != nil {
		c.RestartUnit = *dto.RestartUnit
	}
	if dto.RestartTimeout != nil {
		c.RestartTimeout, _ = time.ParseDuration(*dto.RestartTimeout)
	}
}

// ParseLevel converts one of DEBUG, INFO, WARN or ERROR to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Defaults returns the configuration defined by the embedded defaults only.
func Defaults() Config {
	var c Config
	dto, err := parseConfigDTO(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded defaults: %v", err))
	}
	c.Update(dto)
	return c
}

// ConfigSource orchestrates loading configuration from multiple sources.
// See the Read method.
type ConfigSource struct {
	Path      string
	DropInDir string
}

// Read loads and returns the complete Config by merging all layers:
// 1. Embedded defaults
// 2. Main configuration file
// 3. Drop-in files
func (cs *ConfigSource) Read() (Config, error) {
	resolved := Defaults()

	data, err := os.ReadFile(cs.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return resolved, fmt.Errorf("failed to load %s: %w", cs.Path, err)
		}
	} else {
		mainDTO, err := parseConfigDTO(string(data))
		if err != nil {
			// A present but malformed file is an error rather than
			// silently falling back to defaults.
			return resolved, fmt.Errorf("failed to parse %s: %w", cs.Path, err)
		}
		resolved.Update(mainDTO)
	}

	dropInDTOs, err := cs.parseDropInFiles()
	if err != nil {
		slog.Error("failed to load drop-in files", "error", err, "dir", cs.DropInDir)
		return resolved, err
	}
	for _, dropInDTO := range dropInDTOs {
		resolved.Update(dropInDTO)
	}

	return resolved, nil
}

type configDTO struct {
	LetsEncryptDir *string `toml:"letsencrypt-dir"`
	BackupSuffix   *string `toml:"backup-suffix"`
	LogLevel       *string `toml:"log-level"`
	RestartUnit    *string `toml:"restart-unit"`
	RestartTimeout *string `toml:"restart-timeout"`
}

// parseConfigDTO parses and validates a TOML string into a configDTO.
func parseConfigDTO(data string) (configDTO, error) {
	var dto configDTO

	md, err := toml.Decode(data, &dto)
	if err != nil {
		return dto, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return dto, fmt.Errorf("unknown key %q", undecoded[0].String())
	}

	if dto.LogLevel != nil {
		if _, err := ParseLevel(*dto.LogLevel); err != nil {
			return dto, err
		}
	}
	if dto.BackupSuffix != nil && *dto.BackupSuffix == "" {
		return dto, fmt.Errorf("backup-suffix must not be empty")
	}
	if dto.RestartTimeout != nil {
		d, err := time.ParseDuration(*dto.RestartTimeout)
		if err != nil {
			return dto, fmt.Errorf("invalid restart-timeout: %w", err)
		}
		if d <= 0 {
			return dto, fmt.Errorf("restart-timeout must be positive, got %s", d)
		}
	}

	return dto, nil
}

// findDropInFiles finds and returns sorted paths to drop-in configuration files.
// Returns nil if the drop-in directory doesn't exist (not an error).
func (cs *ConfigSource) findDropInFiles() ([]string, error) {
	if _, err := os.Stat(cs.DropInDir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(cs.DropInDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read drop-in directory %s: %w", cs.DropInDir, err)
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		filenames = append(filenames, filepath.Join(cs.DropInDir, entry.Name()))
	}
	sort.Strings(filenames)

	return filenames, nil
}

// parseDropInFiles loads .toml files.
func (cs *ConfigSource) parseDropInFiles() ([]configDTO, error) {
	paths, err := cs.findDropInFiles()
	if err != nil {
		return nil, err
	}

	var dtos []configDTO
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		dto, err := parseConfigDTO(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		dtos = append(dtos, dto)
	}

	return dtos, nil
}
