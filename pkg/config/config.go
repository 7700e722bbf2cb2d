package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/rbxdom/pkg/binary"
)

// Config represents the rbxdom configuration
type Config struct {
	DataDir    string     `yaml:"data_dir" toml:"data_dir"`
	Port       int        `yaml:"port" toml:"port"`
	Bind       string     `yaml:"bind" toml:"bind"`
	Security   Security   `yaml:"security" toml:"security"`
	Reflection Reflection `yaml:"reflection" toml:"reflection"`
	Encoding   Encoding   `yaml:"encoding" toml:"encoding"`
	Limits     Limits     `yaml:"limits" toml:"limits"`
	Logging    Logging    `yaml:"logging" toml:"logging"`
}

// Security contains security-related configuration
type Security struct {
	APIKey string `yaml:"api_key" toml:"api_key"`
}

// Reflection selects the reflection database. An empty DumpPath uses the
// embedded table.
type Reflection struct {
	DumpPath string `yaml:"dump_path" toml:"dump_path"`
}

// Encoding contains encoder settings
type Encoding struct {
	Compression string `yaml:"compression" toml:"compression"`
}

// Limits bounds decoder resource use
type Limits struct {
	MaxChunkBytes int `yaml:"max_chunk_bytes" toml:"max_chunk_bytes"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Security: Security{
			APIKey: "auto",
		},
		Encoding: Encoding{
			Compression: binary.CompressionLZ4.String(),
		},
		Limits: Limits{
			MaxChunkBytes: binary.DefaultMaxChunkBytes,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from the specified path. Files ending in
// .toml are read as TOML, everything else as YAML. Unset fields keep their
// defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = []byte(sb.String())
	} else {
		var err error
		if data, err = yaml.Marshal(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, err := binary.ParseCompression(c.Encoding.Compression); err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}
	if c.Limits.MaxChunkBytes < 0 {
		return fmt.Errorf("invalid max_chunk_bytes: %d", c.Limits.MaxChunkBytes)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	return nil
}

// Compression returns the configured chunk compression.
func (c *Config) Compression() binary.Compression {
	compression, err := binary.ParseCompression(c.Encoding.Compression)
	if err != nil {
		return binary.CompressionLZ4
	}
	return compression
}

// BinaryLimits returns the configured decoder limits.
func (c *Config) BinaryLimits() binary.Limits {
	limits := binary.DefaultLimits()
	if c.Limits.MaxChunkBytes > 0 {
		limits.MaxChunkBytes = c.Limits.MaxChunkBytes
	}
	return limits
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a new configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}
	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./rbxdom.yaml"
	}
	return filepath.Join(homeDir, ".config", "rbxdom", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
