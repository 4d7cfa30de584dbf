package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file. It is built once
// at process start and passed by value into the operations manager.
type Config struct {
	Remote    RemoteConfig    `mapstructure:"remote"    yaml:"remote"`
	Workspace string          `mapstructure:"workspace" yaml:"workspace"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Database  DatabaseConfig  `mapstructure:"database"  yaml:"database"`
	Vault     VaultConfig     `mapstructure:"vault"     yaml:"vault"`
	Targets   []Target        `mapstructure:"targets"   yaml:"targets"`
}

// RemoteConfig names the rclone remote and the base path all backup
// directories live under.
type RemoteConfig struct {
	Name     string `mapstructure:"name"      yaml:"name"`
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// RetentionConfig specifies how many backup directories to keep remotely.
type RetentionConfig struct {
	KeepLast int `mapstructure:"keep_last" yaml:"keep_last"`
}

// DatabaseConfig holds the database to dump. Password is an inline fallback;
// when Vault is configured the password comes from there instead and this
// field stays empty.
type DatabaseConfig struct {
	User     string `mapstructure:"user"     yaml:"user"`
	Name     string `mapstructure:"name"     yaml:"name"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault. Vault is used
// only when Address is set.
type VaultConfig struct {
	Address         string `mapstructure:"address"          yaml:"address,omitempty"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path,omitempty"`
}

// Target is one filesystem path included in the file archive. Existence is
// re-checked at run time; missing paths are skipped with a warning.
type Target struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"`
}

// Load reads the configuration from the given YAML file using Viper and
// unmarshals it into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("remote.name", "gdrive")
	v.SetDefault("remote.base_path", "backups/automated_server_backups")
	v.SetDefault("workspace", "/root/drive-backup-temp")
	v.SetDefault("retention.keep_last", 14)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.Remote.Name == "" {
		return fmt.Errorf("%w: remote.name is required", ErrValidateConfig)
	}
	if c.Remote.BasePath == "" {
		return fmt.Errorf("%w: remote.base_path is required", ErrValidateConfig)
	}
	if c.Retention.KeepLast < 1 {
		return fmt.Errorf("%w: retention.keep_last must be at least 1", ErrValidateConfig)
	}
	if c.Database.Name != "" && c.Database.User == "" {
		return fmt.Errorf("%w: database.user is required when database.name is set", ErrValidateConfig)
	}
	return nil
}
