// Package config provides a reusable loader for scrapd/scrapctl
// configuration files and environment variables.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a scrapd node or scrapctl
// invocation. It mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Identity struct {
		Role           string `mapstructure:"role" json:"role"` // operator, commander, executor, verifier
		PrivateKeyFile string `mapstructure:"private_key_file" json:"private_key_file"`
		OperatorPubkey string `mapstructure:"operator_pubkey" json:"operator_pubkey"` // hex, x-only
		ExecutorPubkey string `mapstructure:"executor_pubkey" json:"executor_pubkey"` // hex, x-only
	} `mapstructure:"identity" json:"identity"`

	Listen struct {
		UDPAddr string `mapstructure:"udp_addr" json:"udp_addr"`
		HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`
	} `mapstructure:"listen" json:"listen"`

	Replay struct {
		SeenFile    string `mapstructure:"seen_file" json:"seen_file"`
		RevokedFile string `mapstructure:"revoked_file" json:"revoked_file"`
	} `mapstructure:"replay" json:"replay"`

	Settlement struct {
		DefaultTimeoutBlocks uint32 `mapstructure:"default_timeout_blocks" json:"default_timeout_blocks"`
		MaxAmountSats        uint64 `mapstructure:"max_amount_sats" json:"max_amount_sats"`
	} `mapstructure:"settlement" json:"settlement"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional .env overlay

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge %s config: %w", env, err)
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SCRAP_ENV environment variable.
// An unset or empty SCRAP_ENV loads only the default configuration.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv("SCRAP_ENV"))
}
