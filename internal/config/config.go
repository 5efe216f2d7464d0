package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RunConfig holds configuration for the run command, merged from flags,
// environment, and config file.
type RunConfig struct {
	ScenarioPath            string
	Journal                 string
	PGDSN                   string
	RPCURL                  string
	ChainID                 uint64
	WrappedNative           string
	ClearOperatorOnTransfer bool
	StateName               string
	MaxRetries              int
	RetryBackoff            time.Duration
	LogLevel                string
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"journal":                    "./data/operations.jsonl",
		"chain-id":                   uint64(1),
		"clear-operator-on-transfer": true,
		"state-name":                 "scenario",
		"max-retries":                5,
		"retry-backoff":              500 * time.Millisecond,
		"log-level":                  "info",
	})
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		ScenarioPath:            v.GetString("scenario"),
		Journal:                 v.GetString("journal"),
		PGDSN:                   v.GetString("pg-dsn"),
		RPCURL:                  v.GetString("rpc"),
		ChainID:                 v.GetUint64("chain-id"),
		WrappedNative:           v.GetString("wrapped-native"),
		ClearOperatorOnTransfer: v.GetBool("clear-operator-on-transfer"),
		StateName:               v.GetString("state-name"),
		MaxRetries:              v.GetInt("max-retries"),
		RetryBackoff:            v.GetDuration("retry-backoff"),
		LogLevel:                v.GetString("log-level"),
	}, nil
}

// DescribeConfig holds configuration for the describe command.
type DescribeConfig struct {
	PGDSN    string
	RPCURL   string
	TokenID  uint64
	LogLevel string
}

// LoadDescribe merges config file, environment variables, and flags into
// DescribeConfig.
func LoadDescribe(cfgFile string, flags *pflag.FlagSet) (DescribeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"log-level": "info",
	})
	if err != nil {
		return DescribeConfig{}, err
	}

	return DescribeConfig{
		PGDSN:    v.GetString("pg-dsn"),
		RPCURL:   v.GetString("rpc"),
		TokenID:  v.GetUint64("token-id"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
