// Package config loads server settings and the optional worker roster file.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/mother/pkg/queryqueue"
	"github.com/go-go-golems/mother/pkg/registry"
)

// Config is the full server configuration. Values come from an optional
// config file, MOTHER_* environment variables and defaults, in that order of
// precedence.
type Config struct {
	Addr             string                   `mapstructure:"addr"`
	DBPath           string                   `mapstructure:"db_path"`
	RosterPath       string                   `mapstructure:"roster_path"`
	ContextWindow    int                      `mapstructure:"context_window"`
	MaxConversations int                      `mapstructure:"max_conversations"`
	MaxPrimaryWords  int                      `mapstructure:"max_primary_words"`
	WorkerTimeoutSec int                      `mapstructure:"worker_timeout_sec"`
	Redis            queryqueue.RedisSettings `mapstructure:"redis"`
	Speech           SpeechConfig             `mapstructure:"speech"`
}

// SpeechConfig points at the external codec services. Empty URLs disable the
// corresponding capability.
type SpeechConfig struct {
	PrimaryURL    string `mapstructure:"primary_url"`
	FastURL       string `mapstructure:"fast_url"`
	TranscribeURL string `mapstructure:"transcribe_url"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	// every key needs a default (even an empty one) or AutomaticEnv will not
	// surface its MOTHER_* variable to Unmarshal
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "mother.db")
	v.SetDefault("roster_path", "")
	v.SetDefault("context_window", 20)
	v.SetDefault("max_conversations", 1024)
	v.SetDefault("max_primary_words", 100)
	v.SetDefault("worker_timeout_sec", 120)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.group", "mother")
	v.SetDefault("redis.consumer", "mother-1")
	v.SetDefault("speech.primary_url", "")
	v.SetDefault("speech.fast_url", "")
	v.SetDefault("speech.transcribe_url", "")
	v.SetDefault("speech.timeout_sec", 60)

	v.SetEnvPrefix("MOTHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}

type rosterFile struct {
	Workers []rosterEntry `yaml:"workers"`
}

type rosterEntry struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Type     string `yaml:"type"`
	Voice    string `yaml:"voice,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// LoadRoster reads a YAML worker roster registered at startup in addition to
// the persisted rows.
func LoadRoster(path string) ([]registry.Worker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read roster %s", path)
	}
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "config: parse roster %s", path)
	}

	out := make([]registry.Worker, 0, len(f.Workers))
	for _, e := range f.Workers {
		if strings.TrimSpace(e.Name) == "" {
			return nil, errors.Errorf("config: roster %s contains a worker without a name", path)
		}
		out = append(out, registry.Worker{
			Name:    e.Name,
			Address: e.Address,
			Type:    e.Type,
			VoiceID: e.Voice,
			Enabled: !e.Disabled,
		})
	}
	return out, nil
}
