package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/teranos/catalogix/errors"
)

const (
	envPrefix      = "CATALOGIX"
	configFileName = "am.toml"
	systemConfig   = "/etc/catalogix/am.toml"
)

// Load resolves configuration from defaults, config files and environment.
func Load() (*Config, error) {
	return LoadWithViper(NewViper())
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path on top of the
// defaults. Environment variables are not consulted.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// NewViper builds a Viper instance with defaults, merged config files and
// environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)

	SetDefaults(v)

	wd, _ := os.Getwd()
	mergeConfigFiles(v, ConfigFiles(wd))
	return v
}

// ConfigFiles lists the config files that exist, lowest precedence first:
// system, user (~/.catalogix/am.toml), then the nearest project am.toml
// found walking up from dir.
func ConfigFiles(dir string) []string {
	var candidates []string
	candidates = append(candidates, systemConfig)
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".catalogix", configFileName))
	}
	if project := findProjectConfig(dir); project != "" {
		candidates = append(candidates, project)
	}

	var found []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}
	return found
}

// findProjectConfig walks up from dir looking for am.toml.
// Returns "" when none is found before the filesystem root.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges each file into the config layer in order, so later
// files win and environment variables still override all of them.
func mergeConfigFiles(v *viper.Viper, paths []string) {
	for _, path := range paths {
		fileViper := viper.New()
		fileViper.SetConfigFile(path)
		fileViper.SetConfigType("toml")

		if err := fileViper.ReadInConfig(); err != nil {
			continue
		}
		_ = v.MergeConfigMap(fileViper.AllSettings())
	}
}
