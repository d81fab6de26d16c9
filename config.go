package defscan

import (
	"errors"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type Config struct {
	ModsDir      string `yaml:"mods_dir" mapstructure:"mods_dir"`
	CacheFile    string `yaml:"cache_file" mapstructure:"cache_file"`
	PersistCache bool   `yaml:"persist_cache" mapstructure:"persist_cache"`
	Workers      int    `yaml:"workers" mapstructure:"workers"`
	Format       string `yaml:"format" mapstructure:"format"`
	Color        string `yaml:"color" mapstructure:"color"`
	MetricsFile  string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	return Config{
		ModsDir:      ".",
		CacheFile:    "defscan.cache",
		PersistCache: false,
		Workers:      0, // 0 means NumCPU
		Format:       "text",
		Color:        "auto",
		MetricsFile:  DefaultMetricsPath(),
	}
}

func LoadConfig(fs afero.Fs, path string, cfgFile string) (Config, error) {
	viper.Reset()
	viper.SetFs(fs)
	viper.SetConfigType("yml") // Always set the config type to yml

	// Check if cfgFile is a full path to a file
	fileInfo, statErr := fs.Stat(cfgFile)
	if statErr == nil && !fileInfo.IsDir() {
		// cfgFile is a full path to an existing file
		viper.SetConfigFile(cfgFile)
	} else {
		// Use the provided config file or default to config.yml
		if cfgFile != "" {
			// Handle case where cfgFile includes extension
			if strings.HasSuffix(cfgFile, ".yml") || strings.HasSuffix(cfgFile, ".yaml") {
				viper.SetConfigFile(cfgFile)
			} else {
				viper.SetConfigName(cfgFile)
			}
		} else {
			viper.SetConfigName("config")
		}

		viper.AddConfigPath(path)
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.defscan")
		viper.AddConfigPath("./.defscan")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return Config{}, NewConfigError("config file not found", err)
		}
		return Config{}, NewConfigError("failed loading config file", err)
	}

	defaults := DefaultConfig()
	viper.SetDefault("mods_dir", defaults.ModsDir)
	viper.SetDefault("cache_file", defaults.CacheFile)
	viper.SetDefault("persist_cache", defaults.PersistCache)
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("format", defaults.Format)
	viper.SetDefault("color", defaults.Color)
	viper.SetDefault("metrics_file", defaults.MetricsFile)

	var config Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return Config{}, NewConfigError("failed unmarshaling config file", err)
	}

	return config, nil
}
