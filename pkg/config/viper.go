// Package config initializes the global viper instance behind the CLI.
// It registers defaults, enables BBB_-prefixed environment overrides, and
// reads an optional config file; internal/config.FromViper decodes the
// result into the typed configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	internalconfig "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/config"
)

// InitConfig prepares the global viper instance. With an empty path a
// config.yaml is searched in the working directory, ./etc, and
// $HOME/.bbbscraper; a missing file there is fine, defaults and
// environment variables carry the run. An explicit path must exist.
func InitConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./etc")
		viper.AddConfigPath("$HOME/.bbbscraper")
	}

	internalconfig.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("BBB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
