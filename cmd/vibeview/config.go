package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/bnema/vibeview/internal/models"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

const configHeader = `# vibeview configuration
#
# Durations accept Go syntax ("30s", "2m"). Every key can be overridden with a
# VIBEVIEW_ environment variable, e.g. VIBEVIEW_LOG_LEVEL=debug.

`

// setDefaults registers every scalar key of def so env overrides apply
// even without a config file.
func setDefaults(def models.Config) {
	viper.SetDefault("log.level", def.Log.Level)
	viper.SetDefault("log.format", def.Log.Format)

	viper.SetDefault("rules.dir", def.Rules.Dir)
	viper.SetDefault("rules.default_file", def.Rules.DefaultFile)
	viper.SetDefault("rules.custom_file", def.Rules.CustomFile)
	viper.SetDefault("rules.watch", def.Rules.Watch)

	viper.SetDefault("http.timeout", def.HTTP.Timeout)
	viper.SetDefault("http.retries", def.HTTP.Retries)

	viper.SetDefault("lists", def.Lists)

	viper.SetDefault("layout.titlebar_height", def.Layout.TitlebarHeight)
	viper.SetDefault("layout.tabbar_height", def.Layout.TabbarHeight)

	viper.SetDefault("features.adblock", def.Features.Adblock)
	viper.SetDefault("features.data_saver", def.Features.DataSaver)

	viper.SetDefault("zoom.step", def.Zoom.Step)

	viper.SetDefault("connectivity.hosts", def.Connectivity.Hosts)
	viper.SetDefault("connectivity.timeout", def.Connectivity.Timeout)

	viper.SetDefault("storage.dir", def.Storage.Dir)
	viper.SetDefault("storage.autosave_interval", def.Storage.AutosaveInterval)
	viper.SetDefault("storage.history_limit", def.Storage.HistoryLimit)

	viper.SetDefault("browser.headless", def.Browser.Headless)
	viper.SetDefault("browser.exec_path", def.Browser.ExecPath)
	viper.SetDefault("browser.width", def.Browser.Width)
	viper.SetDefault("browser.height", def.Browser.Height)

	viper.SetDefault("metrics.listen", def.Metrics.Listen)
}

// validateConfig checks the loaded configuration using struct tags
func validateConfig(c *models.Config) error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid config: %w", err)
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Namespace()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Namespace(), e.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Namespace(), e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Namespace(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Namespace(), e.Tag()))
		}
	}
	return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
}

// renderDefaultConfig encodes the built-in defaults as TOML
func renderDefaultConfig() ([]byte, error) {
	body, err := toml.Marshal(models.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	return append([]byte(configHeader), body...), nil
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
