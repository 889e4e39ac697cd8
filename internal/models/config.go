package models

import "time"

// Config represents the main configuration
type Config struct {
	Log          LogConfig          `mapstructure:"log" toml:"log"`
	Rules        RulesConfig        `mapstructure:"rules" toml:"rules"`
	HTTP         HTTPConfig         `mapstructure:"http" toml:"http"`
	Lists        []FilterList       `mapstructure:"lists" toml:"lists" validate:"dive"`
	Layout       LayoutConfig       `mapstructure:"layout" toml:"layout"`
	Features     FeatureConfig      `mapstructure:"features" toml:"features"`
	Zoom         ZoomConfig         `mapstructure:"zoom" toml:"zoom"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity" toml:"connectivity"`
	Storage      StorageConfig      `mapstructure:"storage" toml:"storage"`
	Browser      BrowserConfig      `mapstructure:"browser" toml:"browser"`
	Metrics      MetricsConfig      `mapstructure:"metrics" toml:"metrics"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" toml:"format" validate:"oneof=console json"`
}

// RulesConfig locates the filter rule files
type RulesConfig struct {
	Dir         string `mapstructure:"dir" toml:"dir" validate:"required"`
	DefaultFile string `mapstructure:"default_file" toml:"default_file" validate:"required"`
	CustomFile  string `mapstructure:"custom_file" toml:"custom_file" validate:"required"`
	Watch       bool   `mapstructure:"watch" toml:"watch"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
	Retries int           `mapstructure:"retries" toml:"retries" validate:"min=0"`
}

// FilterList represents a single remote filter list
type FilterList struct {
	Name    string `mapstructure:"name" toml:"name" validate:"required"`
	URL     string `mapstructure:"url" toml:"url" validate:"required,url"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// LayoutConfig holds the chrome heights reserved above the content area
type LayoutConfig struct {
	TitlebarHeight int `mapstructure:"titlebar_height" toml:"titlebar_height" validate:"min=0"`
	TabbarHeight   int `mapstructure:"tabbar_height" toml:"tabbar_height" validate:"min=0"`
}

// TopInset is the total height occupied by the titlebar and tab strip.
func (l LayoutConfig) TopInset() int {
	return l.TitlebarHeight + l.TabbarHeight
}

// FeatureConfig holds the startup state of request filtering
type FeatureConfig struct {
	Adblock   bool `mapstructure:"adblock" toml:"adblock"`
	DataSaver bool `mapstructure:"data_saver" toml:"data_saver"`
}

// ZoomConfig holds the zoom increment
type ZoomConfig struct {
	Step float64 `mapstructure:"step" toml:"step" validate:"gt=0"`
}

// ConnectivityConfig configures the online probe
type ConnectivityConfig struct {
	Hosts   []string      `mapstructure:"hosts" toml:"hosts" validate:"dive,hostname_port"`
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout" validate:"gt=0"`
}

// StorageConfig locates history and session files
type StorageConfig struct {
	Dir              string        `mapstructure:"dir" toml:"dir" validate:"required"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval" toml:"autosave_interval"`
	HistoryLimit     int           `mapstructure:"history_limit" toml:"history_limit" validate:"min=0"`
}

// BrowserConfig configures the headless rendering engine
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless" toml:"headless"`
	ExecPath string `mapstructure:"exec_path" toml:"exec_path"`
	Width    int    `mapstructure:"width" toml:"width" validate:"gt=0"`
	Height   int    `mapstructure:"height" toml:"height" validate:"gt=0"`
}

// MetricsConfig configures the prometheus endpoint
type MetricsConfig struct {
	Listen string `mapstructure:"listen" toml:"listen"`
}

// EnabledLists returns only enabled filter lists
func (c *Config) EnabledLists() []FilterList {
	var enabled []FilterList
	for _, l := range c.Lists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Rules: RulesConfig{
			Dir:         "./data/rules",
			DefaultFile: "adblock-rules.txt",
			CustomFile:  "adblock-custom.txt",
		},
		HTTP:   HTTPConfig{Timeout: 30 * time.Second, Retries: 3},
		Layout: LayoutConfig{TitlebarHeight: 40, TabbarHeight: 45},
		Features: FeatureConfig{
			Adblock: true,
		},
		Zoom: ZoomConfig{Step: 0.5},
		Connectivity: ConnectivityConfig{
			Hosts:   []string{"1.1.1.1:443", "8.8.8.8:53"},
			Timeout: 2 * time.Second,
		},
		Storage: StorageConfig{
			Dir:              "./data",
			AutosaveInterval: 30 * time.Second,
			HistoryLimit:     5000,
		},
		Browser: BrowserConfig{Headless: true, Width: 1280, Height: 800},
		Lists: []FilterList{
			{Name: "easylist", URL: "https://easylist.to/easylist/easylist.txt", Enabled: false},
			{Name: "easyprivacy", URL: "https://easylist.to/easylist/easyprivacy.txt", Enabled: false},
			{Name: "peter-lowe", URL: "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=adblockplus&mimetype=plaintext", Enabled: false},
		},
	}
}
