package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vibeview/internal/models"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *models.Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *models.Config) {}},
		{name: "bad log level", mutate: func(c *models.Config) { c.Log.Level = "loud" }, wantErr: "Config.Log.Level must be one of"},
		{name: "negative inset", mutate: func(c *models.Config) { c.Layout.TabbarHeight = -1 }, wantErr: "must be at least 0"},
		{name: "zero zoom step", mutate: func(c *models.Config) { c.Zoom.Step = 0 }, wantErr: "Config.Zoom.Step must be greater than 0"},
		{name: "missing rules dir", mutate: func(c *models.Config) { c.Rules.Dir = "" }, wantErr: "Config.Rules.Dir is required"},
		{name: "bad probe host", mutate: func(c *models.Config) { c.Connectivity.Hosts = []string{"no-port"} }, wantErr: "hostname_port"},
		{name: "bad list url", mutate: func(c *models.Config) { c.Lists[0].URL = "not a url" }, wantErr: "failed validation: url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.DefaultConfig()
			tt.mutate(&c)
			err := validateConfig(&c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRenderDefaultConfig(t *testing.T) {
	data, err := renderDefaultConfig()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("# vibeview configuration")))

	var decoded models.Config
	require.NoError(t, toml.Unmarshal(data, &decoded))

	def := models.DefaultConfig()
	assert.Equal(t, def.Rules, decoded.Rules)
	assert.Equal(t, def.Layout, decoded.Layout)
	assert.Equal(t, def.Connectivity, decoded.Connectivity)
	assert.Equal(t, def.Lists, decoded.Lists)
	assert.Equal(t, def.Zoom.Step, decoded.Zoom.Step)
}

func TestConfigFileAndEnvOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	path := filepath.Join(t.TempDir(), "vibeview.toml")
	data, err := renderDefaultConfig()
	require.NoError(t, err)
	require.NoError(t, writeConfigFile(path, data))

	t.Setenv("VIBEVIEW_LOG_LEVEL", "debug")
	t.Setenv("VIBEVIEW_LAYOUT_TABBAR_HEIGHT", "30")

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
	initConfig()

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30, cfg.Layout.TabbarHeight)
	assert.Equal(t, 40, cfg.Layout.TitlebarHeight)
	assert.Equal(t, 30*time.Second, cfg.Storage.AutosaveInterval)
	assert.Len(t, cfg.Lists, len(models.DefaultConfig().Lists))
	assert.NoError(t, validateConfig(&cfg))
}
