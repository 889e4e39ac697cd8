package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vibeview/internal/models"
)

func TestSetupWriter(t *testing.T) {
	originalLogger := log.Logger
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(originalLevel)
	})

	var buf bytes.Buffer
	SetupWriter(models.LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("tab", "t1").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "t1", entry["tab"])
	assert.Equal(t, "shown", entry["message"])

	buf.Reset()
	SetupWriter(models.LogConfig{Level: "debug", Format: "console"}, &buf)
	log.Debug().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
