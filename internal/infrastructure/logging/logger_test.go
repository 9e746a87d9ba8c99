package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	logger := New("warn", "json", &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("owner", "owner-1").Msg("visible")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "visible", line["message"])
	assert.Equal(t, "owner-1", line["owner"])
	assert.Contains(t, line, "time")

	buf.Reset()
	logger = New("bogus", "console", &buf)
	logger.Info().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
