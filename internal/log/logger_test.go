package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "warn", "json")

	logger.Info().Msg("hidden")
	logger.Warn().Str("user_id", "u1").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["message"])
	require.Equal(t, "u1", line["user_id"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	require.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
}
