package logging_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3scan/internal/logging"
)

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "warn", false)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("rpc", "http://node").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "rpc=")
	assert.NotContains(t, out, "\x1b[", "no colour when not writing to a terminal")
}

func TestNewVerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "error", true)
	require.NoError(t, err)

	log.Debug().Msg("details")
	assert.Contains(t, buf.String(), "details")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := logging.New(&bytes.Buffer{}, "loud", false)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)

	lvl, err = logging.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}
