package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	l.Debug().Msg("hidden")
	l.Info().Str("user", "alice").Msg("logged in")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "logged in", entry["message"])
	require.Equal(t, "alice", entry["user"])
	require.Equal(t, "info", entry["level"])
}

func TestNew_DevLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)

	require.Equal(t, zerolog.DebugLevel, l.GetLevel())
	l.Debug().Msg("visible")
	require.Contains(t, buf.String(), "visible")
}
