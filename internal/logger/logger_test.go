package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "prod", "debug", "api-server")

	log.Info().Str("doctor_id", "d-1").Msg("booked")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api-server", line["service"])
	assert.Equal(t, "d-1", line["doctor_id"])
	assert.Equal(t, "booked", line["message"])
}

func TestNew_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "prod", "nonsense", "worker")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
}
