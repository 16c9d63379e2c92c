package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/jmaptodo/internal/config"
)

func TestNewWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "WARN"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("call", "q").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "q", line["call"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Pretty: true}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	fallback := zerolog.Nop()
	assert.Same(t, &fallback, FromContext(context.Background(), &fallback))

	var buf bytes.Buffer
	attached := zerolog.New(&buf)
	ctx := attached.WithContext(context.Background())
	FromContext(ctx, &fallback).Info().Msg("via context")
	assert.Contains(t, buf.String(), "via context")
}
