package capabilities

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapabilityTagsEveryLineWithModuleName(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	cap := NewLogCapability("linkify", logger)
	cap.Info("issue filed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "linkify", line["module"])
	assert.Equal(t, "issue filed", line["message"])
}

func TestLogCapabilityLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
	cap := NewLogCapability("mastodon", logger)

	cap.Warn("rate limited")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
}
