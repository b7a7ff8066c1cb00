package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(DEBUG, &buf)

	log.Infow("subscriber approved", "subscriberID", "abc", "days", 30)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "subscriber approved", entry["msg"])
	assert.Equal(t, "abc", entry["subscriberID"])
	assert.EqualValues(t, 30, entry["days"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(WARN, &buf)

	log.Info("hidden %d", 1)
	log.Debugw("hidden too")
	assert.Zero(t, buf.Len())

	log.Warn("visible %s", "warning")
	assert.True(t, strings.Contains(buf.String(), "visible warning"))
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(INFO, &buf).With("projectID", "p1")

	log.Errorw("boom")
	assert.Contains(t, buf.String(), `"projectID":"p1"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" error "))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}
