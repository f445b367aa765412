package telemetry_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/telemetry"
)

func TestWithResourceAddsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger(&buf, "info")
	logger.WithResource("Test/Null", "first").Info("invoking resource")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "Test/Null", decoded["resource_type"])
	require.Equal(t, "first", decoded["resource_name"])
	require.Equal(t, "invoking resource", decoded["message"])
}

func TestInfoIsSuppressedBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger(&buf, "warn")
	logger.Info("should not appear")
	require.Empty(t, buf.Bytes())
}
