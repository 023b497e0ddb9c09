package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrakanya/Simhasth-X8/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "v1", cfg.BuildTag)
	assert.Equal(t, "/api/", cfg.Classifier.APIPrefix)
	assert.Contains(t, cfg.Precache.Bundles, "bateshwar")
}

func TestValidateRejectsMissingBuildTag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildTag = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestValidateRejectsReservedBuildTagCharacters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildTag = "v1.2"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRelativeOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Origin.BaseURL = "/not/absolute"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tiers.DynamicCeilingBytes = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresNATSSettingsWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.ControlSubject = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateDefaultsFetchConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Precache.FetchConcurrency = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Precache.FetchConcurrency)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	yaml := `
build_tag: v7
origin:
  base_url: https://api.simhasth.example
  timeout: 5s
tiers:
  dynamic_ceiling_bytes: 1048576
`
	path := filepath.Join(t.TempDir(), "edge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v7", cfg.BuildTag)
	assert.Equal(t, "https://api.simhasth.example", cfg.Origin.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Origin.Timeout)
	assert.EqualValues(t, 1048576, cfg.Tiers.DynamicCeilingBytes)
	// Untouched fields keep defaults.
	assert.Equal(t, "/api/", cfg.Classifier.APIPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Tiers.GovernorInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build_tag: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
