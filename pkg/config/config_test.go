package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/wakeword/pkg/dsp"
	"github.com/realtime-ai/wakeword/pkg/trigger"
)

var envKeys = []string{
	"WAKEWORD_PRESET", "WAKEWORD_MODEL_PATH", "WAKEWORD_POLICY", "WAKEWORD_TARGET_CLASS",
	"WAKEWORD_THRESHOLD", "WAKEWORD_HISTORY", "WAKEWORD_CONFIRM_CYCLES", "WAKEWORD_COOLDOWN_CYCLES",
	"WAKEWORD_PADDING", "WAKEWORD_DCT_NORM", "WAKEWORD_CHUNK_SIZE", "WAKEWORD_CONFIG",
	"MQTT_BROKER", "MQTT_TOPIC", "DEVICE_ID", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()

	assert.Equal(t, PresetCenter, cfg.Preset)
	assert.Equal(t, "center", cfg.Policy)
	assert.Equal(t, 1, cfg.TargetClass)
	assert.Equal(t, 0.75, cfg.Threshold)
	assert.Equal(t, 3, cfg.HistorySize)
	assert.Equal(t, 1, cfg.ConfirmCycles)
	assert.Equal(t, 10, cfg.CooldownCycles)
	assert.Equal(t, 2048, cfg.ChunkSize)
	assert.Equal(t, "wakeword/{device_id}/events", cfg.MQTTTopic)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())

	det, err := cfg.Detector()
	require.NoError(t, err)
	assert.Equal(t, trigger.DefaultConfig(), det.Trigger)
	assert.Equal(t, dsp.DefaultConfig(), det.Features)
}

func TestFromEnvSumPreset(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAKEWORD_PRESET", "sum")
	t.Setenv("WAKEWORD_COOLDOWN_CYCLES", "5")

	det, err := FromEnv().Detector()
	require.NoError(t, err)
	assert.Equal(t, trigger.PolicySumNonBackground, det.Trigger.Policy)
	assert.Equal(t, 0.5, det.Trigger.Threshold)
	assert.Equal(t, 5, det.Trigger.CooldownCycles)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAKEWORD_THRESHOLD", "0.6")
	t.Setenv("WAKEWORD_TARGET_CLASS", "2")
	t.Setenv("WAKEWORD_PADDING", "reflect")
	t.Setenv("WAKEWORD_DCT_NORM", "legacy")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	det, err := cfg.Detector()
	require.NoError(t, err)
	assert.Equal(t, 0.6, det.Trigger.Threshold)
	assert.Equal(t, 2, det.Trigger.TargetClass)
	assert.Equal(t, dsp.PaddingReflect, det.Features.Padding)
	assert.Equal(t, dsp.DCTLegacy, det.Features.DCTNorm)
}

func TestFromEnvInvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAKEWORD_THRESHOLD", "high")
	t.Setenv("WAKEWORD_HISTORY", "three")

	cfg := FromEnv()
	assert.Equal(t, 0.75, cfg.Threshold)
	assert.Equal(t, 3, cfg.HistorySize)
}

func TestDetectorRejectsBadValues(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"policy", func(c *Config) { c.Policy = "max" }},
		{"padding", func(c *Config) { c.Padding = "mirror" }},
		{"dct", func(c *Config) { c.DCTNorm = "unit" }},
		{"threshold", func(c *Config) { c.Threshold = 1.5 }},
		{"model", func(c *Config) { c.ModelPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(cfg)
			_, err := cfg.Detector()
			assert.Error(t, err)
		})
	}
}

func TestApplyPreset(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	require.NoError(t, cfg.ApplyPreset(PresetSum))
	assert.Equal(t, "sum", cfg.Policy)
	assert.Equal(t, 0.5, cfg.Threshold)

	require.NoError(t, cfg.ApplyPreset(PresetCenter))
	assert.Equal(t, 0.75, cfg.Threshold)

	assert.Error(t, cfg.ApplyPreset("loud"))
}

func TestLoadOverlaysYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "wakeword.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model_path: /models/hey.onnx\nthreshold: 0.8\nmqtt_broker: tcp://broker:1883\n"), 0o644))
	t.Setenv("WAKEWORD_CONFIG", path)
	t.Setenv("WAKEWORD_COOLDOWN_CYCLES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/models/hey.onnx", cfg.ModelPath)
	assert.Equal(t, 0.8, cfg.Threshold)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, 7, cfg.CooldownCycles)
	assert.Equal(t, "center", cfg.Policy)
}

func TestLoadMissingYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAKEWORD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	cfg := FromEnv()
	require.Error(t, cfg.Overlay(filepath.Join(t.TempDir(), "missing.yaml")))
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("threshold: [1"), 0o644))
	assert.Error(t, cfg.Overlay(bad))
}

func TestApplyPresetKeepsExplicitTriggerFields(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAKEWORD_THRESHOLD", "0.9")
	t.Setenv("WAKEWORD_COOLDOWN_CYCLES", "3")

	cfg := FromEnv()
	assert.False(t, cfg.PresetExplicit())
	require.NoError(t, cfg.ApplyPreset(PresetSum))

	det, err := cfg.Detector()
	require.NoError(t, err)
	assert.Equal(t, trigger.PolicySumNonBackground, det.Trigger.Policy)
	assert.Equal(t, 0.9, det.Trigger.Threshold)
	assert.Equal(t, 3, det.Trigger.CooldownCycles)
	assert.Equal(t, trigger.SumConfig().HistorySize, det.Trigger.HistorySize)
}

func TestLoadYAMLPresetResolvesTrigger(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		env       map[string]string
		threshold float64
		cooldown  int
	}{
		{"preset only", "preset: sum\n", nil, 0.5, trigger.SumConfig().CooldownCycles},
		{"yaml field wins", "preset: sum\ncooldown_cycles: 4\n", nil, 0.5, 4},
		{"env field wins", "preset: sum\n", map[string]string{"WAKEWORD_THRESHOLD": "0.9"}, 0.9, trigger.SumConfig().CooldownCycles},
		{"yaml beats env", "threshold: 0.65\npreset: sum\n", map[string]string{"WAKEWORD_THRESHOLD": "0.9"}, 0.65, trigger.SumConfig().CooldownCycles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "wakeword.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			t.Setenv("WAKEWORD_CONFIG", path)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, PresetSum, cfg.Preset)
			assert.True(t, cfg.PresetExplicit())

			det, err := cfg.Detector()
			require.NoError(t, err)
			assert.Equal(t, trigger.PolicySumNonBackground, det.Trigger.Policy)
			assert.Equal(t, tt.threshold, det.Trigger.Threshold)
			assert.Equal(t, tt.cooldown, det.Trigger.CooldownCycles)
		})
	}
}

func TestPresetValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAKEWORD_PRESET", "loud")
	cfg := FromEnv()
	assert.Equal(t, PresetCenter, cfg.Preset)
	assert.False(t, cfg.PresetExplicit())

	t.Setenv("WAKEWORD_PRESET", "sum")
	assert.True(t, FromEnv().PresetExplicit())

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("preset: loud\n"), 0o644))
	assert.Error(t, FromEnv().Overlay(bad))
}
