// Package config loads runtime settings from a .env file, the environment
// and an optional YAML file named by WAKEWORD_CONFIG, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/realtime-ai/wakeword/pkg/dsp"
	"github.com/realtime-ai/wakeword/pkg/inference"
	"github.com/realtime-ai/wakeword/pkg/trigger"
	"github.com/realtime-ai/wakeword/pkg/wakeword"
)

// Deployment presets.
const (
	PresetCenter = "center"
	PresetSum    = "sum"
)

type Config struct {
	// Model
	ModelPath      string `yaml:"model_path"`
	ONNXLibrary    string `yaml:"onnxruntime_lib"`
	IntraOpThreads int    `yaml:"intra_op_threads"`

	// Trigger
	Preset         string  `yaml:"preset"`
	Policy         string  `yaml:"policy"`
	TargetClass    int     `yaml:"target_class"`
	Threshold      float64 `yaml:"threshold"`
	HistorySize    int     `yaml:"history_size"`
	ConfirmCycles  int     `yaml:"confirm_cycles"`
	CooldownCycles int     `yaml:"cooldown_cycles"`

	// Features
	Padding string `yaml:"padding"`
	DCTNorm string `yaml:"dct_norm"`

	// Capture
	ChunkSize     int `yaml:"chunk_size"`
	CaptureBuffer int `yaml:"capture_buffer"`

	// Server
	ServerAddr string `yaml:"server_addr"`

	// MQTT
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	DeviceID     string `yaml:"device_id"`

	// Observability
	LogLevel      string `yaml:"log_level"`
	TraceExporter string `yaml:"trace_exporter"`

	// overrides holds the trigger fields set explicitly in the environment
	// or the YAML file. They win over any preset.
	overrides triggerOverrides
	// presetSet records that WAKEWORD_PRESET or the YAML file named a preset.
	presetSet bool
}

// triggerOverrides lists the trigger fields that were set explicitly.
type triggerOverrides struct {
	Policy         *string  `yaml:"policy"`
	TargetClass    *int     `yaml:"target_class"`
	Threshold      *float64 `yaml:"threshold"`
	HistorySize    *int     `yaml:"history_size"`
	ConfirmCycles  *int     `yaml:"confirm_cycles"`
	CooldownCycles *int     `yaml:"cooldown_cycles"`
}

// merge copies the fields set in o over t.
func (t *triggerOverrides) merge(o triggerOverrides) {
	if o.Policy != nil {
		t.Policy = o.Policy
	}
	if o.TargetClass != nil {
		t.TargetClass = o.TargetClass
	}
	if o.Threshold != nil {
		t.Threshold = o.Threshold
	}
	if o.HistorySize != nil {
		t.HistorySize = o.HistorySize
	}
	if o.ConfirmCycles != nil {
		t.ConfirmCycles = o.ConfirmCycles
	}
	if o.CooldownCycles != nil {
		t.CooldownCycles = o.CooldownCycles
	}
}

func envTriggerOverrides() triggerOverrides {
	return triggerOverrides{
		Policy:         lookupEnv("WAKEWORD_POLICY"),
		TargetClass:    lookupEnvInt("WAKEWORD_TARGET_CLASS"),
		Threshold:      lookupEnvFloat("WAKEWORD_THRESHOLD"),
		HistorySize:    lookupEnvInt("WAKEWORD_HISTORY"),
		ConfirmCycles:  lookupEnvInt("WAKEWORD_CONFIRM_CYCLES"),
		CooldownCycles: lookupEnvInt("WAKEWORD_COOLDOWN_CYCLES"),
	}
}

// Load reads .env, the environment and then WAKEWORD_CONFIG if set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if path := os.Getenv("WAKEWORD_CONFIG"); path != "" {
		if err := cfg.Overlay(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables. WAKEWORD_PRESET
// picks the trigger defaults the other WAKEWORD_* variables override.
func FromEnv() *Config {
	preset := getEnv("WAKEWORD_PRESET", PresetCenter)
	presetSet := os.Getenv("WAKEWORD_PRESET") != ""
	if !validPreset(preset) {
		log.Warn().Str("key", "WAKEWORD_PRESET").Str("value", preset).Msg("unknown preset, using center")
		preset = PresetCenter
		presetSet = false
	}

	c := &Config{
		ModelPath:      getEnv("WAKEWORD_MODEL_PATH", "models/wakeword.onnx"),
		ONNXLibrary:    getEnv("ONNXRUNTIME_LIB", ""),
		IntraOpThreads: getEnvInt("WAKEWORD_INTRA_OP_THREADS", 1),

		Padding: getEnv("WAKEWORD_PADDING", dsp.PaddingZero.String()),
		DCTNorm: getEnv("WAKEWORD_DCT_NORM", dsp.DCTOrtho.String()),

		ChunkSize:     getEnvInt("WAKEWORD_CHUNK_SIZE", 2048),
		CaptureBuffer: getEnvInt("WAKEWORD_CAPTURE_BUFFER", 16),

		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "wakeword"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),
		MQTTTopic:    getEnv("MQTT_TOPIC", "wakeword/{device_id}/events"),
		DeviceID:     getEnv("DEVICE_ID", hostname()),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		TraceExporter: getEnv("TRACE_EXPORTER", "none"),

		overrides: envTriggerOverrides(),
		presetSet: presetSet,
	}
	c.resolvePreset(preset)
	return c
}

// Overlay applies the fields set in the YAML file at path. A preset named
// in the file replaces the trigger defaults; trigger fields set in the file
// or the environment still win.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	var explicit triggerOverrides
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	var named struct {
		Preset *string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &named); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	preset := c.Preset
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	c.overrides.merge(explicit)
	if named.Preset != nil {
		c.presetSet = true
	}

	if !validPreset(c.Preset) {
		return fmt.Errorf("error parsing config file: unknown preset %q", c.Preset)
	}
	if c.Preset != preset {
		c.resolvePreset(c.Preset)
	}
	return nil
}

// ApplyPreset replaces the trigger defaults with a preset's. Trigger fields
// set explicitly in the environment or the YAML file are kept.
func (c *Config) ApplyPreset(preset string) error {
	if !validPreset(preset) {
		return fmt.Errorf("unknown preset %q", preset)
	}
	c.resolvePreset(preset)
	return nil
}

// PresetExplicit reports whether the environment or the YAML file named a
// preset, as opposed to the center default.
func (c *Config) PresetExplicit() bool { return c.presetSet }

func (c *Config) resolvePreset(preset string) {
	tc := presetTrigger(preset)
	c.Preset = preset
	c.Policy = tc.Policy.String()
	c.TargetClass = tc.TargetClass
	c.Threshold = tc.Threshold
	c.HistorySize = tc.HistorySize
	c.ConfirmCycles = tc.ConfirmCycles
	c.CooldownCycles = tc.CooldownCycles

	o := c.overrides
	if o.Policy != nil {
		c.Policy = *o.Policy
	}
	if o.TargetClass != nil {
		c.TargetClass = *o.TargetClass
	}
	if o.Threshold != nil {
		c.Threshold = *o.Threshold
	}
	if o.HistorySize != nil {
		c.HistorySize = *o.HistorySize
	}
	if o.ConfirmCycles != nil {
		c.ConfirmCycles = *o.ConfirmCycles
	}
	if o.CooldownCycles != nil {
		c.CooldownCycles = *o.CooldownCycles
	}
}

// Detector returns the validated detector configuration.
func (c *Config) Detector() (wakeword.Config, error) {
	policy, err := trigger.ParsePolicy(c.Policy)
	if err != nil {
		return wakeword.Config{}, err
	}
	padding, err := dsp.ParsePadding(c.Padding)
	if err != nil {
		return wakeword.Config{}, err
	}
	norm, err := dsp.ParseDCTNorm(c.DCTNorm)
	if err != nil {
		return wakeword.Config{}, err
	}

	cfg := wakeword.DefaultConfig(c.ModelPath)
	cfg.Features.Padding = padding
	cfg.Features.DCTNorm = norm
	cfg.Trigger = trigger.Config{
		Policy:         policy,
		TargetClass:    c.TargetClass,
		Threshold:      c.Threshold,
		HistorySize:    c.HistorySize,
		ConfirmCycles:  c.ConfirmCycles,
		CooldownCycles: c.CooldownCycles,
	}
	if err := cfg.Validate(); err != nil {
		return wakeword.Config{}, err
	}
	return cfg, nil
}

// ONNX returns the inference engine configuration.
func (c *Config) ONNX() inference.ONNXConfig {
	return inference.ONNXConfig{
		LibraryPath:    c.ONNXLibrary,
		IntraOpThreads: c.IntraOpThreads,
	}
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func validPreset(preset string) bool {
	return preset == PresetCenter || preset == PresetSum
}

func presetTrigger(preset string) trigger.Config {
	if preset == PresetSum {
		return trigger.SumConfig()
	}
	return trigger.DefaultConfig()
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if v := lookupEnvInt(key); v != nil {
		return *v
	}
	return defaultValue
}

func lookupEnv(key string) *string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	return &value
}

// lookupEnvInt returns nil when key is unset or not an integer.
func lookupEnvInt(key string) *int {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("invalid integer, using default")
		return nil
	}
	return &intValue
}

// lookupEnvFloat returns nil when key is unset or not a number.
func lookupEnvFloat(key string) *float64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("invalid float, using default")
		return nil
	}
	return &floatValue
}
