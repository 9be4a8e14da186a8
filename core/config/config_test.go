package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}

		envTag := field.Tag.Get("envconfig")
		assert.Equal(t, strings.ToUpper(jsonField), envTag, "environment name of %q", jsonField)
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, "tsh> ", cfg.Prompt)
	assert.True(t, cfg.EmitPrompt)
	assert.True(t, cfg.MergeStderr)
	assert.False(t, cfg.SearchPath)
	assert.True(t, cfg.TerminalHandoff)
	assert.Empty(t, cfg.Dir())
	assert.Empty(t, cfg.HistoryPath(), "defaults never touch the disk")

	w, err := cfg.OpenEventLog()
	assert.NoError(t, err)
	assert.Nil(t, w)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TSH_PROMPT", "$ ")
	t.Setenv("TSH_SEARCH_PATH", "true")
	t.Setenv("TSH_MERGE_STDERR", "false")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "$ ", cfg.Prompt)
	assert.True(t, cfg.SearchPath)
	assert.False(t, cfg.MergeStderr)
	assert.Equal(t, "warn", cfg.LogLevel, "unset variables keep their value")
}

func TestApplyEnv_invalid(t *testing.T) {
	t.Setenv("TSH_VERBOSE", "sometimes")

	cfg := Default()
	assert.Error(t, cfg.ApplyEnv())
}
