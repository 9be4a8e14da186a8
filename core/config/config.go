package config

import (
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"

	// EnvPrefix is prepended to the environment variables that override
	// configuration values, e.g. TSH_PROMPT.
	EnvPrefix = "tsh"
)

type Configuration struct {
	configFs         afero.Fs
	configurationDir string

	Prompt          string `json:"prompt" envconfig:"PROMPT"`
	EmitPrompt      bool   `json:"emit_prompt" envconfig:"EMIT_PROMPT"`
	Verbose         bool   `json:"verbose" envconfig:"VERBOSE"`
	SearchPath      bool   `json:"search_path" envconfig:"SEARCH_PATH"`
	MergeStderr     bool   `json:"merge_stderr" envconfig:"MERGE_STDERR"`
	TerminalHandoff bool   `json:"terminal_handoff" envconfig:"TERMINAL_HANDOFF"`
	EventLog        string `json:"event_log" envconfig:"EVENT_LOG"`
	HistoryFile     string `json:"history_file" envconfig:"HISTORY_FILE"`
	LogLevel        string `json:"log_level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// ApplyEnv overrides values with TSH_* environment variables.
func (c *Configuration) ApplyEnv() error {
	return envconfig.Process(EnvPrefix, c)
}

// Dir returns the configuration directory, or "" for the built-in defaults.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// OpenEventLog opens the event log in an append only state. It returns nil
// if there's no configuration directory or the log is disabled.
func (c *Configuration) OpenEventLog() (io.WriteCloser, error) {
	if c.fs() == nil || c.EventLog == "" {
		return nil, nil
	}
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	if c.fs() == nil || c.EventLog == "" {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// HistoryPath is the OS path of the line editing history, or "" if there
// is none.
func (c *Configuration) HistoryPath() string {
	if c.configurationDir == "" || c.HistoryFile == "" {
		return ""
	}
	if filepath.IsAbs(c.HistoryFile) {
		return c.HistoryFile
	}
	return filepath.Join(c.configurationDir, c.HistoryFile)
}

// Default returns the built-in configuration. It has no directory, so
// nothing is written to disk.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
