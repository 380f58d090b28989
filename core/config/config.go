package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

type Configuration struct {
	configFs afero.Fs

	Prompt      string `json:"prompt" validate:"required"`
	ColorPrompt bool   `json:"color_prompt"`
	DefaultPath string `json:"default_path" validate:"shellwords"`
	HistoryFile string `json:"history_file"`
	EventLog    string `json:"event_log"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("shellwords", validateShellWords); err != nil {
		return err
	}

	return validate.Struct(c)
}

func validateShellWords(fl validator.FieldLevel) bool {
	_, err := shlex.Split(fl.Field().String(), true)
	return err == nil
}

// SearchPath returns the directories of DefaultPath in order.
func (c *Configuration) SearchPath() ([]string, error) {
	dirs, err := shlex.Split(c.DefaultPath, true)
	if err != nil {
		return nil, fmt.Errorf("invalid default_path: %w", err)
	}
	return dirs, nil
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// fileFs returns the filesystem holding name. Absolute paths always refer to
// the OS filesystem, relative ones to the configuration directory.
func (c *Configuration) fileFs(name string) afero.Fs {
	if filepath.IsAbs(name) {
		return afero.NewOsFs()
	}
	return c.fs()
}

// OpenEventLog opens the event log in an append only state. It returns nil
// if the event log is disabled.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, nil
	}
	return c.fileFs(c.EventLog).OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, fmt.Errorf("event_log isn't set in %s", ConfigurationName)
	}
	return c.fileFs(c.EventLog).OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// HistoryPath returns the OS path of the history file or the empty string if
// history is disabled.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile == "" || filepath.IsAbs(c.HistoryFile) {
		return c.HistoryFile
	}
	if bp, ok := c.fs().(*afero.BasePathFs); ok {
		if realPath, err := bp.RealPath(c.HistoryFile); err == nil {
			return realPath
		}
	}
	return c.HistoryFile
}

// Default returns the built-in configuration, file paths are relative to the
// working directory.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
