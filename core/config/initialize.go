package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Initialize creates a configuration directory at path with the default
// configuration. An existing config.yaml is left alone.
func Initialize(path string, logger *log.Logger) error {
	return InitializeFs(afero.NewOsFs(), path, logger)
}

// InitializeFs is Initialize on fsys.
func InitializeFs(fsys afero.Fs, path string, logger *log.Logger) error {
	logger.Printf("Creating configuration directory %q\n", path)
	if err := fsys.MkdirAll(path, 0700); err != nil {
		return err
	}

	configPath := filepath.Join(path, ConfigurationName)
	_, err := fsys.Stat(configPath)
	switch {
	case err == nil:
		logger.Printf("Configuration %q already exists, skipping\n", configPath)
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	logger.Printf("Writing default configuration to %q\n", configPath)
	return afero.WriteFile(fsys, configPath, defaultConfigData, os.FileMode(0600))
}
