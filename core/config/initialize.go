package config

import (
	"errors"
	"io/fs"
	"log"

	"github.com/spf13/afero"
)

// Initialize writes the default configuration into dir if one doesn't exist.
func Initialize(dir string, logger *log.Logger) error {
	return InitializeFs(afero.NewBasePathFs(afero.NewOsFs(), dir), logger)
}

// InitializeFs writes the default configuration to the root of fs.
func InitializeFs(configFs afero.Fs, logger *log.Logger) error {
	_, err := configFs.Stat(ConfigurationName)
	switch {
	case err == nil:
		logger.Printf("%s already exists, skipping\n", ConfigurationName)
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	logger.Printf("Writing %s\n", ConfigurationName)
	return afero.WriteFile(configFs, ConfigurationName, defaultConfigData, 0600)
}
