package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

const appName = "gauntlet"

// StoragePaths contains paths for application storage
type StoragePaths struct {
	DatabasePath string
	ExportPath   string
}

// GetDefaultStoragePaths returns default storage paths using XDG base directories
func GetDefaultStoragePaths() StoragePaths {
	// the database is state, exports are user data
	return StoragePaths{
		DatabasePath: filepath.Join(xdg.StateHome, appName, "gauntlet.db"),
		ExportPath:   filepath.Join(xdg.DataHome, appName, "exports"),
	}
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	systemConfigPath := filepath.Join("/etc", appName, "config.json")
	if runtime.GOOS == "windows" {
		systemConfigPath = filepath.Join(os.Getenv("PROGRAMDATA"), appName, "config.json")
	}
	return ConfigPrecedence{
		SystemConfig:      systemConfigPath,
		UserConfig:        filepath.Join(xdg.ConfigHome, appName, "config.json"),
		ProjectConfig:     filepath.Join("."+appName, "config.json"),
		DotEnv:            ".env",
		EnvironmentPrefix: "GAUNTLET",
	}
}
