package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"matrixctl/internal/classify"
	"matrixctl/internal/matrix"
	"matrixctl/internal/orchestrator"
	"matrixctl/internal/store"
	"matrixctl/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/matrixctl"
	projectConfigDir = ".matrixctl"
	configFileName   = "config.yaml"
)

// LoadConfig loads the matrixctl configuration by layering default, user,
// project and, when explicitPath is not empty, an explicit file.
func LoadConfig(explicitPath string) (MatrixConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// user config is optional
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else if config, err = overlayIfExists(config, userConfigPath); err != nil {
		return MatrixConfig{}, err
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else if config, err = overlayIfExists(config, projectConfigPath); err != nil {
		return MatrixConfig{}, err
	}

	// 4. Explicit file, which must exist
	if explicitPath != "" {
		explicit, err := loadConfigFromFile(explicitPath)
		if err != nil {
			return MatrixConfig{}, fmt.Errorf("error loading config from %s: %w", explicitPath, err)
		}
		config = mergeConfigs(config, explicit)
		logging.Debug("Config", "Loaded configuration from %s", explicitPath)
	}

	return config, nil
}

func overlayIfExists(base MatrixConfig, path string) (MatrixConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return MatrixConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Debug("Config", "Loaded configuration from %s", path)
	return mergeConfigs(base, overlay), nil
}

var getUserConfigPath = func() (string, error) {
	dir, err := GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a MatrixConfig from a YAML file.
func loadConfigFromFile(filePath string) (MatrixConfig, error) {
	var config MatrixConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return MatrixConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return MatrixConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Scalars override
// when set; lists replace the base list as a whole because their order is
// significant (axis nesting, marker precedence, argv).
func mergeConfigs(base, overlay MatrixConfig) MatrixConfig {
	merged := base

	if overlay.StorePath != "" {
		merged.StorePath = overlay.StorePath
	}
	if overlay.RestorePointPath != "" {
		merged.RestorePointPath = overlay.RestorePointPath
	}
	if overlay.WorkDir != "" {
		merged.WorkDir = overlay.WorkDir
	}
	if len(overlay.Command) > 0 {
		merged.Command = overlay.Command
	}
	if overlay.Steps != nil {
		merged.Steps = overlay.Steps
	}
	if overlay.BenchmarkStep != "" {
		merged.BenchmarkStep = overlay.BenchmarkStep
	}
	if overlay.Benchmark != nil {
		merged.Benchmark = overlay.Benchmark
	}
	if len(overlay.Env) > 0 {
		merged.Env = overlay.Env
	}
	if overlay.MergeStderr != nil {
		merged.MergeStderr = overlay.MergeStderr
	}
	if len(overlay.Properties) > 0 {
		merged.Properties = overlay.Properties
	}
	if len(overlay.Markers) > 0 {
		merged.Markers = overlay.Markers
	}
	if overlay.ExitCodePolicy != "" {
		merged.ExitCodePolicy = overlay.ExitCodePolicy
	}

	return merged
}

// Validate reports every problem found in the configuration.
func (c MatrixConfig) Validate() error {
	var errs []error

	if c.StorePath == "" {
		errs = append(errs, errors.New("storePath is required"))
	}
	if len(c.Command) == 0 || c.Command[0] == "" {
		errs = append(errs, errors.New("command is required"))
	}
	if err := matrix.Validate(c.Properties); err != nil {
		errs = append(errs, err)
	}
	for _, ax := range c.Properties {
		if !store.ValidName(ax.Property) {
			errs = append(errs, fmt.Errorf("invalid property name %q", ax.Property))
		}
		for _, v := range ax.Values {
			if !store.ValidValue(v) {
				errs = append(errs, fmt.Errorf("%w: %q for %s", store.ErrInvalidValue, v, ax.Property))
			}
		}
	}
	for i, m := range c.Markers {
		if m.Prefix == "" {
			errs = append(errs, fmt.Errorf("marker %d has an empty prefix", i))
		}
		if _, err := classify.ParseSeverity(string(m.Severity)); err != nil {
			errs = append(errs, fmt.Errorf("marker %q: %w", m.Prefix, err))
		}
	}
	if _, err := orchestrator.ParseExitCodePolicy(c.ExitCodePolicy); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
