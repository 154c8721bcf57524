package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of the configuration file
type FileConfig struct {
	Indent  *string               `yaml:"indent,omitempty"`
	Targets map[string]FileTarget `yaml:"targets"`
}

// FileTarget is a target entry in the configuration file
type FileTarget struct {
	Dist string `yaml:"dist"`
	Own  string `yaml:"own"`
}

// LoadConfig loads configuration from a YAML file. Relative target paths
// are resolved against the directory of the file.
func LoadConfig(filePath string) (*Config, error) {
	config := &Config{
		Indent: DefaultIndent,
	}

	// If no config file specified, return default config
	if filePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if fileConfig.Indent != nil {
		config.Indent = *fileConfig.Indent
	}

	base := filepath.Dir(filePath)
	for name, t := range fileConfig.Targets {
		config.Targets = append(config.Targets, Target{
			Name: name,
			Dist: resolve(base, t.Dist),
			Own:  resolve(base, t.Own),
		})
	}
	sortTargets(config.Targets)

	return config, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// SaveDefaultConfig saves a default configuration file. An existing file is
// left untouched.
func SaveDefaultConfig(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("config file %s already exists", filePath)
	}

	indent := DefaultIndent
	fileConfig := FileConfig{
		Indent: &indent,
		Targets: map[string]FileTarget{
			"app": {
				Dist: "config/config.dist.json",
				Own:  "config/config.json",
			},
		},
	}

	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	// Add helpful comments
	yamlWithComments := "# configdist task file\n" +
		"# Each target keeps \"own\" in sync with the \"dist\" template.\n" +
		"# Paths are relative to this file.\n\n" +
		string(data)

	if err := os.WriteFile(filePath, []byte(yamlWithComments), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
