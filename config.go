package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"studyboard/export"
	"studyboard/sizing"
	"studyboard/theme"
)

const configFile = ".studyboard.yaml"

type ExportConfig struct {
	Format            string  `yaml:"format"`
	Multiplier        float64 `yaml:"multiplier"`
	Quality           int     `yaml:"quality"`
	IncludeBackground bool    `yaml:"include_background"`
}

type Config struct {
	SaveDirectory string        `yaml:"save_directory"`
	Confirmations bool          `yaml:"confirmations"`
	Theme         string        `yaml:"theme"`
	PaletteFile   string        `yaml:"palette_file"`
	Author        string        `yaml:"author"`
	LogLevel      string        `yaml:"log_level"`
	Sizing        sizing.Config `yaml:"sizing"`
	Export        ExportConfig  `yaml:"export"`
}

func defaultConfig() *Config {
	author := os.Getenv("USER")
	if author == "" {
		author = "anonymous"
	}
	return &Config{
		Confirmations: true,
		Theme:         theme.Light,
		Author:        author,
		LogLevel:      "info",
		Sizing:        sizing.DefaultConfig(),
		Export: ExportConfig{
			Format:            string(export.PNG),
			Multiplier:        export.DefaultMultiplier,
			Quality:           export.DefaultQuality,
			IncludeBackground: true,
		},
	}
}

// loadConfig reads ~/.studyboard.yaml if present, then applies a .env file
// and STUDYBOARD_* environment overrides.
func loadConfig() (*Config, error) {
	home, _ := os.UserHomeDir()
	path := ""
	if home != "" {
		path = filepath.Join(home, configFile)
	}
	return loadConfigFrom(path, home)
}

func loadConfigFrom(path, home string) (*Config, error) {
	config := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if v := os.Getenv("STUDYBOARD_SAVE_DIR"); v != "" {
		config.SaveDirectory = v
	}
	if v := os.Getenv("STUDYBOARD_THEME"); v != "" {
		config.Theme = v
	}
	if v := os.Getenv("STUDYBOARD_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("STUDYBOARD_CONFIRMATIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Confirmations = b
		}
	}

	config.SaveDirectory = expandPath(config.SaveDirectory, home)
	config.PaletteFile = expandPath(config.PaletteFile, home)
	if _, err := export.ParseFormat(config.Export.Format); err != nil {
		return nil, err
	}
	return config, nil
}

func expandPath(value, home string) string {
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "~") && home != "" {
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	if !filepath.IsAbs(value) {
		if abs, err := filepath.Abs(value); err == nil {
			value = abs
		}
	}
	return value
}

func (c *Config) GetSavePath(filename string) string {
	if c.SaveDirectory == "" {
		return filename
	}
	os.MkdirAll(c.SaveDirectory, 0755)
	return filepath.Join(c.SaveDirectory, filename)
}
