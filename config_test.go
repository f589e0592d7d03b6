package main

import (
	"os"
	"path/filepath"
	"testing"

	"studyboard/export"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), configFile)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	home := t.TempDir()
	config, err := loadConfigFrom(filepath.Join(home, configFile), home)
	if err != nil {
		t.Fatal(err)
	}
	if !config.Confirmations || config.Theme != "light" {
		t.Errorf("defaults = %+v", config)
	}
	if config.Export.Format != string(export.PNG) || config.Export.Quality != export.DefaultQuality {
		t.Errorf("export defaults = %+v", config.Export)
	}
	if config.Sizing.MinWidth != 400 || config.Sizing.MinHeight != 300 {
		t.Errorf("sizing defaults = %+v", config.Sizing)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, `
save_directory: ~/boards
confirmations: false
theme: dark
sizing:
  maintain_aspect_ratio: true
  aspect_ratio: 1.5
  min_width: 200
export:
  format: jpeg
  quality: 70
`)
	config, err := loadConfigFrom(path, home)
	if err != nil {
		t.Fatal(err)
	}
	if config.SaveDirectory != filepath.Join(home, "boards") {
		t.Errorf("SaveDirectory = %q", config.SaveDirectory)
	}
	if config.Confirmations || config.Theme != "dark" {
		t.Errorf("config = %+v", config)
	}
	if !config.Sizing.MaintainAspectRatio || config.Sizing.AspectRatio != 1.5 || config.Sizing.MinWidth != 200 {
		t.Errorf("sizing = %+v", config.Sizing)
	}
	// Keys left out of the file keep their defaults.
	if config.Sizing.MinHeight != 300 || config.Sizing.Padding != 20 {
		t.Errorf("sizing defaults lost: %+v", config.Sizing)
	}
	if config.Export.Quality != 70 || config.Export.Multiplier != export.DefaultMultiplier {
		t.Errorf("export = %+v", config.Export)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, "theme: dark\n")
	t.Setenv("STUDYBOARD_THEME", "light")
	t.Setenv("STUDYBOARD_SAVE_DIR", "~/elsewhere")
	t.Setenv("STUDYBOARD_CONFIRMATIONS", "false")
	t.Setenv("STUDYBOARD_LOG_LEVEL", "debug")

	config, err := loadConfigFrom(path, home)
	if err != nil {
		t.Fatal(err)
	}
	if config.Theme != "light" || config.LogLevel != "debug" || config.Confirmations {
		t.Errorf("config = %+v", config)
	}
	if config.SaveDirectory != filepath.Join(home, "elsewhere") {
		t.Errorf("SaveDirectory = %q", config.SaveDirectory)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	home := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "theme: [dark\n"},
		{"bad export format", "export:\n  format: gif\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfigFrom(writeConfig(t, tt.body), home); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGetSavePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	config := &Config{SaveDirectory: dir}
	if got := config.GetSavePath("a.png"); got != filepath.Join(dir, "a.png") {
		t.Errorf("GetSavePath = %q", got)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("save directory not created: %v", err)
	}
	if got := (&Config{}).GetSavePath("a.png"); got != "a.png" {
		t.Errorf("GetSavePath without directory = %q", got)
	}
}
