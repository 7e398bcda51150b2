// Package config holds tunable settings for the coordination layer.
// Settings load from a YAML file; every field has a working default so the
// library runs without any configuration present.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "500ms" decode directly.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Settings configures dispatch timing, observation, and extraction.
type Settings struct {
	// DrainInterval is how long a dispatch cycle keeps its mutation
	// subscription open after the action handler returns, so trailing
	// asynchronous change reports are still collected.
	DrainInterval Duration `yaml:"drain_interval"`

	// OverlayID is the element id the injected mutation observer excludes
	// from observation, so the tool's own highlight overlays do not feed
	// back into change reports.
	OverlayID string `yaml:"overlay_id"`

	// MaxContentTokens caps page text passed to the summarizer.
	MaxContentTokens int `yaml:"max_content_tokens"`

	// Model is the summarizer model name.
	Model string `yaml:"model"`

	// DownloadDir is where fetched PDFs are saved before extraction.
	DownloadDir string `yaml:"download_dir"`
}

// Default returns the settings used when no configuration file exists.
func Default() Settings {
	return Settings{
		DrainInterval:    Duration(500 * time.Millisecond),
		OverlayID:        "pilot-highlight-container",
		MaxContentTokens: 8000,
		Model:            "gpt-4o",
		DownloadDir:      os.TempDir(),
	}
}

// Load reads settings from the YAML file at path, filling any field the file
// omits with its default. A missing file is not an error; it yields defaults.
func Load(path string) (Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if settings.DrainInterval <= 0 {
		settings.DrainInterval = Default().DrainInterval
	}
	if settings.OverlayID == "" {
		settings.OverlayID = Default().OverlayID
	}
	if settings.MaxContentTokens <= 0 {
		settings.MaxContentTokens = Default().MaxContentTokens
	}
	if settings.Model == "" {
		settings.Model = Default().Model
	}
	if settings.DownloadDir == "" {
		settings.DownloadDir = Default().DownloadDir
	}

	return settings, nil
}
