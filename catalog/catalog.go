// Package catalog loads the list of models offered to clients.
//
// The catalog is a small JSON or YAML document of the form
//
//	{"models": [{"id": "gpt-4o-mini", "display_name": "GPT-4o mini", "provider": "openai"}]}
//
// It is read from disk on every Load so it can be edited without a restart.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/logging"
)

// DefaultPath is used when neither an explicit path nor MODEL_CATALOG_PATH is set.
const DefaultPath = "model_catalog.json"

// Model is one selectable model.
type Model struct {
	ID          string        `json:"id" yaml:"id"`
	DisplayName string        `json:"display_name" yaml:"display_name"`
	Provider    core.Provider `json:"provider" yaml:"provider"`
}

// Catalog is the document served by the models endpoint.
type Catalog struct {
	Models []Model `json:"models" yaml:"models"`
}

// Options configures a Loader.
type Options struct {
	// Path is the explicit catalog location.
	Path string
	// BaseDir anchors relative paths. Defaults to the working directory.
	BaseDir string
	Logger  logging.Logger
}

// Loader reads the catalog file.
type Loader struct {
	opts Options
}

// NewLoader creates a Loader.
func NewLoader(optFns ...func(o *Options)) *Loader {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Loader{opts: opts}
}

// Path resolves the catalog location: explicit path, then
// MODEL_CATALOG_PATH, then DefaultPath. Relative paths are joined to BaseDir.
func (l *Loader) Path() string {
	raw := strings.TrimSpace(l.opts.Path)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("MODEL_CATALOG_PATH"))
	}
	if raw == "" {
		raw = DefaultPath
	}
	if filepath.IsAbs(raw) || l.opts.BaseDir == "" {
		return filepath.Clean(raw)
	}
	return filepath.Join(l.opts.BaseDir, raw)
}

// Load reads and validates the catalog. A missing or invalid file is logged
// and yields an empty catalog.
func (l *Loader) Load() Catalog {
	path := l.Path()
	c, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.opts.Logger.Error("model catalog file not found", "path", path)
		} else {
			l.opts.Logger.Error("invalid model catalog file", "path", path, "error", err)
		}
		return Catalog{Models: []Model{}}
	}
	return c
}

// Read parses and validates the catalog at path. JSON documents are read
// through the YAML decoder.
func Read(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if c.Models == nil {
		c.Models = []Model{}
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks every entry.
func (c Catalog) Validate() error {
	for i, m := range c.Models {
		if n := utf8.RuneCountInString(m.ID); n < 1 || n > 128 {
			return fmt.Errorf("models[%d].id must be 1..128 characters", i)
		}
		if n := utf8.RuneCountInString(m.DisplayName); n < 1 || n > 200 {
			return fmt.Errorf("models[%d].display_name must be 1..200 characters", i)
		}
		if !m.Provider.Valid() {
			return fmt.Errorf("models[%d].provider %q is not supported", i, m.Provider)
		}
	}
	return nil
}
