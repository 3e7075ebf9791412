// Package batch compares many named screen pairs in one run.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"visualdiff/internal/models"
	"visualdiff/internal/storage"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Screen is one named pair. Relative paths resolve against the manifest's
// folder.
type Screen struct {
	Name   string `yaml:"name" json:"name"`
	First  string `yaml:"first" json:"first"`
	Second string `yaml:"second" json:"second"`
}

type Manifest struct {
	Screens []Screen `yaml:"screens"`

	dir string
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewError(models.ErrConfig, "", fmt.Errorf("failed to read manifest: %w", err))
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, models.NewError(models.ErrConfig, "", fmt.Errorf("invalid manifest: %w", err))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate requires at least one screen, non-empty names that stay unique
// once sanitized for file names, and both image paths.
func (m *Manifest) Validate() error {
	if len(m.Screens) == 0 {
		return models.NewError(models.ErrConfig, "", fmt.Errorf("manifest lists no screens"))
	}

	seen := make(map[string]int, len(m.Screens))
	for i, s := range m.Screens {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return models.NewError(models.ErrConfig, "", fmt.Errorf("screen %d has no name", i+1))
		}
		key := storage.SanitizeName(name)
		if key == "" {
			return models.NewError(models.ErrConfig, "", fmt.Errorf("screen name %q has no usable characters", name))
		}
		// Kept inputs are named after the sanitized name, so that must be unique.
		if prev, dup := seen[key]; dup {
			return models.NewError(models.ErrConfig, "", fmt.Errorf("screen %q collides with entry %d (%q) as %q",
				name, prev+1, strings.TrimSpace(m.Screens[prev].Name), key))
		}
		seen[key] = i
		if s.First == "" || s.Second == "" {
			return models.NewError(models.ErrConfig, "", fmt.Errorf("screen %q needs both first and second images", name))
		}
	}
	return nil
}

// Resolve returns p relative to the manifest's folder unless it is absolute.
func (m *Manifest) Resolve(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

// ReadInput reads an image file, refusing anything larger than limit bytes.
func ReadInput(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("%s is %s, above the %s limit", path,
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(limit)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
