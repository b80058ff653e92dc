package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ManifestFile marks a directory as a repository.
	ManifestFile = "manifest"
	// LockFile guards a repository against building while it is open.
	LockFile = ".lock"
	// SegmentDir holds segment files.
	SegmentDir = "index"

	ManifestVersion = 1
)

// Manifest describes a built repository.
type Manifest struct {
	FormatVersion   int       `yaml:"formatVersion"`
	Stemmer         string    `yaml:"stemmer"`
	DocumentBase    int       `yaml:"documentBase"`
	MaximumDocument int       `yaml:"maximumDocument"`
	DocumentCount   int       `yaml:"documentCount"`
	TotalTerms      int64     `yaml:"totalTerms"`
	UniqueTerms     int       `yaml:"uniqueTerms"`
	StoreText       bool      `yaml:"storeText"`
	Segment         string    `yaml:"segment"`
	CreatedAt       time.Time `yaml:"createdAt"`
}

// SegmentPath is the absolute path of the manifest's segment within dir.
func (m *Manifest) SegmentPath(dir string) string {
	return filepath.Join(dir, SegmentDir, m.Segment)
}

// ReadManifest loads <dir>/manifest.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.FormatVersion != ManifestVersion {
		return nil, fmt.Errorf("manifest format version %d, want %d", m.FormatVersion, ManifestVersion)
	}
	if m.Segment == "" {
		return nil, fmt.Errorf("manifest names no segment")
	}
	return &m, nil
}

// Write stores the manifest in dir, replacing any previous one atomically.
func (m *Manifest) Write(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	final := filepath.Join(dir, ManifestFile)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}
