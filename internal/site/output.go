package site

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ManifestFile is written at the output root after every build.
const ManifestFile = "routes.json"

// Manifest lists the pages of one build.
type Manifest struct {
	BuildID          string          `json:"build_id"`
	GeneratedAt      time.Time       `json:"generated_at"`
	EnumerationError string          `json:"enumeration_error,omitempty"`
	Routes           []ManifestRoute `json:"routes"`
}

// ManifestRoute maps a route to its source post and content fingerprint.
type ManifestRoute struct {
	Route       string `json:"route"`
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
}

// ReadManifest loads the manifest written into outputDir.
func ReadManifest(outputDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ManifestFile, err)
	}
	return &m, nil
}

// PagePath maps a route to the index.html that serves it below outputDir.
// "/blog/hello" -> <out>/blog/hello/index.html. Routes escaping the root are rejected.
func PagePath(outputDir, route string) (string, error) {
	clean := path.Clean("/" + route)
	if clean == "/" || slices.Contains(strings.Split(route, "/"), "..") {
		return "", fmt.Errorf("route %q does not map to a page below the output directory", route)
	}
	return filepath.Join(outputDir, filepath.FromSlash(clean), "index.html"), nil
}

// prepareOutput creates outputDir, emptying it first when clean is set.
func prepareOutput(outputDir string, clean bool) error {
	if clean {
		entries, err := os.ReadDir(outputDir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(outputDir, e.Name())); err != nil {
				return err
			}
		}
	}
	return os.MkdirAll(outputDir, 0o750)
}

// writeFile writes through a temp file and rename so the preview server never serves
// a half-written page.
func writeFile(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}
