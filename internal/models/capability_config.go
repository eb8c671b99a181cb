package models

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	coremodels "github.com/agentcore/core/pkg/models"
)

//go:embed default_capabilities.json
var bundledCapabilitiesFS embed.FS

const bundledCapabilitiesName = "default_capabilities.json"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// loadBundledCapabilities decodes the capability document embedded in the
// binary (spec.md §4.1 "Failure modes": file absent falls back to bundled
// defaults).
func loadBundledCapabilities() (coremodels.CapabilityConfigFile, error) {
	data, err := bundledCapabilitiesFS.ReadFile(bundledCapabilitiesName)
	if err != nil {
		return coremodels.CapabilityConfigFile{}, fmt.Errorf("capability registry: read embedded defaults: %w", err)
	}
	return decodeCapabilityDocument(data)
}

// loadUserCapabilities loads the user's override path. If the file is
// absent, it is seeded from the bundled defaults via an atomic temp-file +
// rename (spec.md §4.1 "Failure modes": "File absent -> copy bundled to
// user path ... then load").
func loadUserCapabilities(path string, logger *slog.Logger) (coremodels.CapabilityConfigFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		bundled, rerr := bundledCapabilitiesFS.ReadFile(bundledCapabilitiesName)
		if rerr != nil {
			return coremodels.CapabilityConfigFile{}, fmt.Errorf("capability registry: read embedded defaults: %w", rerr)
		}
		if werr := writeFileAtomic(path, bundled); werr != nil {
			logger.Warn("capability registry: failed to seed user capability file, using in-memory bundled defaults", "path", path, "error", werr)
			return decodeCapabilityDocument(bundled)
		}
		logger.Info("capability registry: seeded user capability file from bundled defaults", "path", path)
		return decodeCapabilityDocument(bundled)
	}
	if err != nil {
		return coremodels.CapabilityConfigFile{}, fmt.Errorf("capability registry: read %s: %w", path, err)
	}

	doc, derr := decodeCapabilityDocument(data)
	if derr != nil {
		logger.Warn("capability registry: parse failure on user config, falling back to bundled defaults", "path", path, "error", derr)
		bundled, rerr := loadBundledCapabilities()
		if rerr != nil {
			return coremodels.CapabilityConfigFile{}, rerr
		}
		return bundled, nil
	}
	return doc, nil
}

// decodeCapabilityDocument tolerates a leading UTF-8 BOM, which some editors
// add to JSON files saved on Windows.
func decodeCapabilityDocument(data []byte) (coremodels.CapabilityConfigFile, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	var doc coremodels.CapabilityConfigFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return coremodels.CapabilityConfigFile{}, fmt.Errorf("decode capability document: %w", err)
	}
	return doc, nil
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by an atomic rename, so a concurrent reader never observes a
// partially-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".capabilities-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
