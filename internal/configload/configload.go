// Package configload reads the on-wire JSON form of internal/config's
// declarative Config ruleset from disk and registers it into an
// internal/registry.Registry.
package configload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/insightdelivered/transtractor/internal/config"
	"github.com/insightdelivered/transtractor/internal/registry"
)

// LoadFile reads and validates a single on-wire config JSON file.
// Unknown JSON keys are rejected rather than silently ignored, so a
// typo in a config file fails loudly instead of producing a config
// that's silently missing the field the author intended.
func LoadFile(path string) (*config.Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("configload: %w", err)
	}

	var cfg config.Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, "", fmt.Errorf("configload: %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("configload: %s: %w", path, err)
	}

	return &cfg, string(data), nil
}

// LoadDir reads every *.json file directly inside dir (no recursion),
// in lexical filename order, and registers each into reg. It returns
// an error naming the first file that failed to load or validate;
// files already registered are left in reg (callers that want an
// all-or-nothing load should pass a fresh registry.New()).
func LoadDir(dir string, reg *registry.Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("configload: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return fmt.Errorf("configload: no *.json config files found in %q", dir)
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		cfg, source, err := LoadFile(path)
		if err != nil {
			return err
		}
		if err := reg.Register(cfg, source); err != nil {
			return fmt.Errorf("configload: %s: %w", path, err)
		}
	}
	return nil
}
