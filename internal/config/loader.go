package config

import (
	"fmt"
	"os"

	"github.com/chrisnisbet/iftesterd/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML configuration document at path. A missing
// file is not an error — the daemon simply starts with no interfaces
// configured until a "config" RPC or reload supplies one.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Info("ConfigLoader", "no config file at %s, starting with an empty interface set", path)
			return &Document{Interfaces: map[string]InterfaceConfig{}}, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if doc.Interfaces == nil {
		doc.Interfaces = map[string]InterfaceConfig{}
	}

	logging.Info("ConfigLoader", "loaded %d interface(s) from %s", len(doc.Interfaces), path)
	return &doc, nil
}

// ParseDocument decodes a configuration document delivered over the bus
// "config" RPC rather than from a file. Malformed JSON/YAML makes the RPC
// return invalid-argument (§7, kind 1) — the caller maps this error to that
// bus reply.
func ParseDocument(payload []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parsing config document: %w", err)
	}
	if doc.Interfaces == nil {
		doc.Interfaces = map[string]InterfaceConfig{}
	}
	return &doc, nil
}
