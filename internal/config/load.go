package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/samteezy/clip/internal/clerr"
)

// Load reads and parses the JSON configuration file at path. Per spec.md
// §1, full JSON-schema validation is out of core scope; Load performs only
// the minimal structural checks the rest of the system depends on
// (non-empty, unique upstream ids, a supported transport with its command
// or url set).
//
// If a ".env" file exists in the current working directory, it is loaded
// into the process environment first. No "${VAR}" substitution is performed
// on config values, by Load or by its caller.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; missing .env is not an error

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, clerr.NewConfigError("", fmt.Errorf("read %q: %w", path, err))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, clerr.NewConfigError("", fmt.Errorf("parse %q: %w", path, err))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Upstreams) == 0 {
		return clerr.NewConfigError("upstreams", fmt.Errorf("at least one upstream is required"))
	}

	seen := make(map[string]bool, len(c.Upstreams))
	for i, u := range c.Upstreams {
		if u.ID == "" {
			return clerr.NewConfigError(fmt.Sprintf("upstreams[%d].id", i), fmt.Errorf("id is required"))
		}
		if seen[u.ID] {
			return clerr.NewConfigError("upstreams", fmt.Errorf("duplicate upstream id %q", u.ID))
		}
		seen[u.ID] = true

		switch u.Transport {
		case TransportStdio:
			if u.Command == "" {
				return clerr.NewConfigError(fmt.Sprintf("upstreams[%s].command", u.ID), fmt.Errorf("command is required for stdio transport"))
			}
		case TransportSSE:
			if u.URL == "" {
				return clerr.NewConfigError(fmt.Sprintf("upstreams[%s].url", u.ID), fmt.Errorf("url is required for sse transport"))
			}
		default:
			return clerr.NewConfigError(fmt.Sprintf("upstreams[%s].transport", u.ID), fmt.Errorf("unsupported transport %q", u.Transport))
		}
	}
	return nil
}
