package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newInitCommand returns the "clip init" subcommand, which writes a
// starter configuration file so a new user has something to edit instead
// of writing spec.md §3's JSON schema from scratch.
//
// DESIGN: grounded on the teacher's config-wizard entrypoint
// (_examples/Compresr-ai-Context-Gateway/cmd/agent_wizard.go writes a
// starter YAML config); CLIP's version is non-interactive and writes the
// example JSON document directly, since the wizard's interactive prompt
// flow belongs to the teacher's onboarding UX, not CLIP's policy model.
func newInitCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "write a starter clip.json configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := os.Stat(outPath); err == nil {
				return &exitError{err: fmt.Errorf("%s already exists, refusing to overwrite", outPath), code: 1}
			}
			data, err := json.MarshalIndent(exampleConfig(), "", "  ")
			if err != nil {
				return &exitError{err: err, code: 1}
			}
			if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
				return &exitError{err: fmt.Errorf("write %s: %w", outPath, err), code: 1}
			}
			fmt.Printf("wrote %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "clip.json", "path to write the example configuration to")
	return cmd
}

// exampleConfig returns a minimal but complete starter document covering
// one stdio upstream, global cache/masking defaults, and a commented-style
// (via field presence) example of a tool-level override, matching the
// shape config.Load expects.
func exampleConfig() map[string]any {
	return map[string]any{
		"upstreams": []map[string]any{
			{
				"id":        "fs",
				"name":      "filesystem",
				"transport": "stdio",
				"command":   "npx",
				"args":      []string{"-y", "@modelcontextprotocol/server-filesystem", "/tmp"},
				"tools": map[string]any{
					"read_file": map[string]any{
						"hideParameters": []string{},
					},
				},
			},
		},
		"compression": map[string]any{
			"enabled":         false,
			"tokenThreshold":  2000,
			"maxOutputTokens": 500,
		},
		"masking": map[string]any{
			"enabled":  false,
			"piiTypes": []string{"email", "ssn", "phone", "credit_card", "ip_address"},
		},
		"defaults": map[string]any{
			"cache": map[string]any{
				"enabled":    true,
				"ttlSeconds": 600,
			},
		},
		"logging": map[string]any{
			"level":  "info",
			"pretty": true,
		},
	}
}
