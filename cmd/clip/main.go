// Command clip runs CLIP, the transparent MCP compression proxy (spec.md
// §6). CLIP sits between an MCP client and a set of upstream MCP servers,
// applying cache, masking, and compression policy to every tools/call
// without the client or the upstreams knowing.
//
// DESIGN: cobra root command grounded on
// _examples/compozy-compozy/cmd/mcp-proxy/main.go (cobra + RunE + version
// subcommand); signal handling, zerolog console-writer setup, and the
// default-vs-explicit-subcommand shape grounded on the teacher's own
// cmd/main.go (j2h4u-Context-Gateway/cmd/main.go's setupLogging and
// runGatewayServer, which is the teacher's own sibling variant carrying
// the pattern Compresr-ai-Context-Gateway/cmd/agent.go left implicit).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

// run builds and executes the root command, returning the process exit
// code per spec.md §6: 0 clean shutdown, 1 configuration error, 2 fatal
// runtime error.
func run() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if code, ok := err.(exitCoder); ok {
			return code.ExitCode()
		}
		return 1
	}
	return 0
}

// exitCoder lets a command's RunE carry a specific spec.md §6 exit code
// through cobra's plain error return.
type exitCoder interface {
	error
	ExitCode() int
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "clip",
		Short: "CLIP is a transparent MCP compression proxy",
		Long: `CLIP sits between an MCP client and one or more upstream MCP servers.
It unions their tool catalogs behind a single MCP endpoint and applies
per-tool cache, PII-masking, and LLM-compression policy to every
tools/call response without either side having to know.`,
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "clip.json", "path to the CLIP configuration file")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(newInitCommand())
	root.AddCommand(&cobra.Command{
		Use:           "serve",
		Short:         "start the CLIP proxy (same as running clip with no subcommand)",
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print CLIP's version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clip %s\n", version)
		},
	})
	return root
}
