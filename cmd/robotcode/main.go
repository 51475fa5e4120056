// robotcode is the language server's command-line entrypoint: a thin
// cobra root wrapping one long-running "serve" subcommand, the same
// shape codenerd's cmd/nerd/main.go uses for its own zap-backed CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d-biehl/robotcode/internal/config"
)

var (
	debug      bool
	searchPath []string
)

var rootCmd = &cobra.Command{
	Use:   "robotcode",
	Short: "Language server for Robot Framework",
	Long: `robotcode analyzes Robot Framework suites and resources: resolving
Library/Resource/Variables imports, finding keywords across the BuiltIn,
stdlib and user namespaces, and reporting unresolved keywords and
variables as diagnostics over the Language Server Protocol.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringSliceVar(&searchPath, "search-path", nil, "additional directories consulted when resolving imports")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	src, err := config.NewFSSource()
	if err != nil {
		return nil, err
	}
	conf, err := config.Extract(src)
	if err != nil {
		return nil, err
	}
	conf.Debug = conf.Debug || debug
	if len(searchPath) > 0 {
		conf.SearchPath = append(conf.SearchPath, searchPath...)
	}
	return conf, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
