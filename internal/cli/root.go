// Package cli implements the go-rt command, which exercises a Runtime with a
// synthetic workload, and validates runtime configuration files.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rt "github.com/joeycumines/go-rt"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "go-rt",
		Short: "Single-threaded async runtime tooling",
		Long:  "Runs synthetic workloads on a go-rt Runtime, and validates runtime configuration.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML runtime config")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// loadConfig reads the config named by --config, or returns the zero Config.
func (o *RootOptions) loadConfig() (*rt.Config, error) {
	if o.ConfigPath == "" {
		cfg := &rt.Config{}
		if o.Verbose {
			cfg.LogLevel = "debug"
		}
		return cfg, nil
	}
	f, err := os.Open(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := rt.LoadConfig(f)
	if err != nil {
		return nil, err
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
