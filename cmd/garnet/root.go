package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/config"
	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/irtext"
	"github.com/chazu/garnet/runtime"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Verbose   int
	Format    string // "text" | "yaml"
	ConfigDir string

	cfg *config.Config
}

var validFormats = []string{"text", "yaml"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "garnet",
		Short:         "Garnet IR toolkit",
		Long:          "Inspect, optimize, run and persist IR programs written as YAML.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return opts.loadConfig()
		},
	}

	cmd.PersistentFlags().CountVarP(&opts.Verbose, "verbose", "v", "increase log verbosity")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "", "directory holding garnet.toml (default: search upward from the working directory)")

	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newOptCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newEncodeCommand(opts))
	cmd.AddCommand(newDecodeCommand(opts))
	cmd.AddCommand(newHashCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *rootOptions) loadConfig() error {
	var err error
	if o.ConfigDir != "" {
		o.cfg, err = config.Load(o.ConfigDir)
	} else {
		o.cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return err
	}

	var path *string
	if o.cfg.Log.File != "" {
		path = &o.cfg.Log.File
	}
	commonlog.Configure(o.cfg.Log.Verbosity+o.Verbose, path)
	return nil
}

func (o *rootOptions) newRuntime(out io.Writer) (*runtime.Runtime, error) {
	rtOpts, err := o.cfg.RuntimeOptions()
	if err != nil {
		return nil, err
	}
	return runtime.New(append(rtOpts, runtime.WithOutput(out))...), nil
}

// print writes s in the selected format.
func (o *rootOptions) print(w io.Writer, s *ir.Scope) error {
	if o.Format == "yaml" {
		data, err := irtext.MarshalListing(s)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return ir.Dump(w, s)
}
